package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"braintree-checkout-api/apperrors"
	"braintree-checkout-api/database"
	"braintree-checkout-api/logger"
	"braintree-checkout-api/models"
	"braintree-checkout-api/services/payment"
	"braintree-checkout-api/types"
	"braintree-checkout-api/utils"
)

const (
	msgNoQuote       = "There is no active checkout."
	msgOrderNotFound = "Order not found"
	msgLoginRequired = "Please log in to use a saved card."
	msgLoginFirst    = "Please log in to continue."
	msgCustomerToken = "Your login has expired, please log in again."
	msgInvalidBody   = "Invalid request body"
	msgUnderReview   = "This order is under payment review."
)

type CheckoutHandler struct {
	orders    OrderStore
	payments  PaymentMethods
	customers CustomerVerifier
	sessions  *SessionManager
}

func NewCheckoutHandler(orders OrderStore, payments PaymentMethods, customers CustomerVerifier, sessions *SessionManager) *CheckoutHandler {
	return &CheckoutHandler{
		orders:    orders,
		payments:  payments,
		customers: customers,
		sessions:  sessions,
	}
}

type sessionRequest struct {
	QuoteID        int64  `json:"quote_id" validate:"required,gt=0"`
	CheckoutMethod string `json:"checkout_method" validate:"omitempty,oneof=guest register login_in"`
	// CustomerToken is issued by the storefront for its logged in customer.
	CustomerToken string `json:"customer_token"`
}

type sessionResponse struct {
	FormKey    string `json:"form_key"`
	StoreID    int64  `json:"store_id"`
	QuoteID    int64  `json:"quote_id,omitempty"`
	CustomerID int64  `json:"customer_id,omitempty"`
}

type quoteTotalResponse struct {
	BillingName     string `json:"billingName"`
	BillingPostcode string `json:"billingPostcode"`
	GrandTotal      string `json:"grandTotal"`
	CurrencyCode    string `json:"currencyCode"`
}

type tokenizeResponse struct {
	Success bool              `json:"success"`
	Tokens  map[string]string `json:"tokens"`
}

type paymentSummary struct {
	OrderID       int64                `json:"order_id"`
	IncrementID   string               `json:"increment_id"`
	State         string               `json:"state"`
	Status        models.PaymentStatus `json:"status"`
	TransactionID string               `json:"transaction_id"`
	Amount        string               `json:"amount"`
	CcLast4       string               `json:"cc_last4,omitempty"`
	CcType        string               `json:"cc_type,omitempty"`
	Pending       bool                 `json:"pending"`
}

// Session returns the form key and binds the cookie to the storefront's
// cart when a quote id is posted. The customer only ever comes from a
// verified storefront token; a quote that belongs to a customer binds only
// to that customer's session.
func (h *CheckoutHandler) Session(w http.ResponseWriter, r *http.Request) {
	session, cs := h.sessions.Load(r)

	if r.Method == http.MethodPost {
		var req sessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.HandleError(w, apperrors.BadRequest(msgInvalidBody))
			return
		}
		if err := types.Validate(&req); err != nil {
			apperrors.HandleError(w, apperrors.BadRequest(err.Error()))
			return
		}

		customerID := cs.CustomerID
		if req.CustomerToken != "" {
			verified, err := h.customers.ValidateCustomerToken(req.CustomerToken, cs.StoreID)
			if err != nil {
				logger.Warn(r.Context(), "Rejected storefront customer token", zap.Error(err))
				apperrors.HandleError(w, apperrors.New(http.StatusUnauthorized, msgCustomerToken, err))
				return
			}
			customerID = verified
		}
		if req.CheckoutMethod == payment.CheckoutMethodLoginIn && customerID == 0 {
			apperrors.HandleError(w, apperrors.New(http.StatusForbidden, msgLoginFirst, nil))
			return
		}

		quote, err := h.orders.GetQuote(r.Context(), req.QuoteID)
		if err != nil || !quote.IsActive || quote.StoreID != cs.StoreID {
			apperrors.HandleError(w, apperrors.NotFound(msgNoQuote))
			return
		}
		if quote.CustomerID > 0 && quote.CustomerID != customerID {
			logger.Warn(r.Context(), "Quote belongs to another customer",
				zap.Int64("quote_id", quote.ID),
				zap.Int64("session_customer_id", customerID))
			apperrors.HandleError(w, apperrors.NotFound(msgNoQuote))
			return
		}

		cs.QuoteID = quote.ID
		cs.CustomerID = customerID
		cs.CheckoutMethod = req.CheckoutMethod
		if cs.CheckoutMethod == "" {
			cs.CheckoutMethod = payment.CheckoutMethodGuest
			if customerID > 0 {
				cs.CheckoutMethod = payment.CheckoutMethodLoginIn
			}
		}
	}

	if !h.saveSession(w, r, session, cs) {
		return
	}
	utils.SendJSON(w, http.StatusOK, sessionResponse{
		FormKey:    cs.FormKey,
		StoreID:    cs.StoreID,
		QuoteID:    cs.QuoteID,
		CustomerID: cs.CustomerID,
	})
}

// QuoteTotal gives the 3-D Secure widget the billing name and amount.
func (h *CheckoutHandler) QuoteTotal(w http.ResponseWriter, r *http.Request) {
	_, cs := h.sessions.Load(r)
	if cs.QuoteID == 0 {
		apperrors.HandleError(w, apperrors.NotFound(msgNoQuote))
		return
	}

	quote, err := h.orders.GetQuote(r.Context(), cs.QuoteID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			apperrors.HandleError(w, apperrors.NotFound(msgNoQuote))
			return
		}
		logger.Error(r.Context(), "Failed to load quote", err, zap.Int64("quote_id", cs.QuoteID))
		apperrors.HandleError(w, apperrors.Internal(err))
		return
	}

	utils.SendJSON(w, http.StatusOK, quoteTotalResponse{
		BillingName:     quote.BillingAddress.Name(),
		BillingPostcode: billingPostcode(quote.BillingAddress),
		GrandTotal:      utils.FormatAmount(quote.GrandTotal),
		CurrencyCode:    quote.QuoteCurrencyCode,
	})
}

// TokenizeCard swaps the customer's stored card tokens for nonces so they
// can go through 3-D Secure. Tokens outside the customer's vault are
// refused before any nonce is made.
func (h *CheckoutHandler) TokenizeCard(w http.ResponseWriter, r *http.Request) {
	session, cs := h.sessions.Load(r)
	if cs.CustomerID == 0 {
		apperrors.HandleError(w, apperrors.New(http.StatusForbidden, msgLoginRequired, nil))
		return
	}

	var req types.TokenizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.HandleError(w, apperrors.BadRequest(msgInvalidBody))
		return
	}
	if err := types.Validate(&req); err != nil {
		apperrors.HandleError(w, apperrors.BadRequest(err.Error()))
		return
	}

	checkout := h.checkoutContext(cs, "")
	wrapper, err := h.payments.Wrapper(r.Context(), checkout)
	if err != nil {
		apperrors.HandleError(w, err)
		return
	}

	for _, token := range req.Tokens {
		if !wrapper.OwnsToken(r.Context(), token) {
			logger.Warn(r.Context(), "Refused to tokenize card outside the customer's vault",
				zap.Int64("customer_id", cs.CustomerID))
			apperrors.HandleError(w, apperrors.New(http.StatusForbidden, payment.MsgStoredMethod, nil))
			return
		}
	}

	resp := tokenizeResponse{Success: true, Tokens: make(map[string]string, len(req.Tokens))}
	for _, token := range req.Tokens {
		nonce, err := wrapper.GetThreeDSecureVaultNonce(r.Context(), token)
		if err != nil {
			logger.Warn(r.Context(), "Failed to tokenize stored card", zap.Error(err))
			apperrors.HandleError(w, &payment.Error{Kind: payment.KindGateway, Message: payment.MsgCardGatewayIssue, Err: err})
			return
		}
		resp.Tokens[token] = nonce
	}

	cs.BraintreeID = checkout.SessionBraintreeID
	if !h.saveSession(w, r, session, cs) {
		return
	}
	utils.SendJSON(w, http.StatusOK, resp)
}

// ClientToken issues the token the drop-in needs, bound to the merchant
// account of the shopper's currency.
func (h *CheckoutHandler) ClientToken(w http.ResponseWriter, r *http.Request) {
	_, cs := h.sessions.Load(r)

	currency := ""
	if cs.QuoteID > 0 {
		if quote, err := h.orders.GetQuote(r.Context(), cs.QuoteID); err == nil {
			currency = quote.QuoteCurrencyCode
		}
	}

	wrapper, err := h.payments.Wrapper(r.Context(), h.checkoutContext(cs, currency))
	if err != nil {
		apperrors.HandleError(w, err)
		return
	}

	token, err := wrapper.GenerateToken(r.Context())
	if err != nil {
		logger.Error(r.Context(), "Failed to generate client token", err, zap.Int64("store_id", cs.StoreID))
		apperrors.HandleError(w, &payment.Error{Kind: payment.KindGateway, Message: payment.MsgCardGatewayIssue, Err: err})
		return
	}

	utils.SendJSON(w, http.StatusOK, map[string]string{"client_token": token})
}

// ThreeDSecure tells the storefront whether to render the 3-D Secure widget.
func (h *CheckoutHandler) ThreeDSecure(w http.ResponseWriter, r *http.Request) {
	_, cs := h.sessions.Load(r)

	enabled := false
	method, err := h.payments.CreditCard(r.Context(), h.checkoutContext(cs, ""))
	if err == nil {
		enabled = method.Is3DEnabled()
	}

	utils.SendJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

// Authorize takes the card payment for an order according to the store's
// payment action.
func (h *CheckoutHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	h.pay(w, r, false)
}

// Capture authorizes and captures at once. Settling an existing
// authorization is an admin action.
func (h *CheckoutHandler) Capture(w http.ResponseWriter, r *http.Request) {
	h.pay(w, r, true)
}

func (h *CheckoutHandler) pay(w http.ResponseWriter, r *http.Request, capture bool) {
	ctx := r.Context()
	session, cs := h.sessions.Load(r)

	order, ok := h.sessionOrder(w, r, cs)
	if !ok {
		return
	}

	var post types.PaymentPost
	if err := json.NewDecoder(r.Body).Decode(&post); err != nil {
		apperrors.HandleError(w, apperrors.BadRequest(msgInvalidBody))
		return
	}
	if err := types.Validate(&post); err != nil {
		apperrors.HandleError(w, apperrors.BadRequest(err.Error()))
		return
	}

	p, err := h.orders.GetPayment(ctx, order.ID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		p = &models.Payment{OrderID: order.ID, Method: models.MethodCreditCard}
	case err != nil:
		logger.Error(ctx, "Failed to load order payment", err, zap.Int64("order_id", order.ID))
		apperrors.HandleError(w, apperrors.Internal(err))
		return
	}
	if order.State == models.OrderStatePaymentReview {
		apperrors.HandleError(w, apperrors.BadRequest(msgUnderReview))
		return
	}
	if p.CcTransID != "" {
		apperrors.HandleError(w, apperrors.BadRequest(payment.MsgAlreadyPaid))
		return
	}

	checkout := h.checkoutContext(cs, order.OrderCurrencyCode)
	checkout.CustomerID = order.CustomerID
	method, err := h.payments.CreditCard(ctx, checkout)
	if err != nil {
		apperrors.HandleError(w, err)
		return
	}

	if capture || method.ShouldCapture() {
		err = method.Capture(ctx, p, order, &post, order.BaseGrandTotal)
	} else {
		err = method.Authorize(ctx, p, order, &post, order.BaseGrandTotal)
	}
	if err != nil {
		if payment.HeldForReview(err) {
			saveHeldPayment(r, h.orders, order, p)
		}
		apperrors.HandleError(w, err)
		return
	}

	if !h.persistPayment(w, r, order, p) {
		return
	}

	cs.BraintreeID = checkout.SessionBraintreeID
	if !h.saveSession(w, r, session, cs) {
		return
	}
	utils.SendJSON(w, http.StatusOK, summarize(order, p))
}

// sessionOrder loads the order in the path and checks it was placed from
// this session's cart or by its customer.
func (h *CheckoutHandler) sessionOrder(w http.ResponseWriter, r *http.Request, cs *CheckoutSession) (*models.Order, bool) {
	orderID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || orderID <= 0 {
		apperrors.HandleError(w, apperrors.NotFound(msgOrderNotFound))
		return nil, false
	}

	order, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			logger.Error(r.Context(), "Failed to load order", err, zap.Int64("order_id", orderID))
		}
		apperrors.HandleError(w, apperrors.NotFound(msgOrderNotFound))
		return nil, false
	}

	owned := (cs.QuoteID > 0 && order.QuoteID == cs.QuoteID) ||
		(cs.CustomerID > 0 && order.CustomerID == cs.CustomerID)
	if !owned || order.StoreID != cs.StoreID {
		logger.Warn(r.Context(), "Order does not belong to session", zap.Int64("order_id", orderID))
		apperrors.HandleError(w, apperrors.NotFound(msgOrderNotFound))
		return nil, false
	}
	return order, true
}

func (h *CheckoutHandler) persistPayment(w http.ResponseWriter, r *http.Request, order *models.Order, p *models.Payment) bool {
	ctx := r.Context()
	p.OrderID = order.ID
	if err := h.orders.SavePayment(ctx, p); err != nil {
		logger.Error(ctx, "Payment taken but not saved", err,
			zap.Int64("order_id", order.ID),
			zap.String("transaction_id", p.TransactionID))
		apperrors.HandleError(w, apperrors.Internal(err))
		return false
	}

	order.State = payment.OrderStateFor(p)
	order.Status = order.State
	if err := h.orders.UpdateOrderState(ctx, order.ID, order.State, order.Status); err != nil {
		logger.Error(ctx, "Failed to update order state", err, zap.Int64("order_id", order.ID))
		apperrors.HandleError(w, apperrors.Internal(err))
		return false
	}
	return true
}

// saveHeldPayment keeps a failed sale that was put on fraud hold, so the
// order shows up for review. The shopper still gets the sale error.
func saveHeldPayment(r *http.Request, orders OrderStore, order *models.Order, p *models.Payment) {
	ctx := r.Context()
	p.OrderID = order.ID
	if err := orders.SavePayment(ctx, p); err != nil {
		logger.Error(ctx, "Failed to save held payment", err,
			zap.Int64("order_id", order.ID),
			zap.String("transaction_id", p.TransactionID))
		return
	}

	order.State = payment.OrderStateFor(p)
	order.Status = order.State
	if err := orders.UpdateOrderState(ctx, order.ID, order.State, order.Status); err != nil {
		logger.Error(ctx, "Failed to update order state", err, zap.Int64("order_id", order.ID))
		return
	}
	logger.Warn(ctx, "Payment held for review",
		zap.Int64("order_id", order.ID),
		zap.String("transaction_id", p.TransactionID))
}

func (h *CheckoutHandler) checkoutContext(cs *CheckoutSession, currency string) *payment.CheckoutContext {
	method := cs.CheckoutMethod
	if method == "" {
		method = payment.CheckoutMethodGuest
	}
	return &payment.CheckoutContext{
		StoreID:            cs.StoreID,
		CustomerID:         cs.CustomerID,
		CheckoutMethod:     method,
		SessionBraintreeID: cs.BraintreeID,
		CurrencyCode:       currency,
	}
}

func (h *CheckoutHandler) saveSession(w http.ResponseWriter, r *http.Request, session *sessions.Session, cs *CheckoutSession) bool {
	if err := h.sessions.Save(w, r, session, cs); err != nil {
		logger.Error(r.Context(), "Failed to save session", err)
		apperrors.HandleError(w, apperrors.Internal(err))
		return false
	}
	return true
}

func summarize(order *models.Order, p *models.Payment) paymentSummary {
	return paymentSummary{
		OrderID:       order.ID,
		IncrementID:   order.IncrementID,
		State:         order.State,
		Status:        p.Status,
		TransactionID: p.TransactionID,
		Amount:        utils.FormatAmount(p.Amount),
		CcLast4:       p.CcLast4,
		CcType:        p.CcType,
		Pending:       p.IsTransactionPending,
	}
}

func billingPostcode(a *models.Address) string {
	if a == nil {
		return ""
	}
	return a.Postcode
}
