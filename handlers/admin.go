package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"braintree-checkout-api/apperrors"
	"braintree-checkout-api/database"
	"braintree-checkout-api/logger"
	"braintree-checkout-api/middleware"
	"braintree-checkout-api/models"
	"braintree-checkout-api/services/auth"
	"braintree-checkout-api/services/payment"
	"braintree-checkout-api/services/payment/braintree"
	"braintree-checkout-api/types"
	"braintree-checkout-api/utils"
)

const (
	warnTransactionMissing = "Warning: Cannot load payment in Braintree."
	warnGatewayUnreachable = "Warning: Unable to connect to Braintree to load transaction."
)

// additionalInfoHeadings lists, in display order, the gateway fields shown
// on the admin payment panel.
var additionalInfoHeadings = []struct {
	Key     string
	Heading string
}{
	{"avsErrorResponseCode", "AVS Error Response Code"},
	{"avsPostalCodeResponseCode", "AVS Postal Response Code"},
	{"avsStreetAddressResponseCode", "AVS Street Address Response Code"},
	{"cvvResponseCode", "CVV Response Code"},
	{"gatewayRejectionReason", "Gateway Rejection Reason"},
	{"processorAuthorizationCode", "Processor Authorization Code"},
	{"processorResponseCode", "Processor Response Code"},
	{"processorResponseText", "Processor Response Text"},
	{"threeDSecure", "3D Secure"},
}

type AdminHandler struct {
	auth     Authenticator
	orders   OrderStore
	payments PaymentMethods
}

func NewAdminHandler(authenticator Authenticator, orders OrderStore, payments PaymentMethods) *AdminHandler {
	return &AdminHandler{
		auth:     authenticator,
		orders:   orders,
		payments: payments,
	}
}

type InfoField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type PaymentInfoResponse struct {
	OrderID       int64       `json:"order_id"`
	IncrementID   string      `json:"increment_id"`
	Method        string      `json:"method"`
	CcLast4       string      `json:"cc_last4"`
	CcType        string      `json:"cc_type"`
	TransactionID string      `json:"transaction_id"`
	Status        string      `json:"status,omitempty"`
	Warning       string      `json:"warning,omitempty"`
	Fields        []InfoField `json:"fields"`
}

type CredentialsResponse struct {
	StoreID           int64  `json:"store_id"`
	MerchantAccountID string `json:"merchant_account_id"`
	Valid             bool   `json:"valid"`
	Status            string `json:"status"`
	Message           string `json:"message"`
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.AdminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.HandleError(w, apperrors.BadRequest(msgInvalidBody))
		return
	}
	if err := types.Validate(&req); err != nil {
		apperrors.HandleError(w, apperrors.BadRequest(err.Error()))
		return
	}

	resp, err := h.auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.authFailure(w, r, err)
		return
	}

	logger.Info(r.Context(), "Admin logged in", zap.String("username", resp.User.Username))
	utils.SendJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.AdminRefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.HandleError(w, apperrors.BadRequest(msgInvalidBody))
		return
	}
	if err := types.Validate(&req); err != nil {
		apperrors.HandleError(w, apperrors.BadRequest(err.Error()))
		return
	}

	resp, err := h.auth.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		h.authFailure(w, r, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) authFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		apperrors.HandleError(w, apperrors.New(http.StatusUnauthorized, "Invalid username or password", err))
	case errors.Is(err, auth.ErrTokenExpired):
		apperrors.HandleError(w, apperrors.New(http.StatusUnauthorized, "Token expired", err))
	case errors.Is(err, auth.ErrInvalidToken):
		apperrors.HandleError(w, apperrors.New(http.StatusUnauthorized, "Invalid token", err))
	default:
		logger.Error(r.Context(), "Admin authentication failed", err)
		apperrors.HandleError(w, apperrors.Internal(err))
	}
}

// PaymentInfo is the admin payment panel: stored card details plus the
// live transaction status from the gateway.
func (h *AdminHandler) PaymentInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, ok := h.adminOrder(w, r)
	if !ok {
		return
	}

	p, err := h.orders.GetPayment(ctx, order.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			apperrors.HandleError(w, apperrors.NotFound("This order has no payment"))
			return
		}
		logger.Error(ctx, "Failed to load order payment", err, zap.Int64("order_id", order.ID))
		apperrors.HandleError(w, apperrors.Internal(err))
		return
	}

	resp := PaymentInfoResponse{
		OrderID:       order.ID,
		IncrementID:   order.IncrementID,
		Method:        p.Method,
		CcLast4:       p.CcLast4,
		CcType:        p.CcType,
		TransactionID: p.LastTransID,
		Fields:        []InfoField{},
	}

	wrapper, err := h.payments.Wrapper(ctx, &payment.CheckoutContext{StoreID: order.StoreID, IsAdmin: true})
	if err != nil {
		resp.Warning = warnGatewayUnreachable
	} else {
		tx, err := wrapper.FindTransaction(ctx, p.LastTransID)
		switch {
		case errors.Is(err, braintree.ErrNotFound) || (err == nil && tx == nil):
			resp.Warning = warnTransactionMissing
		case err != nil:
			logger.Warn(ctx, "Failed to load transaction", zap.String("transaction_id", p.LastTransID), zap.Error(err))
			resp.Warning = warnGatewayUnreachable
		default:
			resp.Status = TransactionStatusLabel(tx.Status)
		}
	}

	for _, heading := range additionalInfoHeadings {
		if value := p.GetAdditionalInformation(heading.Key); value != "" {
			resp.Fields = append(resp.Fields, InfoField{Label: heading.Heading, Value: value})
		}
	}

	utils.SendJSON(w, http.StatusOK, resp)
}

// Pay charges an order created from the admin panel. Admin orders never go
// through 3-D Secure and are charged in the posted currency.
func (h *AdminHandler) Pay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, ok := h.adminOrder(w, r)
	if !ok {
		return
	}

	var post types.AdminPaymentPost
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
	if p.CcTransID != "" {
		apperrors.HandleError(w, apperrors.BadRequest(payment.MsgAlreadyPaid))
		return
	}

	currency := strings.ToUpper(post.Currency)
	if currency == "" {
		currency = order.OrderCurrencyCode
	}
	method, err := h.payments.CreditCard(ctx, &payment.CheckoutContext{
		StoreID:           order.StoreID,
		IsAdmin:           true,
		CustomerID:        order.CustomerID,
		CheckoutMethod:    payment.CheckoutMethodGuest,
		AdminCurrencyCode: currency,
	})
	if err != nil {
		apperrors.HandleError(w, err)
		return
	}

	if method.ShouldCapture() {
		err = method.Capture(ctx, p, order, &post.PaymentPost, order.BaseGrandTotal)
	} else {
		err = method.Authorize(ctx, p, order, &post.PaymentPost, order.BaseGrandTotal)
	}
	if err != nil {
		if payment.HeldForReview(err) {
			saveHeldPayment(r, h.orders, order, p)
		}
		apperrors.HandleError(w, err)
		return
	}

	if !h.savePayment(w, r, order, p) {
		return
	}

	admin := middleware.GetAdminFromContext(ctx)
	logger.Info(ctx, "Admin order charged",
		zap.String("admin", admin.Username),
		zap.String("increment_id", order.IncrementID),
		zap.String("transaction_id", p.TransactionID))
	utils.SendJSON(w, http.StatusOK, summarize(order, p))
}

// Capture settles an order's existing authorization. This is also how a
// payment held for fraud review is approved.
func (h *AdminHandler) Capture(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, ok := h.adminOrder(w, r)
	if !ok {
		return
	}

	p, err := h.orders.GetPayment(ctx, order.ID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		apperrors.HandleError(w, apperrors.BadRequest(payment.MsgNoAuthorization))
		return
	case err != nil:
		logger.Error(ctx, "Failed to load order payment", err, zap.Int64("order_id", order.ID))
		apperrors.HandleError(w, apperrors.Internal(err))
		return
	}

	method, err := h.payments.CreditCard(ctx, &payment.CheckoutContext{
		StoreID:           order.StoreID,
		IsAdmin:           true,
		CustomerID:        order.CustomerID,
		CheckoutMethod:    payment.CheckoutMethodGuest,
		AdminCurrencyCode: order.OrderCurrencyCode,
	})
	if err != nil {
		apperrors.HandleError(w, err)
		return
	}

	if err := method.Settle(ctx, p, order, order.BaseGrandTotal); err != nil {
		apperrors.HandleError(w, err)
		return
	}

	if !h.savePayment(w, r, order, p) {
		return
	}

	admin := middleware.GetAdminFromContext(ctx)
	logger.Info(ctx, "Admin captured order",
		zap.String("admin", admin.Username),
		zap.String("increment_id", order.IncrementID),
		zap.String("transaction_id", p.TransactionID))
	utils.SendJSON(w, http.StatusOK, summarize(order, p))
}

func (h *AdminHandler) savePayment(w http.ResponseWriter, r *http.Request, order *models.Order, p *models.Payment) bool {
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

// Credentials checks a store's keys and merchant account against the
// gateway. A merchant_account_id query parameter checks that account instead.
func (h *AdminHandler) Credentials(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	storeID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || storeID < 0 {
		apperrors.HandleError(w, apperrors.NotFound("Store not found"))
		return
	}
	if !middleware.GetAdminFromContext(ctx).CanAccessStore(storeID) {
		apperrors.HandleError(w, apperrors.New(http.StatusForbidden, "You cannot manage this store", nil))
		return
	}

	wrapper, err := h.payments.Wrapper(ctx, &payment.CheckoutContext{StoreID: storeID, IsAdmin: true})
	if err != nil {
		apperrors.HandleError(w, err)
		return
	}

	account := r.URL.Query().Get("merchant_account_id")
	if account == "" {
		account = wrapper.MerchantAccountID()
	}
	status := wrapper.ValidateCredentials(ctx, account)

	utils.SendJSON(w, http.StatusOK, CredentialsResponse{
		StoreID:           storeID,
		MerchantAccountID: account,
		Valid:             status == payment.CredentialsValid,
		Status:            status.String(),
		Message:           status.Message(),
	})
}

// adminOrder loads the order in the path and checks the admin may see its
// store.
func (h *AdminHandler) adminOrder(w http.ResponseWriter, r *http.Request) (*models.Order, bool) {
	orderID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || orderID <= 0 {
		apperrors.HandleError(w, apperrors.NotFound(msgOrderNotFound))
		return nil, false
	}

	order, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			logger.Error(r.Context(), "Failed to load order", err, zap.Int64("order_id", orderID))
			apperrors.HandleError(w, apperrors.Internal(err))
			return nil, false
		}
		apperrors.HandleError(w, apperrors.NotFound(msgOrderNotFound))
		return nil, false
	}

	if !middleware.GetAdminFromContext(r.Context()).CanAccessStore(order.StoreID) {
		apperrors.HandleError(w, apperrors.New(http.StatusForbidden, "You cannot manage this store", nil))
		return nil, false
	}
	return order, true
}

// TransactionStatusLabel turns a gateway status into the label shown in
// admin.
func TransactionStatusLabel(status string) string {
	switch status {
	case "authorized":
		return "Authorized"
	case "submitted_for_settlement":
		return "Submitted For Settlement"
	case "settled":
		return "Settled"
	case "voided":
		return "Voided"
	}

	words := strings.Fields(strings.ReplaceAll(status, "_", " "))
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
