package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"braintree-checkout-api/apperrors"
	"braintree-checkout-api/logger"
	"braintree-checkout-api/models"
	"braintree-checkout-api/services/express"
	"braintree-checkout-api/types"
	"braintree-checkout-api/utils"
)

const expressFlashKey = "express_error"

type ExpressHandler struct {
	flow     ExpressFlow
	shoppers ShopperStore
	sessions *SessionManager
}

func NewExpressHandler(flow ExpressFlow, shoppers ShopperStore, sessions *SessionManager) *ExpressHandler {
	return &ExpressHandler{
		flow:     flow,
		shoppers: shoppers,
		sessions: sessions,
	}
}

type stepResponse struct {
	Step        express.Step `json:"step"`
	OrderID     int64        `json:"order_id,omitempty"`
	IncrementID string       `json:"increment_id,omitempty"`
}

type errorPageResponse struct {
	Step     express.Step `json:"step"`
	Messages []string     `json:"messages"`
}

func (h *ExpressHandler) Button(w http.ResponseWriter, r *http.Request) {
	_, cs := h.sessions.Load(r)

	button, err := h.flow.Button(r.Context(), cs.StoreID)
	if err != nil {
		logger.Error(r.Context(), "Failed to resolve express button", err, zap.Int64("store_id", cs.StoreID))
		apperrors.HandleError(w, apperrors.Internal(err))
		return
	}
	utils.SendJSON(w, http.StatusOK, button)
}

// Authorization starts the flow with the PayPal button response.
func (h *ExpressHandler) Authorization(w http.ResponseWriter, r *http.Request) {
	session, cs := h.sessions.Load(r)

	var req types.ExpressAuthorizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.HandleError(w, apperrors.BadRequest(msgInvalidBody))
		return
	}

	st, ok := h.state(w, r, cs)
	if !ok {
		return
	}

	step, err := h.flow.Authorize(r.Context(), st, &req)
	cs.applyExpressState(st)
	if err != nil {
		h.fail(w, r, session, cs, err)
		return
	}

	if !h.save(w, r, session, cs) {
		return
	}
	utils.SendJSON(w, http.StatusOK, stepResponse{Step: step})
}

// Shipping lists the rates, or applies the posted method and moves on.
func (h *ExpressHandler) Shipping(w http.ResponseWriter, r *http.Request) {
	session, cs := h.sessions.Load(r)

	sel, ok := shippingSelection(w, r)
	if !ok {
		return
	}

	st, ok := h.state(w, r, cs)
	if !ok {
		return
	}

	view, err := h.flow.Shipping(r.Context(), st, sel)
	cs.applyExpressState(st)
	if err != nil {
		h.fail(w, r, session, cs, err)
		return
	}

	if !h.save(w, r, session, cs) {
		return
	}
	utils.SendJSON(w, http.StatusOK, view)
}

func (h *ExpressHandler) SaveShipping(w http.ResponseWriter, r *http.Request) {
	session, cs := h.sessions.Load(r)

	sel, ok := shippingSelection(w, r)
	if !ok {
		return
	}

	st, ok := h.state(w, r, cs)
	if !ok {
		return
	}

	totals, err := h.flow.SaveShipping(r.Context(), st, sel)
	cs.applyExpressState(st)
	if err != nil {
		h.fail(w, r, session, cs, err)
		return
	}

	if !h.save(w, r, session, cs) {
		return
	}
	utils.SendJSON(w, http.StatusOK, totals)
}

// Process places the order and takes the PayPal payment.
func (h *ExpressHandler) Process(w http.ResponseWriter, r *http.Request) {
	session, cs := h.sessions.Load(r)

	st, ok := h.state(w, r, cs)
	if !ok {
		return
	}
	cartSource := st.Source == express.SourceCart

	order, err := h.flow.Process(r.Context(), st)
	cs.applyExpressState(st)
	if err != nil {
		h.fail(w, r, session, cs, err)
		return
	}
	if cartSource {
		cs.QuoteID = 0
	}

	if !h.save(w, r, session, cs) {
		return
	}
	utils.SendJSON(w, http.StatusOK, stepResponse{
		Step:        express.StepComplete,
		OrderID:     order.ID,
		IncrementID: order.IncrementID,
	})
}

// Error shows, once, the messages a failed step left behind.
func (h *ExpressHandler) Error(w http.ResponseWriter, r *http.Request) {
	session, cs := h.sessions.Load(r)

	messages := takeFlashes(session)

	if !h.save(w, r, session, cs) {
		return
	}
	utils.SendJSON(w, http.StatusOK, errorPageResponse{Step: express.StepError, Messages: messages})
}

// state builds the flow state from the session, the logged in customer and
// the store's currency.
func (h *ExpressHandler) state(w http.ResponseWriter, r *http.Request, cs *CheckoutSession) (*express.State, bool) {
	ctx := r.Context()
	st := cs.expressState()

	currency, err := h.shoppers.StoreBaseCurrency(ctx, cs.StoreID)
	if err != nil {
		logger.Error(ctx, "Failed to load store currency", err, zap.Int64("store_id", cs.StoreID))
		apperrors.HandleError(w, apperrors.Internal(err))
		return nil, false
	}
	st.BaseCurrency = currency
	st.Currency = currency

	if cs.CustomerID > 0 {
		customer, err := h.shoppers.GetCustomer(ctx, cs.CustomerID)
		if err != nil {
			logger.Error(ctx, "Failed to load session customer", err, zap.Int64("customer_id", cs.CustomerID))
			apperrors.HandleError(w, apperrors.Internal(err))
			return nil, false
		}
		st.Customer = customer
	}
	return st, true
}

// fail records a flow failure as a flash for the error step. Express being
// disabled is a plain 404.
func (h *ExpressHandler) fail(w http.ResponseWriter, r *http.Request, session *sessions.Session, cs *CheckoutSession, err error) {
	if errors.Is(err, express.ErrUnavailable) {
		apperrors.HandleError(w, apperrors.NotFound("Page not found"))
		return
	}

	message := express.MsgRequestFailed
	var flowErr *express.FlowError
	if errors.As(err, &flowErr) {
		message = flowErr.UserMessage()
	} else {
		logger.Error(r.Context(), "Express checkout step failed", err)
	}

	addFlash(session, message)
	if !h.save(w, r, session, cs) {
		return
	}
	utils.SendJSON(w, http.StatusBadRequest, models.APIResponse{
		Status:  "error",
		Message: message,
		Data:    stepResponse{Step: express.StepError},
	})
}

func (h *ExpressHandler) save(w http.ResponseWriter, r *http.Request, session *sessions.Session, cs *CheckoutSession) bool {
	if err := h.sessions.Save(w, r, session, cs); err != nil {
		logger.Error(r.Context(), "Failed to save session", err)
		apperrors.HandleError(w, apperrors.Internal(err))
		return false
	}
	return true
}

// addFlash queues a message for the error step.
func addFlash(session *sessions.Session, message string) {
	flashes, _ := session.Values[expressFlashKey].([]string)
	session.Values[expressFlashKey] = append(flashes, message)
}

func takeFlashes(session *sessions.Session) []string {
	flashes, _ := session.Values[expressFlashKey].([]string)
	delete(session.Values, expressFlashKey)
	if flashes == nil {
		flashes = []string{}
	}
	return flashes
}

// shippingSelection reads the selection from the JSON body on POST and from
// the query string on GET.
func shippingSelection(w http.ResponseWriter, r *http.Request) (types.ShippingSelection, bool) {
	var sel types.ShippingSelection
	if r.Method == http.MethodPost && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
			apperrors.HandleError(w, apperrors.BadRequest(msgInvalidBody))
			return sel, false
		}
	} else {
		query := r.URL.Query()
		sel.SubmitShipping = query.Get("submit_shipping")
		sel.ShippingMethod = query.Get("shipping_method")
	}

	if err := types.Validate(&sel); err != nil {
		apperrors.HandleError(w, apperrors.BadRequest(err.Error()))
		return sel, false
	}
	return sel, true
}
