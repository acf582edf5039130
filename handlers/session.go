package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/sessions"

	"braintree-checkout-api/config"
	"braintree-checkout-api/services/express"
	"braintree-checkout-api/utils"
)

const (
	DefaultStoreID = 1
	StoreIDHeader  = "X-Store-ID"

	keyStoreID         = "store_id"
	keyQuoteID         = "quote_id"
	keyCustomerID      = "customer_id"
	keyCheckoutMethod  = "checkout_method"
	keyBraintreeID     = "braintree_customer_id"
	keyFormKey         = "form_key"
	keyExpressQuoteID  = "express_quote_id"
	keyExpressNonce    = "express_nonce"
	keyExpressSource   = "express_source"
	keyLastQuoteID     = "last_quote_id"
	keyLastOrderID     = "last_order_id"
	keyLastIncrementID = "last_increment_id"
)

// CheckoutSession is the typed view of the checkout cookie.
type CheckoutSession struct {
	StoreID        int64
	QuoteID        int64
	CustomerID     int64
	CheckoutMethod string
	BraintreeID    string
	FormKey        string

	ExpressQuoteID int64
	ExpressNonce   string
	ExpressSource  string

	LastQuoteID     int64
	LastOrderID     int64
	LastIncrementID string
}

type SessionManager struct {
	store sessions.Store
	name  string
}

func NewSessionManager(cfg config.SessionConfig) *SessionManager {
	store := sessions.NewCookieStore([]byte(cfg.Secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   cfg.MaxAge,
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return NewSessionManagerWithStore(store, cfg.Name)
}

func NewSessionManagerWithStore(store sessions.Store, name string) *SessionManager {
	return &SessionManager{store: store, name: name}
}

// Load reads the checkout session. A cookie that fails to decode yields a
// fresh session rather than an error.
func (m *SessionManager) Load(r *http.Request) (*sessions.Session, *CheckoutSession) {
	session, _ := m.store.Get(r, m.name)

	cs := &CheckoutSession{
		StoreID:         int64Value(session, keyStoreID),
		QuoteID:         int64Value(session, keyQuoteID),
		CustomerID:      int64Value(session, keyCustomerID),
		CheckoutMethod:  stringValue(session, keyCheckoutMethod),
		BraintreeID:     stringValue(session, keyBraintreeID),
		FormKey:         stringValue(session, keyFormKey),
		ExpressQuoteID:  int64Value(session, keyExpressQuoteID),
		ExpressNonce:    stringValue(session, keyExpressNonce),
		ExpressSource:   stringValue(session, keyExpressSource),
		LastQuoteID:     int64Value(session, keyLastQuoteID),
		LastOrderID:     int64Value(session, keyLastOrderID),
		LastIncrementID: stringValue(session, keyLastIncrementID),
	}

	if header := r.Header.Get(StoreIDHeader); header != "" {
		if id, err := strconv.ParseInt(header, 10, 64); err == nil && id > 0 {
			cs.StoreID = id
		}
	}
	if cs.StoreID == 0 {
		cs.StoreID = DefaultStoreID
	}
	if cs.FormKey == "" {
		cs.FormKey = utils.GenerateFormKey()
	}
	return session, cs
}

func (m *SessionManager) Save(w http.ResponseWriter, r *http.Request, session *sessions.Session, cs *CheckoutSession) error {
	session.Values[keyStoreID] = cs.StoreID
	session.Values[keyQuoteID] = cs.QuoteID
	session.Values[keyCustomerID] = cs.CustomerID
	session.Values[keyCheckoutMethod] = cs.CheckoutMethod
	session.Values[keyBraintreeID] = cs.BraintreeID
	session.Values[keyFormKey] = cs.FormKey
	session.Values[keyExpressQuoteID] = cs.ExpressQuoteID
	session.Values[keyExpressNonce] = cs.ExpressNonce
	session.Values[keyExpressSource] = cs.ExpressSource
	session.Values[keyLastQuoteID] = cs.LastQuoteID
	session.Values[keyLastOrderID] = cs.LastOrderID
	session.Values[keyLastIncrementID] = cs.LastIncrementID
	return session.Save(r, w)
}

// expressState copies the session into the express flow state.
func (cs *CheckoutSession) expressState() *express.State {
	return &express.State{
		StoreID:     cs.StoreID,
		FormKey:     cs.FormKey,
		CartQuoteID: cs.QuoteID,
		QuoteID:     cs.ExpressQuoteID,
		Nonce:       cs.ExpressNonce,
		Source:      cs.ExpressSource,
	}
}

// applyExpressState writes what the flow changed back into the session.
func (cs *CheckoutSession) applyExpressState(st *express.State) {
	cs.ExpressQuoteID = st.QuoteID
	cs.ExpressNonce = st.Nonce
	cs.ExpressSource = st.Source
	if st.LastOrderID > 0 {
		cs.LastQuoteID = st.LastQuoteID
		cs.LastOrderID = st.LastOrderID
		cs.LastIncrementID = st.LastIncrementID
	}
}

func int64Value(session *sessions.Session, key string) int64 {
	if v, ok := session.Values[key].(int64); ok {
		return v
	}
	return 0
}

func stringValue(session *sessions.Session, key string) string {
	if v, ok := session.Values[key].(string); ok {
		return v
	}
	return ""
}
