package braintree

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"braintree-checkout-api/logger"
	"braintree-checkout-api/models"
)

const (
	SandboxEndpoint    = "https://api.sandbox.braintreegateway.com"
	ProductionEndpoint = "https://api.braintreegateway.com"
	APIVersion         = "6"
	RequestTimeout     = 30 * time.Second
)

// ErrNotFound is returned when the gateway answers 404 for a lookup.
var ErrNotFound = errors.New("braintree: resource not found")

// GatewayError is a transport, authentication or server failure. The charge
// state is unknown to us, so callers surface it and never retry.
type GatewayError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("braintree gateway error (status %d): %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("braintree gateway error (status %d): %s", e.StatusCode, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

type Client struct {
	credentials models.GatewayCredentials
	baseURL     string
	client      *http.Client
}

type Option func(*Client)

// WithBaseURL points the client at another host, e.g. an httptest server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

func NewClient(credentials models.GatewayCredentials, opts ...Option) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	c := &Client{
		credentials: credentials,
		baseURL:     endpointFor(credentials.Environment),
		client: &http.Client{
			Timeout:   RequestTimeout,
			Transport: transport,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func endpointFor(environment string) string {
	if environment == "production" {
		return ProductionEndpoint
	}
	return SandboxEndpoint
}

func (c *Client) merchantPath(format string, args ...interface{}) string {
	return fmt.Sprintf("/merchants/%s", c.credentials.MerchantID) + fmt.Sprintf(format, args...)
}

// send performs one request. 2xx, 404 and 422 bodies are handed back to the
// caller; everything else becomes a *GatewayError.
func (c *Client) send(ctx context.Context, method, path string, payload interface{}) ([]byte, int, error) {
	startTime := time.Now()

	var body io.Reader
	if payload != nil {
		jsonPayload, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("error marshaling request: %w", err)
		}
		body = bytes.NewBuffer(jsonPayload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("error creating request: %w", err)
	}

	httpReq.SetBasicAuth(c.credentials.PublicKey, c.credentials.PrivateKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Braintree-Version", APIVersion)
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, 0, &GatewayError{Message: "error making request", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &GatewayError{StatusCode: resp.StatusCode, Message: "error reading response body", Err: err}
	}

	logger.Debug(ctx, "Braintree response received",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(startTime)))

	cleanBody := bytes.TrimPrefix(respBody, []byte("\xef\xbb\xbf"))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return cleanBody, resp.StatusCode, nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusUnprocessableEntity:
		return cleanBody, resp.StatusCode, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, resp.StatusCode, &GatewayError{StatusCode: resp.StatusCode, Message: "authentication failed"}
	case resp.StatusCode == http.StatusForbidden:
		return nil, resp.StatusCode, &GatewayError{StatusCode: resp.StatusCode, Message: "authorization failed"}
	default:
		return nil, resp.StatusCode, &GatewayError{StatusCode: resp.StatusCode, Message: errorMessage(cleanBody)}
	}
}

// errorMessage pulls the processor message out of an error body, if any.
func errorMessage(body []byte) string {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.APIErrorResponse.Message != "" {
		return apiErr.APIErrorResponse.Message
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	if text == "" {
		return "unexpected response"
	}
	return text
}

func decode(body []byte, out interface{}) error {
	if err := json.Unmarshal(body, out); err != nil {
		return &GatewayError{Message: "error decoding response", Err: err}
	}
	return nil
}

// decodeTransactionResult maps a sale/settlement response onto a result.
func decodeTransactionResult(body []byte, status int) (*TransactionResult, error) {
	if status == http.StatusUnprocessableEntity {
		var apiErr apiErrorResponse
		if err := decode(body, &apiErr); err != nil {
			return nil, err
		}
		return &TransactionResult{
			Success:     false,
			Transaction: apiErr.APIErrorResponse.Transaction,
			Message:     apiErr.APIErrorResponse.Message,
			Errors:      apiErr.APIErrorResponse.Errors,
		}, nil
	}
	if status == http.StatusNotFound {
		return nil, ErrNotFound
	}

	var env transactionEnvelope
	if err := decode(body, &env); err != nil {
		return nil, err
	}
	if env.Transaction == nil {
		return nil, &GatewayError{StatusCode: status, Message: "response did not contain a transaction"}
	}
	return &TransactionResult{Success: true, Transaction: env.Transaction}, nil
}
