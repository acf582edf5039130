package apperrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"braintree-checkout-api/models"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, message, nil)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, message, nil)
}

func Internal(err error) *Error {
	return New(http.StatusInternalServerError, "Internal server error", err)
}

// Coder is implemented by errors that know their HTTP status and the message
// safe to show to a shopper.
type Coder interface {
	StatusCode() int
	UserMessage() string
}

// HandleError writes err as the JSON error envelope. Unknown errors become a
// 500 without leaking their text.
func HandleError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	var appErr *Error
	var coder Coder
	switch {
	case errors.As(err, &appErr):
		status = appErr.Code
		message = appErr.Message
	case errors.As(err, &coder):
		status = coder.StatusCode()
		message = coder.UserMessage()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.APIResponse{
		Status:  "error",
		Message: message,
	})
}
