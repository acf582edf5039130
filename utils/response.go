package utils

import (
	"encoding/json"
	"net/http"

	"braintree-checkout-api/models"
)

func SendErrorResponse(w http.ResponseWriter, status int, message string) {
	SendJSON(w, status, models.APIResponse{
		Status:  "error",
		Message: message,
	})
}

func SendSuccessResponse(w http.ResponseWriter, message string, data interface{}) {
	SendJSON(w, http.StatusOK, models.APIResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

// SendJSON writes v as the response body. Encoding errors are dropped since
// the status line is already out.
func SendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
