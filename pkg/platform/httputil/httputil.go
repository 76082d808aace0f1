// Package httputil maps coded domain errors to JSON HTTP responses and
// handles request decoding so handlers stay thin.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	dErrors "citepay/pkg/domain-errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteError translates a coded error into a status and JSON envelope.
// Internal and unavailability failures omit the description so storage
// details never leak to callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := statusFor(code)

	resp := errorResponse{Error: string(code)}
	if status < http.StatusInternalServerError {
		resp.ErrorDescription = dErrors.MessageOf(err)
	}
	WriteJSON(w, status, resp)
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeBadRequest, dErrors.CodeInvalidInput, dErrors.CodeAmountMismatch:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeDuplicateTicket, dErrors.CodeDuplicateReceipt,
		dErrors.CodeInvalidTransition, dErrors.CodeCitationPaid, dErrors.CodeInvariantViolation:
		return http.StatusConflict
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Decode unmarshals and validates a JSON request body. On failure it writes
// the error response itself and returns false.
func Decode[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return req, false
	}
	if err := validate.Struct(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeValidation, err.Error()))
		return req, false
	}
	return req, true
}
