package api

import (
	"encoding/json"
	"net/http"

	"github.com/reward-service/internal/errors"
	"github.com/reward-service/internal/logging"
	"github.com/reward-service/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// respondServiceError maps a pipeline error onto the wire. User-attributable
// failures keep their code and message; internal failures are collapsed to a
// generic envelope so storage and settlement details never leak.
func respondServiceError(w http.ResponseWriter, err error) {
	catErr := errors.Categorize(err)

	if errors.IsAlertable(err) {
		logging.WithError(err).Error("Alertable failure surfaced to API")
	}

	switch catErr.Category {
	case errors.CategoryRepository, errors.CategoryOperational:
		respondError(w, catErr.StatusCode, "INTERNAL_ERROR", "An internal error occurred", nil)
	case errors.CategorySettlement:
		respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, nil)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(catErr.StatusCode)
		json.NewEncoder(w).Encode(ErrorResponse{Error: *catErr.ToServiceError()})
	}
}
