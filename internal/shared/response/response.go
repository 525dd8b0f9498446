// Package response renders JSON bodies and AppErrors for HTTP handlers.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/citizenvoice/platform/internal/shared/errors"
	"go.uber.org/zap"
)

// JSON writes data with the given status
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// List writes the {"data","total"} envelope used by list endpoints
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, map[string]any{
		"data":  data,
		"total": total,
	})
}

// Error renders err. AppErrors keep their status and code; anything else is
// logged and reported as an internal error.
func Error(w http.ResponseWriter, logger *zap.Logger, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := errors.As(err); ok {
		if appErr.HTTPStatus >= http.StatusInternalServerError && logger != nil {
			logger.Error(appErr.Message, zap.Error(appErr.Err), zap.String("code", appErr.Code))
		}
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	if logger != nil {
		logger.Error("unhandled error", zap.Error(err))
	}
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error", "code": "INTERNAL_ERROR"})
}

// Decode reads a JSON body into v, reporting malformed input as a bad request
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.BadRequest("invalid request body")
	}
	return nil
}
