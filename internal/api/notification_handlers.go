package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Rocksteady808/roolify-sub002/internal/service"
	"github.com/Rocksteady808/roolify-sub002/internal/store"
)

// HandleTestRoutes evaluates routes against sample data without sending email
func HandleTestRoutes(processor *service.Processor, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.TestRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		userID, _ := UserIDFromContext(r.Context())
		report, err := processor.TestRoutes(r.Context(), userID, req)
		switch {
		case errors.Is(err, service.ErrInvalidPayload), errors.Is(err, store.ErrInvalidRef):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case errors.Is(err, service.ErrForbidden):
			http.Error(w, "Site belongs to another user", http.StatusForbidden)
			return
		case errors.Is(err, store.ErrNotFound):
			http.Error(w, "Settings not found", http.StatusNotFound)
			return
		case err != nil:
			logger.Error("Failed to test routes", zap.Error(err))
			http.Error(w, "Failed to test routes", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, report)
	}
}
