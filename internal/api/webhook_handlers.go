package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Rocksteady808/roolify-sub002/internal/service"
	"github.com/Rocksteady808/roolify-sub002/internal/store"
)

// maxWebhookBody bounds a submission body
const maxWebhookBody = 1 << 20

// HandleWebhook accepts a form submission. The response reports storage
// only; notification delivery never changes it.
func HandleWebhook(processor *service.Processor, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]interface{}{
				"success": false,
				"error":   "Request body too large",
			})
			return
		}

		payload, err := service.ParsePayload(body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"error":   "Invalid JSON body",
			})
			return
		}
		if siteID := chi.URLParam(r, "siteId"); siteID != "" {
			payload.Ref.SiteID = siteID
		}

		// the client disconnecting must not cut notification sends short
		ctx := context.WithoutCancel(r.Context())

		outcome, err := processor.Process(ctx, payload)
		switch {
		case errors.Is(err, service.ErrInvalidPayload), errors.Is(err, store.ErrInvalidRef):
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"error":   err.Error(),
			})
			return
		case err != nil:
			logger.Error("Failed to process submission",
				zap.String("site_id", payload.Ref.SiteID),
				zap.String("form_id", payload.Ref.FormID),
				zap.Error(err),
			)
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"success": false,
				"error":   "Failed to store submission",
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":      true,
			"submissionId": outcome.Submission.PublicID,
			"formId":       outcome.Form.ID,
		})
	}
}
