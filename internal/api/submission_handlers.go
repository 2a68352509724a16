package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rocksteady808/roolify-sub002/internal/models"
	"github.com/Rocksteady808/roolify-sub002/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// SubmissionResponse is one submission in a listing
type SubmissionResponse struct {
	ID        uuid.UUID       `json:"id"`
	FormID    int             `json:"formId"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
}

// HandleListSubmissions returns a page of a form's submissions, newest first
func HandleListSubmissions(st store.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := models.FormRef{
			SiteID: r.URL.Query().Get("siteId"),
			FormID: r.URL.Query().Get("formId"),
		}
		limit := queryInt(r, "limit", defaultPageSize)
		if limit == 0 || limit > maxPageSize {
			limit = maxPageSize
		}
		offset := queryInt(r, "offset", 0)

		form := ownedForm(w, r, st, ref, logger, "Failed to fetch submissions")
		if form == nil {
			return
		}

		subs, total, err := st.ListSubmissions(r.Context(), form.ID, limit, offset)
		if err != nil {
			logger.Error("Failed to fetch submissions", zap.Int("form_id", form.ID), zap.Error(err))
			http.Error(w, "Failed to fetch submissions", http.StatusInternalServerError)
			return
		}

		items := make([]SubmissionResponse, 0, len(subs))
		for _, s := range subs {
			data := json.RawMessage(s.Data)
			if len(data) == 0 {
				data = json.RawMessage("{}")
			}
			items = append(items, SubmissionResponse{
				ID:        s.PublicID,
				FormID:    s.FormID,
				Data:      data,
				CreatedAt: s.CreatedAt,
			})
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"items":  items,
			"total":  total,
			"limit":  limit,
			"offset": offset,
		})
	}
}
