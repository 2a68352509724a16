package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Rocksteady808/roolify-sub002/internal/models"
	"github.com/Rocksteady808/roolify-sub002/internal/routing"
	"github.com/Rocksteady808/roolify-sub002/internal/store"
)

// SettingsResponse is the dashboard view of a form's notification settings
type SettingsResponse struct {
	ID                  int               `json:"id"`
	FormID              int               `json:"formId"`
	SiteID              int               `json:"siteId"`
	UserID              int               `json:"userId"`
	AdminRoutes         []routing.Route   `json:"adminRoutes"`
	UserRoutes          []routing.Route   `json:"userRoutes"`
	AdminFallbackEmail  string            `json:"adminFallbackEmail"`
	UserFallbackEmail   string            `json:"userFallbackEmail"`
	CustomValueTemplate string            `json:"customValueTemplate"`
	CustomValues        map[string]string `json:"customValues"`
	EmailTemplate       string            `json:"emailTemplate"`
	AdminSubject        string            `json:"adminSubject"`
	UserSubject         string            `json:"userSubject"`
	UpdatedAt           time.Time         `json:"updatedAt"`

	// Warnings names stored values that could not be decoded
	Warnings []string `json:"warnings,omitempty"`
}

func newSettingsResponse(s *models.NotificationSettings) SettingsResponse {
	resp := SettingsResponse{
		ID:                  s.ID,
		FormID:              s.FormID,
		SiteID:              s.SiteID,
		UserID:              s.UserID,
		AdminFallbackEmail:  s.AdminFallbackEmail,
		UserFallbackEmail:   s.UserFallbackEmail,
		CustomValueTemplate: s.CustomValueTemplate,
		EmailTemplate:       s.EmailTemplate,
		AdminSubject:        s.AdminSubject,
		UserSubject:         s.UserSubject,
		UpdatedAt:           s.UpdatedAt,
	}

	var err error
	if resp.AdminRoutes, err = s.ParsedAdminRoutes(); err != nil {
		resp.Warnings = append(resp.Warnings, "adminRoutes: "+err.Error())
	}
	if resp.UserRoutes, err = s.ParsedUserRoutes(); err != nil {
		resp.Warnings = append(resp.Warnings, "userRoutes: "+err.Error())
	}
	if resp.CustomValues, err = s.ParsedCustomValues(); err != nil {
		resp.Warnings = append(resp.Warnings, "customValues: "+err.Error())
	}

	if resp.AdminRoutes == nil {
		resp.AdminRoutes = []routing.Route{}
	}
	if resp.UserRoutes == nil {
		resp.UserRoutes = []routing.Route{}
	}
	if resp.CustomValues == nil {
		resp.CustomValues = map[string]string{}
	}
	return resp
}

// ownedForm looks up the form named by ref for the current user without
// creating anything. On failure it writes the response and returns nil.
func ownedForm(w http.ResponseWriter, r *http.Request, st store.Store, ref models.FormRef, logger *zap.Logger, failure string) *models.Form {
	userID, _ := UserIDFromContext(r.Context())

	form, err := st.FindForm(r.Context(), ref)
	switch {
	case errors.Is(err, store.ErrInvalidRef):
		http.Error(w, "formId and siteId are required", http.StatusBadRequest)
		return nil
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Form not found", http.StatusNotFound)
		return nil
	case err != nil:
		logger.Error("Failed to find form", zap.Error(err))
		http.Error(w, failure, http.StatusInternalServerError)
		return nil
	}

	if !form.Site.OwnedBy(userID) {
		http.Error(w, "Site belongs to another user", http.StatusForbidden)
		return nil
	}
	return form
}

// HandleGetSettings returns the settings of the form named by formId/siteId
func HandleGetSettings(st store.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := models.FormRef{
			SiteID: r.URL.Query().Get("siteId"),
			FormID: r.URL.Query().Get("formId"),
		}

		form := ownedForm(w, r, st, ref, logger, "Failed to fetch settings")
		if form == nil {
			return
		}

		settings, err := st.GetSettings(r.Context(), form.ID, form.SiteID)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Settings not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("Failed to fetch settings", zap.Int("form_id", form.ID), zap.Error(err))
			http.Error(w, "Failed to fetch settings", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, newSettingsResponse(settings))
	}
}

// UpdateSettingsRequest represents the request body for replacing settings
type UpdateSettingsRequest struct {
	FormID              idString          `json:"formId"`
	SiteID              idString          `json:"siteId"`
	AdminRoutes         []routing.Route   `json:"adminRoutes"`
	UserRoutes          []routing.Route   `json:"userRoutes"`
	AdminFallbackEmail  string            `json:"adminFallbackEmail"`
	UserFallbackEmail   string            `json:"userFallbackEmail"`
	CustomValueTemplate string            `json:"customValueTemplate"`
	CustomValues        map[string]string `json:"customValues"`
	EmailTemplate       string            `json:"emailTemplate"`
	AdminSubject        string            `json:"adminSubject"`
	UserSubject         string            `json:"userSubject"`
}

// Validate canonicalizes operators and checks every address
func (req *UpdateSettingsRequest) Validate() error {
	if err := validateRoutes("admin", req.AdminRoutes); err != nil {
		return err
	}
	if err := validateRoutes("user", req.UserRoutes); err != nil {
		return err
	}
	if err := validateRecipients("adminFallbackEmail", req.AdminFallbackEmail); err != nil {
		return err
	}
	return validateRecipients("userFallbackEmail", req.UserFallbackEmail)
}

func validateRoutes(side string, routes []routing.Route) error {
	for i := range routes {
		route := &routes[i]
		if op, ok := routing.ParseOperator(string(route.Operator)); ok {
			route.Operator = op
		}
		if err := route.Validate(); err != nil {
			return fmt.Errorf("%s route %d: %w", side, i+1, err)
		}
		if len(routing.ParseRecipients(route.Recipients)) == 0 {
			return fmt.Errorf("%s route %d: at least one recipient is required", side, i+1)
		}
		if err := validateRecipients(fmt.Sprintf("%s route %d", side, i+1), route.Recipients); err != nil {
			return err
		}
	}
	return nil
}

func validateRecipients(label, list string) error {
	for _, addr := range routing.ParseRecipients(list) {
		parsed, err := mail.ParseAddress(addr)
		if err != nil || !strings.EqualFold(parsed.Address, addr) {
			return fmt.Errorf("%s: invalid email address %q", label, addr)
		}
	}
	return nil
}

// HandleUpdateSettings fully replaces a form's settings. Only the site owner
// may write; an unowned site is claimed by the caller.
func HandleUpdateSettings(st store.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserIDFromContext(r.Context())

		var req UpdateSettingsRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := req.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		form, err := st.ResolveForm(r.Context(), models.FormRef{SiteID: string(req.SiteID), FormID: string(req.FormID)})
		if errors.Is(err, store.ErrInvalidRef) {
			http.Error(w, "formId and siteId are required", http.StatusBadRequest)
			return
		}
		if err != nil {
			logger.Error("Failed to resolve form", zap.Error(err))
			http.Error(w, "Failed to save settings", http.StatusInternalServerError)
			return
		}

		// the first user to save settings on a site owns it
		site, err := st.ClaimSite(r.Context(), form.SiteID, userID)
		if err != nil {
			logger.Error("Failed to claim site", zap.Int("site_id", form.SiteID), zap.Error(err))
			http.Error(w, "Failed to save settings", http.StatusInternalServerError)
			return
		}
		if !site.OwnedBy(userID) {
			logger.Warn("Settings update refused for site owned by another user",
				zap.Int("site_id", form.SiteID),
				zap.Int("user_id", userID),
			)
			http.Error(w, "Site belongs to another user", http.StatusForbidden)
			return
		}

		settings := &models.NotificationSettings{
			FormID:              form.ID,
			UserID:              userID,
			SiteID:              form.SiteID,
			AdminFallbackEmail:  strings.TrimSpace(req.AdminFallbackEmail),
			UserFallbackEmail:   strings.TrimSpace(req.UserFallbackEmail),
			CustomValueTemplate: req.CustomValueTemplate,
			EmailTemplate:       req.EmailTemplate,
			AdminSubject:        req.AdminSubject,
			UserSubject:         req.UserSubject,
		}
		if err := settings.SetRoutes(req.AdminRoutes, req.UserRoutes); err != nil {
			http.Error(w, "Invalid routes", http.StatusBadRequest)
			return
		}
		if err := settings.SetCustomValues(req.CustomValues); err != nil {
			http.Error(w, "Invalid custom values", http.StatusBadRequest)
			return
		}

		if err := st.UpsertSettings(r.Context(), settings); err != nil {
			logger.Error("Failed to save settings", zap.Int("form_id", form.ID), zap.Error(err))
			http.Error(w, "Failed to save settings", http.StatusInternalServerError)
			return
		}

		logger.Info("Notification settings updated",
			zap.Int("form_id", form.ID),
			zap.Int("site_id", form.SiteID),
			zap.Int("user_id", userID),
			zap.Int("admin_routes", len(req.AdminRoutes)),
			zap.Int("user_routes", len(req.UserRoutes)),
		)
		writeJSON(w, http.StatusOK, newSettingsResponse(settings))
	}
}
