package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Rocksteady808/roolify-sub002/internal/models"
)

// XanoStore talks to the hosted Xano API group
type XanoStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewXanoStore creates a store for the API group at baseURL
func NewXanoStore(baseURL, apiKey string, timeout time.Duration) *XanoStore {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &XanoStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// xanoTime accepts Xano's epoch milliseconds as well as RFC 3339 strings
type xanoTime struct {
	time.Time
}

func (t *xanoTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid xano timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

func (t xanoTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(t.UnixMilli(), 10)), nil
}

type xanoForm struct {
	ID            int      `json:"id"`
	SiteID        int      `json:"site_id"`
	WebflowSiteID string   `json:"webflow_site_id"`
	SiteUserID    *int     `json:"site_user_id"`
	HTMLFormID    string   `json:"html_form_id"`
	Name          string   `json:"name"`
	CreatedAt     xanoTime `json:"created_at"`
}

func (x *xanoForm) model() *models.Form {
	return &models.Form{
		ID:         x.ID,
		SiteID:     x.SiteID,
		HTMLFormID: x.HTMLFormID,
		Name:       x.Name,
		CreatedAt:  x.CreatedAt.Time,
		Site: models.Site{
			ID:            x.SiteID,
			WebflowSiteID: x.WebflowSiteID,
			UserID:        x.SiteUserID,
		},
	}
}

type xanoSite struct {
	ID            int      `json:"id"`
	WebflowSiteID string   `json:"webflow_site_id"`
	Name          string   `json:"name"`
	UserID        *int     `json:"user_id"`
	CreatedAt     xanoTime `json:"created_at"`
}

type xanoSubmission struct {
	ID        int             `json:"id,omitempty"`
	PublicID  string          `json:"public_id"`
	FormID    int             `json:"form_id"`
	SiteID    int             `json:"site_id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt xanoTime        `json:"created_at"`
}

type xanoSettings struct {
	ID                  int             `json:"id,omitempty"`
	FormID              int             `json:"form_id"`
	UserID              int             `json:"user_id"`
	SiteID              int             `json:"site_id"`
	AdminRoutes         json.RawMessage `json:"admin_routes"`
	UserRoutes          json.RawMessage `json:"user_routes"`
	AdminFallbackEmail  string          `json:"admin_fallback_email"`
	UserFallbackEmail   string          `json:"user_fallback_email"`
	CustomValueTemplate string          `json:"custom_value_template"`
	CustomValues        json.RawMessage `json:"custom_values"`
	EmailTemplate       string          `json:"email_template"`
	AdminSubject        string          `json:"admin_subject"`
	UserSubject         string          `json:"user_subject"`
	CreatedAt           xanoTime        `json:"created_at"`
	UpdatedAt           xanoTime        `json:"updated_at"`
}

func (x *xanoSettings) model() *models.NotificationSettings {
	return &models.NotificationSettings{
		ID:                  x.ID,
		FormID:              x.FormID,
		UserID:              x.UserID,
		SiteID:              x.SiteID,
		AdminRoutes:         datatypes.JSON(x.AdminRoutes),
		UserRoutes:          datatypes.JSON(x.UserRoutes),
		AdminFallbackEmail:  x.AdminFallbackEmail,
		UserFallbackEmail:   x.UserFallbackEmail,
		CustomValueTemplate: x.CustomValueTemplate,
		CustomValues:        datatypes.JSON(x.CustomValues),
		EmailTemplate:       x.EmailTemplate,
		AdminSubject:        x.AdminSubject,
		UserSubject:         x.UserSubject,
		CreatedAt:           x.CreatedAt.Time,
		UpdatedAt:           x.UpdatedAt.Time,
	}
}

func rawOrNull(b datatypes.JSON) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage("null")
	}
	return json.RawMessage(b)
}

// ResolveForm asks Xano to find or create the site and form
func (s *XanoStore) ResolveForm(ctx context.Context, ref models.FormRef) (*models.Form, error) {
	ref, err := normalizeRef(ref)
	if err != nil {
		return nil, err
	}

	body := map[string]string{
		"webflow_site_id": ref.SiteID,
		"form_id":         ref.FormID,
		"form_name":       ref.FormName,
	}
	var out xanoForm
	if err := s.do(ctx, http.MethodPost, "/form/resolve", nil, body, &out); err != nil {
		return nil, fmt.Errorf("failed to resolve form: %w", err)
	}
	return out.model(), nil
}

// FindForm looks a form up without creating it; a 404 or null body is
// ErrNotFound
func (s *XanoStore) FindForm(ctx context.Context, ref models.FormRef) (*models.Form, error) {
	ref, err := normalizeRef(ref)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("webflow_site_id", ref.SiteID)
	query.Set("form_id", ref.FormID)

	var out *xanoForm
	err = s.do(ctx, http.MethodGet, "/form/lookup", query, nil, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up form: %w", err)
	}
	if out == nil || out.ID == 0 {
		return nil, ErrNotFound
	}
	return out.model(), nil
}

// ClaimSite asks Xano to record userID as the owner of an unowned site
func (s *XanoStore) ClaimSite(ctx context.Context, siteID, userID int) (*models.Site, error) {
	body := map[string]int{
		"site_id": siteID,
		"user_id": userID,
	}
	var out xanoSite
	err := s.do(ctx, http.MethodPost, "/site/claim", nil, body, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim site: %w", err)
	}
	return &models.Site{
		ID:            out.ID,
		WebflowSiteID: out.WebflowSiteID,
		Name:          out.Name,
		UserID:        out.UserID,
		CreatedAt:     out.CreatedAt.Time,
	}, nil
}

// CreateSubmission posts a submission record
func (s *XanoStore) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	if sub.PublicID == uuid.Nil {
		sub.PublicID = uuid.New()
	}

	in := xanoSubmission{
		PublicID: sub.PublicID.String(),
		FormID:   sub.FormID,
		SiteID:   sub.SiteID,
		Data:     rawOrNull(sub.Data),
	}
	var out xanoSubmission
	if err := s.do(ctx, http.MethodPost, "/form_submission", nil, in, &out); err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}

	sub.ID = out.ID
	sub.CreatedAt = out.CreatedAt.Time
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	return nil
}

// ListSubmissions pages through a form's submissions
func (s *XanoStore) ListSubmissions(ctx context.Context, formID, limit, offset int) ([]models.Submission, int64, error) {
	query := url.Values{}
	query.Set("form_id", strconv.Itoa(formID))
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))

	var out struct {
		Items      []xanoSubmission `json:"items"`
		ItemsTotal int64            `json:"itemsTotal"`
	}
	if err := s.do(ctx, http.MethodGet, "/form_submission", query, nil, &out); err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions: %w", err)
	}

	subs := make([]models.Submission, 0, len(out.Items))
	for _, item := range out.Items {
		publicID, _ := uuid.Parse(item.PublicID)
		subs = append(subs, models.Submission{
			ID:        item.ID,
			PublicID:  publicID,
			FormID:    item.FormID,
			SiteID:    item.SiteID,
			Data:      datatypes.JSON(item.Data),
			CreatedAt: item.CreatedAt.Time,
		})
	}
	return subs, out.ItemsTotal, nil
}

// GetSettings loads settings for a form; a 404 or null body is ErrNotFound
func (s *XanoStore) GetSettings(ctx context.Context, formID, siteID int) (*models.NotificationSettings, error) {
	query := url.Values{}
	query.Set("form_id", strconv.Itoa(formID))
	query.Set("site_id", strconv.Itoa(siteID))

	var out *xanoSettings
	err := s.do(ctx, http.MethodGet, "/notification_setting", query, nil, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load notification settings: %w", err)
	}
	if out == nil || out.ID == 0 {
		return nil, ErrNotFound
	}
	return out.model(), nil
}

// UpsertSettings replaces settings for (form, user, site)
func (s *XanoStore) UpsertSettings(ctx context.Context, settings *models.NotificationSettings) error {
	in := xanoSettings{
		FormID:              settings.FormID,
		UserID:              settings.UserID,
		SiteID:              settings.SiteID,
		AdminRoutes:         rawOrNull(settings.AdminRoutes),
		UserRoutes:          rawOrNull(settings.UserRoutes),
		AdminFallbackEmail:  settings.AdminFallbackEmail,
		UserFallbackEmail:   settings.UserFallbackEmail,
		CustomValueTemplate: settings.CustomValueTemplate,
		CustomValues:        rawOrNull(settings.CustomValues),
		EmailTemplate:       settings.EmailTemplate,
		AdminSubject:        settings.AdminSubject,
		UserSubject:         settings.UserSubject,
	}

	var out xanoSettings
	if err := s.do(ctx, http.MethodPost, "/notification_setting/upsert", nil, in, &out); err != nil {
		return fmt.Errorf("failed to upsert notification settings: %w", err)
	}

	settings.ID = out.ID
	settings.CreatedAt = out.CreatedAt.Time
	settings.UpdatedAt = out.UpdatedAt.Time
	return nil
}

// DeleteSubmissionsBefore is not offered by the Xano API group; retention
// is configured on the Xano side.
func (s *XanoStore) DeleteSubmissionsBefore(ctx context.Context, t time.Time) (int64, error) {
	return 0, errors.ErrUnsupported
}

func (s *XanoStore) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := s.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("xano request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read xano response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode xano response: %w", err)
	}
	return nil
}
