// Package store persists sites, forms, submissions and notification
// settings. Backends: PostgreSQL through gorm, or the hosted Xano API.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rocksteady808/roolify-sub002/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidRef is returned when a form reference lacks a site or form id.
	ErrInvalidRef = errors.New("site id and form id are required")
)

// Store is the persistence boundary used by the service and API layers.
type Store interface {
	// ResolveForm translates string identifiers into a form record,
	// creating the site and form on first sight. The form's Site is loaded.
	ResolveForm(ctx context.Context, ref models.FormRef) (*models.Form, error)

	// FindForm is ResolveForm without the inserts: a missing site or form
	// is ErrNotFound.
	FindForm(ctx context.Context, ref models.FormRef) (*models.Form, error)

	// ClaimSite makes userID the owner of an unowned site and returns the
	// site with its owner after the claim. An owned site is not changed.
	ClaimSite(ctx context.Context, siteID, userID int) (*models.Site, error)

	// CreateSubmission stores a submission and fills its ID and timestamps.
	CreateSubmission(ctx context.Context, sub *models.Submission) error

	// ListSubmissions returns a page of a form's submissions, newest first,
	// and the total count.
	ListSubmissions(ctx context.Context, formID, limit, offset int) ([]models.Submission, int64, error)

	// GetSettings returns the notification settings of a form or ErrNotFound.
	GetSettings(ctx context.Context, formID, siteID int) (*models.NotificationSettings, error)

	// UpsertSettings replaces the settings keyed by (form, user, site).
	UpsertSettings(ctx context.Context, settings *models.NotificationSettings) error

	// DeleteSubmissionsBefore prunes submissions created before t.
	DeleteSubmissionsBefore(ctx context.Context, t time.Time) (int64, error)
}

// APIError is a non-success response from the Xano backend.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("xano %s %s returned status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

func normalizeRef(ref models.FormRef) (models.FormRef, error) {
	ref.SiteID = strings.TrimSpace(ref.SiteID)
	ref.FormID = strings.TrimSpace(ref.FormID)
	ref.FormName = strings.TrimSpace(ref.FormName)
	if ref.SiteID == "" || ref.FormID == "" {
		return ref, ErrInvalidRef
	}
	return ref, nil
}
