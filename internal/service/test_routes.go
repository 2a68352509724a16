package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Rocksteady808/roolify-sub002/internal/models"
	"github.com/Rocksteady808/roolify-sub002/internal/routing"
)

// TestRequest asks which recipients a sample submission would reach. When
// AdminRoutes or UserRoutes is set the inline configuration is evaluated;
// otherwise the stored settings of FormID/SiteID are used.
type TestRequest struct {
	FormID             string          `json:"formId"`
	SiteID             string          `json:"siteId"`
	Data               routing.Fields  `json:"data"`
	AdminRoutes        []routing.Route `json:"adminRoutes,omitempty"`
	UserRoutes         []routing.Route `json:"userRoutes,omitempty"`
	AdminFallbackEmail string          `json:"adminFallbackEmail,omitempty"`
	UserFallbackEmail  string          `json:"userFallbackEmail,omitempty"`
}

// ErrForbidden is returned when stored settings belong to another user's site.
var ErrForbidden = errors.New("site belongs to another user")

func (r *TestRequest) inline() bool {
	return r.AdminRoutes != nil || r.UserRoutes != nil
}

// TestReport is the dry-run result; no email is sent
type TestReport struct {
	Source string `json:"source"` // inline, stored
	Plan
}

// TestRoutes evaluates routes against sample data without sending anything.
// Stored settings are only read for sites owned by userID.
func (p *Processor) TestRoutes(ctx context.Context, userID int, req TestRequest) (*TestReport, error) {
	if req.inline() {
		settings := &models.NotificationSettings{
			AdminFallbackEmail: req.AdminFallbackEmail,
			UserFallbackEmail:  req.UserFallbackEmail,
		}
		if err := settings.SetRoutes(req.AdminRoutes, req.UserRoutes); err != nil {
			return nil, fmt.Errorf("failed to encode routes: %w", err)
		}
		return &TestReport{Source: "inline", Plan: PlanNotifications(settings, req.Data, p.resolver)}, nil
	}

	ref := models.FormRef{SiteID: strings.TrimSpace(req.SiteID), FormID: strings.TrimSpace(req.FormID)}
	if ref.SiteID == "" || ref.FormID == "" {
		return nil, fmt.Errorf("%w: formId and siteId are required without inline routes", ErrInvalidPayload)
	}

	form, err := p.store.FindForm(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to find form: %w", err)
	}
	if !form.Site.OwnedBy(userID) {
		return nil, ErrForbidden
	}
	settings, err := p.store.GetSettings(ctx, form.ID, form.SiteID)
	if err != nil {
		return nil, err
	}
	return &TestReport{Source: "stored", Plan: PlanNotifications(settings, req.Data, p.resolver)}, nil
}
