package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Rocksteady808/roolify-sub002/internal/models"
	"github.com/Rocksteady808/roolify-sub002/internal/notification"
	"github.com/Rocksteady808/roolify-sub002/internal/routing"
	"github.com/Rocksteady808/roolify-sub002/internal/store"
)

// EventSubmissionCreated is broadcast on the live feed for every stored submission
const EventSubmissionCreated = "submission.created"

// Broadcaster publishes live feed events to one dashboard user
type Broadcaster interface {
	Broadcast(userID int, msgType string, payload interface{}) error
}

// Processor handles one submission at a time; it holds no per-submission state
type Processor struct {
	store       store.Store
	dispatcher  *notification.Dispatcher
	renderer    *notification.Renderer
	resolver    routing.Resolver
	broadcaster Broadcaster
	logger      *zap.Logger
}

// Option configures a Processor
type Option func(*Processor)

// WithBroadcaster publishes stored submissions on b
func WithBroadcaster(b Broadcaster) Option {
	return func(p *Processor) {
		p.broadcaster = b
	}
}

// WithResolver overrides the field resolver used for routes and templates
func WithResolver(r routing.Resolver) Option {
	return func(p *Processor) {
		p.resolver = r
		p.renderer = notification.NewRenderer(r)
	}
}

// NewProcessor creates a processor
func NewProcessor(st store.Store, dispatcher *notification.Dispatcher, logger *zap.Logger, opts ...Option) *Processor {
	resolver := routing.NewResolver()
	p := &Processor{
		store:      st,
		dispatcher: dispatcher,
		renderer:   notification.NewRenderer(resolver),
		resolver:   resolver,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Delivery is what happened on one side (admin or user) of a submission
type Delivery struct {
	Evaluation routing.Evaluation    `json:"evaluation"`
	Subject    string                `json:"subject,omitempty"`
	Results    []notification.Result `json:"results"`
}

// Outcome summarizes a processed submission
type Outcome struct {
	Submission    *models.Submission `json:"-"`
	Form          *models.Form       `json:"-"`
	SettingsFound bool               `json:"settingsFound"`
	Admin         *Delivery          `json:"admin,omitempty"`
	User          *Delivery          `json:"user,omitempty"`
}

// Process stores the submission and sends its notifications. Only an
// invalid payload or a storage failure is returned as an error; everything
// after the submission is stored is best effort.
func (p *Processor) Process(ctx context.Context, payload *Payload) (*Outcome, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	form, err := p.store.ResolveForm(ctx, payload.Ref)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve form: %w", err)
	}

	sub, err := models.NewSubmission(form, payload.Fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode submission: %w", err)
	}
	if err := p.store.CreateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to store submission: %w", err)
	}

	log := p.logger.With(
		zap.Int("form_id", form.ID),
		zap.Int("site_id", form.SiteID),
		zap.Int("submission_id", sub.ID),
	)
	log.Info("Submission stored", zap.Int("fields", len(payload.Fields)))

	p.broadcast(log, form, sub)

	outcome := &Outcome{Submission: sub, Form: form}

	settings, err := p.store.GetSettings(ctx, form.ID, form.SiteID)
	if errors.Is(err, store.ErrNotFound) {
		log.Info("No notification settings configured, skipping notifications")
		return outcome, nil
	}
	if err != nil {
		log.Error("Failed to load notification settings, skipping notifications", zap.Error(err))
		return outcome, nil
	}
	outcome.SettingsFound = true

	plan := PlanNotifications(settings, payload.Fields, p.resolver)
	for _, problem := range plan.Problems {
		log.Warn("Ignoring unreadable routes", zap.String("problem", problem))
	}

	customValues, err := settings.ParsedCustomValues()
	if err != nil {
		log.Warn("Ignoring unreadable custom values", zap.Error(err))
	}

	content := notification.Content{
		FormName:    formName(form, payload),
		SiteID:      payload.Ref.SiteID,
		SubmittedAt: sub.CreatedAt,
		Fields:      payload.Fields,
	}
	tmpl := notification.Template{
		HTML:                settings.EmailTemplate,
		CustomValueTemplate: settings.CustomValueTemplate,
		CustomValues:        customValues,
	}

	tmpl.Subject = settings.AdminSubject
	outcome.Admin = p.deliver(ctx, log.With(zap.String("audience", "admin")), plan.Admin, tmpl, content)

	tmpl.Subject = settings.UserSubject
	outcome.User = p.deliver(ctx, log.With(zap.String("audience", "user")), plan.User, tmpl, content)

	return outcome, nil
}

func (p *Processor) deliver(ctx context.Context, log *zap.Logger, ev routing.Evaluation, tmpl notification.Template, content notification.Content) *Delivery {
	d := &Delivery{Evaluation: ev, Results: []notification.Result{}}

	log.Info("Routes evaluated",
		zap.Stringer("state", ev.State),
		zap.Bool("fallback_used", ev.FallbackUsed),
		zap.Strings("recipients", ev.Recipients),
	)
	if len(ev.Recipients) == 0 {
		return d
	}

	subject, html := p.renderer.Render(tmpl, content)
	d.Subject = subject
	d.Results = p.dispatcher.Dispatch(ctx, ev.Recipients, subject, html, nil)

	if failed := notification.Failed(d.Results); failed > 0 {
		log.Warn("Some notifications failed", zap.Int("failed", failed), zap.Int("total", len(d.Results)))
	}
	return d
}

// broadcast tells the site owner about a stored submission. Submissions of
// unclaimed sites are not published.
func (p *Processor) broadcast(log *zap.Logger, form *models.Form, sub *models.Submission) {
	if p.broadcaster == nil || form.Site.UserID == nil {
		return
	}
	err := p.broadcaster.Broadcast(*form.Site.UserID, EventSubmissionCreated, map[string]interface{}{
		"submissionId": sub.PublicID,
		"formId":       form.ID,
		"siteId":       form.SiteID,
		"formName":     form.Name,
		"createdAt":    sub.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		log.Debug("Live feed broadcast skipped", zap.Error(err))
	}
}

func formName(form *models.Form, payload *Payload) string {
	if form.Name != "" {
		return form.Name
	}
	if payload.Ref.FormName != "" {
		return payload.Ref.FormName
	}
	return form.HTMLFormID
}
