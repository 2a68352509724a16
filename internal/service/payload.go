// Package service turns incoming form submissions into stored records and
// routed notification emails.
package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Rocksteady808/roolify-sub002/internal/models"
	"github.com/Rocksteady808/roolify-sub002/internal/routing"
)

// ErrInvalidPayload is returned for bodies that are not a usable submission.
var ErrInvalidPayload = errors.New("invalid payload")

// reservedKeys identify the form in a flat body and are not form fields
var reservedKeys = []string{"formId", "formName", "siteId", "html_form_id"}

// Payload is a decoded webhook body
type Payload struct {
	Ref         models.FormRef
	Fields      routing.Fields
	TriggerType string
}

type webflowEnvelope struct {
	TriggerType string          `json:"triggerType"`
	Payload     json.RawMessage `json:"payload"`
}

type webflowSubmission struct {
	Name          string         `json:"name"`
	SiteID        string         `json:"siteId"`
	FormID        string         `json:"formId"`
	FormElementID string         `json:"formElementId"`
	Data          routing.Fields `json:"data"`
}

// ParsePayload decodes either a flat field object carrying formId/siteId
// alongside the fields, or a Webflow form_submission webhook.
func ParsePayload(body []byte) (*Payload, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidPayload)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if env, ok := envelope(top); ok {
		return parseWebflow(env)
	}

	var fields routing.Fields
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	p := &Payload{Fields: fields}
	p.Ref.SiteID = reserved(fields, "siteId")
	p.Ref.FormName = reserved(fields, "formName")
	p.Ref.FormID = reserved(fields, "formId")
	if p.Ref.FormID == "" {
		p.Ref.FormID = reserved(fields, "html_form_id")
	}
	p.Fields.Remove(reservedKeys...)
	return p, nil
}

// envelope reports whether top is a Webflow webhook: a string triggerType
// next to a payload object.
func envelope(top map[string]json.RawMessage) (webflowEnvelope, bool) {
	var env webflowEnvelope
	if err := json.Unmarshal(top["triggerType"], &env.TriggerType); err != nil || env.TriggerType == "" {
		return env, false
	}
	env.Payload = bytes.TrimSpace(top["payload"])
	if len(env.Payload) == 0 || env.Payload[0] != '{' {
		return env, false
	}
	return env, true
}

func parseWebflow(env webflowEnvelope) (*Payload, error) {
	var sub webflowSubmission
	if err := json.Unmarshal(env.Payload, &sub); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	formID := sub.FormID
	if formID == "" {
		formID = sub.FormElementID
	}
	return &Payload{
		Ref: models.FormRef{
			SiteID:   strings.TrimSpace(sub.SiteID),
			FormID:   strings.TrimSpace(formID),
			FormName: strings.TrimSpace(sub.Name),
		},
		Fields:      sub.Data,
		TriggerType: env.TriggerType,
	}, nil
}

func reserved(fields routing.Fields, key string) string {
	v, ok := fields.Get(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.String())
}

// Validate checks that the payload names a site and a form
func (p *Payload) Validate() error {
	switch {
	case strings.TrimSpace(p.Ref.SiteID) == "":
		return fmt.Errorf("%w: siteId is required", ErrInvalidPayload)
	case strings.TrimSpace(p.Ref.FormID) == "":
		return fmt.Errorf("%w: formId is required", ErrInvalidPayload)
	}
	return nil
}
