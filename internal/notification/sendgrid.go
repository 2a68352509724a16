package notification

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultSendGridURL = "https://api.sendgrid.com"

// SendGridProvider sends email through the SendGrid v3 mail API
type SendGridProvider struct {
	apiKey  string
	baseURL string
	from    Sender
	client  *http.Client
}

// NewSendGridProvider creates a provider; an empty baseURL uses the public API
func NewSendGridProvider(apiKey, baseURL string, from Sender) *SendGridProvider {
	if baseURL == "" {
		baseURL = defaultSendGridURL
	}
	return &SendGridProvider{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		from:    from,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SendGridProvider) Name() string {
	return "sendgrid"
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridAttachment struct {
	Content     string `json:"content"`
	Filename    string `json:"filename"`
	Type        string `json:"type,omitempty"`
	Disposition string `json:"disposition"`
}

type sendGridMail struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
	Attachments      []sendGridAttachment      `json:"attachments,omitempty"`
}

func (s *SendGridProvider) Send(ctx context.Context, message *Message) error {
	if s.apiKey == "" {
		return fmt.Errorf("sendgrid api key is not configured")
	}
	if message.To == "" {
		return fmt.Errorf("recipient is required")
	}

	mail := sendGridMail{
		Personalizations: []sendGridPersonalization{{To: []sendGridAddress{{Email: message.To}}}},
		From:             sendGridAddress{Email: s.from.Email, Name: s.from.Name},
		Subject:          message.Subject,
		Content:          []sendGridContent{{Type: "text/html", Value: message.HTML}},
	}
	for _, a := range message.Attachments {
		mail.Attachments = append(mail.Attachments, sendGridAttachment{
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			Filename:    a.Filename,
			Type:        a.ContentType,
			Disposition: "attachment",
		})
	}

	payload, err := json.Marshal(mail)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/mail/send", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &SendError{Provider: s.Name(), Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return nil
}
