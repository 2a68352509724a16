package notification

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Rocksteady808/roolify-sub002/internal/config"
)

// Provider defines the interface for email delivery backends
type Provider interface {
	// Name returns the unique identifier for this provider
	Name() string

	// Send delivers one message to its single recipient
	Send(ctx context.Context, message *Message) error
}

// Message is one outbound email
type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Attachment is a file sent along with a message
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Sender is the From identity used by every provider
type Sender struct {
	Email string
	Name  string
}

func (s Sender) String() string {
	if s.Name == "" {
		return s.Email
	}
	return fmt.Sprintf("%q <%s>", s.Name, s.Email)
}

// SendError is a non-success response from the email API
type SendError struct {
	Provider string
	Status   int
	Body     string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Status, e.Body)
}

// NewProvider builds the provider selected by cfg.Provider
func NewProvider(cfg config.EmailConfig, logger *zap.Logger) (Provider, error) {
	from := Sender{Email: cfg.FromEmail, Name: cfg.FromName}

	switch strings.ToLower(cfg.Provider) {
	case "sendgrid", "":
		return NewSendGridProvider(cfg.SendGridAPIKey, cfg.SendGridBaseURL, from), nil
	case "smtp":
		return NewSMTPProvider(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		}, from), nil
	case "log":
		return NewLogProvider(logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider: %s", cfg.Provider)
	}
}
