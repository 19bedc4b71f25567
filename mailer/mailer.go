// Package mailer sends download links and failure notices for data request
// exports. Two backends are available: the government SMTP relay and SES.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
)

// Message is a single outbound email. HTMLBody is optional; when set the
// message is sent as multipart/alternative with Body as the text part.
type Message struct {
	From     string
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

// Mailer sends email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Mode selects the mail backend.
type Mode string

const (
	ModeSMTP Mode = "smtp"
	ModeSES  Mode = "ses"
)

// Config holds settings for both backends; only the selected mode's fields
// are required.
type Config struct {
	Mode Mode

	// SMTP relay, host:port. The BC government relay accepts unauthenticated
	// mail from inside the network.
	SMTPHost string

	// SES static credentials.
	AWSAccessKey string
	AWSSecretKey string
	AWSRegion    string

	Logger *slog.Logger
}

// New builds the mailer for the configured mode.
func New(cfg Config) (Mailer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Mode {
	case ModeSMTP, "":
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("smtp host required")
		}
		return &smtpMailer{host: cfg.SMTPHost, logger: logger}, nil
	case ModeSES:
		return newSESMailer(cfg.AWSAccessKey, cfg.AWSSecretKey, cfg.AWSRegion, logger)
	default:
		return nil, fmt.Errorf("unknown mail mode %q", cfg.Mode)
	}
}

func (m Message) validate() error {
	if m.From == "" {
		return fmt.Errorf("message from address required")
	}
	if len(m.To) == 0 {
		return fmt.Errorf("message needs at least one recipient")
	}
	if m.Subject == "" {
		return fmt.Errorf("message subject required")
	}
	return nil
}
