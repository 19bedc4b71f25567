package mailer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{
			name: "valid",
			msg: Message{
				From:    "noreply@gov.bc.ca",
				To:      []string{"requester@example.com"},
				Subject: "Your data export",
				Body:    "link inside",
			},
		},
		{
			name:    "missing from",
			msg:     Message{To: []string{"a@b.c"}, Subject: "s"},
			wantErr: true,
		},
		{
			name:    "missing recipients",
			msg:     Message{From: "a@b.c", Subject: "s"},
			wantErr: true,
		},
		{
			name:    "missing subject",
			msg:     Message{From: "a@b.c", To: []string{"d@e.f"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuildMIMEPlain(t *testing.T) {
	msg := Message{
		From:    "noreply@gov.bc.ca",
		To:      []string{"requester@example.com"},
		Subject: "Your data export",
		Body:    "Download at https://example.com/export.zip",
	}

	payload := string(buildMIME(msg))
	assert.Contains(t, payload, "From: noreply@gov.bc.ca\r\n")
	assert.Contains(t, payload, "To: requester@example.com\r\n")
	assert.Contains(t, payload, "Content-Type: text/plain")
	assert.NotContains(t, payload, "multipart/alternative")
	assert.True(t, strings.HasSuffix(payload, msg.Body))
}

func TestBuildMIMEAlternative(t *testing.T) {
	msg := Message{
		From:     "noreply@gov.bc.ca",
		To:       []string{"a@example.com", "b@example.com"},
		Subject:  "Your data export",
		Body:     "plain link",
		HTMLBody: "<a href=\"https://example.com\">link</a>",
	}

	payload := string(buildMIME(msg))
	assert.Contains(t, payload, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, payload, "multipart/alternative")
	assert.Contains(t, payload, "plain link")
	assert.Contains(t, payload, msg.HTMLBody)
	assert.Contains(t, payload, "--"+altBoundary+"--")
}

func TestNewUnknownMode(t *testing.T) {
	_, err := New(Config{Mode: "carrier-pigeon"})
	require.Error(t, err)
}

func TestNewSMTPDefaults(t *testing.T) {
	m, err := New(Config{SMTPHost: "apps.smtp.gov.bc.ca:25"})
	require.NoError(t, err)
	assert.IsType(t, &smtpMailer{}, m)
}
