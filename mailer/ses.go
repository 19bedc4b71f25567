package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

type sesMailer struct {
	client *sesv2.Client
	logger *slog.Logger
}

func newSESMailer(accessKey, secretKey, region string, logger *slog.Logger) (*sesMailer, error) {
	if accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("ses credentials required")
	}
	if region == "" {
		region = "ca-central-1"
	}

	cred := credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(cred),
		awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &sesMailer{client: sesv2.NewFromConfig(cfg), logger: logger}, nil
}

func (m *sesMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	body := &types.Body{
		Text: &types.Content{Data: &msg.Body},
	}
	if msg.HTMLBody != "" {
		body.Html = &types.Content{Data: &msg.HTMLBody}
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: &msg.From,
		Destination:      &types.Destination{ToAddresses: msg.To},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Body:    body,
				Subject: &types.Content{Data: &msg.Subject},
			},
		},
	}

	if _, err := m.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("send mail via ses: %w", err)
	}

	m.logger.Info("Sent email", "backend", "ses", "to", strings.Join(msg.To, ","), "subject", msg.Subject)
	return nil
}
