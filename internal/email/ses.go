package email

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailService handles sending emails via AWS SES. All sends are
// best-effort: callers log failures and move on, account flows never
// block on email delivery.
type EmailService struct {
	client    *ses.Client
	fromEmail string
	fromName  string
}

// NewEmailService creates a new email service using AWS SES
func NewEmailService(region, fromEmail, fromName string) (*EmailService, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &EmailService{
		client:    ses.NewFromConfig(cfg),
		fromEmail: fromEmail,
		fromName:  fromName,
	}, nil
}

// SendWelcomeEmail greets a freshly registered user
func (e *EmailService) SendWelcomeEmail(ctx context.Context, toEmail, username string) error {
	subject := "Welcome to SocialFeed"
	htmlBody := fmt.Sprintf(`
		<h2>Hey @%s, welcome aboard!</h2>
		<p>Your account is ready. Follow a few people and your feed will start filling up.</p>
	`, username)
	textBody := fmt.Sprintf("Hey @%s, welcome aboard! Your account is ready.", username)

	return e.send(ctx, toEmail, subject, htmlBody, textBody)
}

// SendTwoFactorEnabledEmail notifies the user that 2FA was turned on for
// their account, so a hijacked session enabling it does not go unnoticed.
func (e *EmailService) SendTwoFactorEnabledEmail(ctx context.Context, toEmail string) error {
	subject := "Two-factor authentication enabled"
	htmlBody := `
		<p>Two-factor authentication was just enabled on your SocialFeed account.</p>
		<p>If this wasn't you, reset your password immediately.</p>
	`
	textBody := "Two-factor authentication was just enabled on your SocialFeed account. If this wasn't you, reset your password immediately."

	return e.send(ctx, toEmail, subject, htmlBody, textBody)
}

func (e *EmailService) send(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(fmt.Sprintf("%s <%s>", e.fromName, e.fromEmail)),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(htmlBody),
					Charset: aws.String("UTF-8"),
				},
				Text: &types.Content{
					Data:    aws.String(textBody),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	if _, err := e.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
