// Package notify delivers one-time codes over SES and account lifecycle
// events over SNS. Everything here is best effort; callers log failures
// and move on.
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Mailer sends one-time codes through SES.
type Mailer struct {
	client *ses.Client
	sender string
}

// NewMailer builds an SES mailer for the region. sender must be an SES
// verified address.
func NewMailer(ctx context.Context, region, sender string) (*Mailer, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &Mailer{client: ses.NewFromConfig(cfg), sender: sender}, nil
}

// SendVerificationCode emails an email verification code.
func (m *Mailer) SendVerificationCode(ctx context.Context, email, code string) error {
	return m.send(ctx, email, "Verify your email address",
		fmt.Sprintf("Your verification code is %s.", code))
}

// SendPasswordResetCode emails a password reset code.
func (m *Mailer) SendPasswordResetCode(ctx context.Context, email, code string) error {
	return m.send(ctx, email, "Password reset requested",
		fmt.Sprintf("Your password reset code is %s. If you did not request a reset, ignore this message.", code))
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) error {
	_, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(m.sender),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
	})
	return err
}
