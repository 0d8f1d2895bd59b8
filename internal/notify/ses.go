package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/GoblinVrc/service-request-backend/internal/models"
)

type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESNotifier emails the request contact through SES
type SESNotifier struct {
	client    sesAPI
	fromEmail string
	replyTo   string
}

// NewSESNotifier creates an email notifier using the instance role
func NewSESNotifier(cfg aws.Config, fromEmail, replyTo string) *SESNotifier {
	return &SESNotifier{client: sesv2.NewFromConfig(cfg), fromEmail: fromEmail, replyTo: replyTo}
}

func (e *SESNotifier) RequestCreated(ctx context.Context, req *models.ServiceRequest) error {
	subject := fmt.Sprintf("Service request %s received", req.RequestCode)
	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>Your service request <strong>%s</strong> has been submitted.</p>
<p>Reason: %s<br>Urgency: %s</p>
<p>Your request has been routed to the appropriate service team and you will receive updates via email.</p>`,
		html.EscapeString(req.ContactName),
		html.EscapeString(req.RequestCode),
		html.EscapeString(req.MainReason),
		html.EscapeString(string(req.UrgencyLevel)),
	)
	return e.sendEmail(ctx, req.ContactEmail, subject, body)
}

func (e *SESNotifier) StatusChanged(ctx context.Context, req *models.ServiceRequest, from, to models.RequestStatus) error {
	subject := fmt.Sprintf("Service request %s is now %s", req.RequestCode, to)
	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>The status of service request <strong>%s</strong> changed from %s to <strong>%s</strong>.</p>`,
		html.EscapeString(req.ContactName),
		html.EscapeString(req.RequestCode),
		html.EscapeString(string(from)),
		html.EscapeString(string(to)),
	)
	return e.sendEmail(ctx, req.ContactEmail, subject, body)
}

func (e *SESNotifier) sendEmail(ctx context.Context, toEmail, subject, htmlBody string) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(e.fromEmail),
		Destination:      &sestypes.Destination{ToAddresses: []string{toEmail}},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(subject)},
				Body:    &sestypes.Body{Html: &sestypes.Content{Data: aws.String(htmlBody)}},
			},
		},
	}
	if e.replyTo != "" {
		input.ReplyToAddresses = []string{e.replyTo}
	}
	if _, err := e.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
