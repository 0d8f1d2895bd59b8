package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/GoblinVrc/service-request-backend/internal/models"
)

type snsAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier texts the request contact for Urgent and Critical requests only.
// The contact phone must be in E.164 format (e.g., +12065550100).
type SNSNotifier struct {
	client snsAPI
}

// NewSNSNotifier creates an SMS notifier
func NewSNSNotifier(cfg aws.Config) *SNSNotifier {
	return &SNSNotifier{client: sns.NewFromConfig(cfg)}
}

func (s *SNSNotifier) RequestCreated(ctx context.Context, req *models.ServiceRequest) error {
	if !escalated(req) {
		return nil
	}
	return s.sendSMS(ctx, req.ContactPhone,
		fmt.Sprintf("%s service request %s received. Our team will contact you shortly.", req.UrgencyLevel, req.RequestCode))
}

func (s *SNSNotifier) StatusChanged(ctx context.Context, req *models.ServiceRequest, _, to models.RequestStatus) error {
	if !escalated(req) {
		return nil
	}
	return s.sendSMS(ctx, req.ContactPhone, fmt.Sprintf("Service request %s is now %s.", req.RequestCode, to))
}

func escalated(req *models.ServiceRequest) bool {
	return req.ContactPhone != "" && (req.UrgencyLevel == models.UrgencyUrgent || req.UrgencyLevel == models.UrgencyCritical)
}

func (s *SNSNotifier) sendSMS(ctx context.Context, phoneNumber, message string) error {
	input := &sns.PublishInput{
		Message:     aws.String(message),
		PhoneNumber: aws.String(phoneNumber),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	}
	if _, err := s.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("failed to send sms: %w", err)
	}
	return nil
}
