package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoblinVrc/service-request-backend/internal/models"
)

type fakeSES struct {
	sent []*sesv2.SendEmailInput
	err  error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.sent = append(f.sent, in)
	return &sesv2.SendEmailOutput{}, f.err
}

type fakeSNS struct {
	published []*sns.PublishInput
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.published = append(f.published, in)
	return &sns.PublishOutput{MessageId: aws.String("m-1")}, nil
}

func sampleRequest(urgency models.UrgencyLevel) *models.ServiceRequest {
	return &models.ServiceRequest{
		RequestCode:  "SR-US-20261016-000001",
		ContactName:  "Pat <Doe>",
		ContactEmail: "pat@clinic.example",
		ContactPhone: "+15550100",
		MainReason:   "Device fault",
		UrgencyLevel: urgency,
	}
}

func TestSESRequestCreated(t *testing.T) {
	client := &fakeSES{}
	n := &SESNotifier{client: client, fromEmail: "noreply@vendor.example", replyTo: "service@vendor.example"}

	require.NoError(t, n.RequestCreated(context.Background(), sampleRequest(models.UrgencyNormal)))
	require.Len(t, client.sent, 1)

	in := client.sent[0]
	assert.Equal(t, []string{"pat@clinic.example"}, in.Destination.ToAddresses)
	assert.Equal(t, []string{"service@vendor.example"}, in.ReplyToAddresses)
	assert.Contains(t, aws.ToString(in.Content.Simple.Subject.Data), "SR-US-20261016-000001")
	assert.Contains(t, aws.ToString(in.Content.Simple.Body.Html.Data), "Pat &lt;Doe&gt;")
}

func TestSESFailureIsReturned(t *testing.T) {
	n := &SESNotifier{client: &fakeSES{err: errors.New("throttled")}, fromEmail: "noreply@vendor.example"}
	err := n.StatusChanged(context.Background(), sampleRequest(models.UrgencyNormal), models.StatusSubmitted, models.StatusInProgress)
	assert.ErrorContains(t, err, "throttled")
}

func TestSNSOnlyForEscalatedRequests(t *testing.T) {
	client := &fakeSNS{}
	n := &SNSNotifier{client: client}

	require.NoError(t, n.RequestCreated(context.Background(), sampleRequest(models.UrgencyNormal)))
	assert.Empty(t, client.published)

	require.NoError(t, n.RequestCreated(context.Background(), sampleRequest(models.UrgencyCritical)))
	require.Len(t, client.published, 1)
	assert.Equal(t, "+15550100", aws.ToString(client.published[0].PhoneNumber))
	assert.Equal(t, "Transactional", aws.ToString(client.published[0].MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue))
}

type failing struct{ Nop }

func (failing) RequestCreated(context.Context, *models.ServiceRequest) error {
	return errors.New("down")
}

func TestMultiJoinsErrors(t *testing.T) {
	m := Multi{Nop{}, failing{}, failing{}}
	err := m.RequestCreated(context.Background(), sampleRequest(models.UrgencyNormal))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	assert.NoError(t, m.StatusChanged(context.Background(), sampleRequest(models.UrgencyNormal), models.StatusOpen, models.StatusClosed))
}
