// internal/notify/notifier.go
//
// Delivery of validation and allocation outcomes to applicants. Email
// goes through SES; an SMS through SNS is added for allocation
// results when enabled, since those are the time-critical ones.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"admissions-workers/internal/common/config"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/common/metrics"
	"admissions-workers/internal/models"
	"admissions-workers/internal/store"
)

var ErrSendFailed = errors.New("notification send failed")

// Interfaces over the AWS clients so handlers can be tested without
// real credentials.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Notifier delivers one outcome notification.
type Notifier interface {
	Send(ctx context.Context, event models.NotificationEvent) error
}

type AWSNotifier struct {
	sesClient SESService
	snsClient SNSService
	store     store.Store
	cfg       config.NotificationConfig
	logger    logger.Logger
}

func NewAWSNotifier(sesClient SESService, snsClient SNSService, st store.Store, cfg config.NotificationConfig, log logger.Logger) *AWSNotifier {
	return &AWSNotifier{
		sesClient: sesClient,
		snsClient: snsClient,
		store:     st,
		cfg:       cfg,
		logger:    log.WithFields(map[string]interface{}{"component": "notifier"}),
	}
}

func (n *AWSNotifier) Send(ctx context.Context, event models.NotificationEvent) error {
	rec, err := n.store.GetByEmail(ctx, event.Email)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient %s: %w", event.Email, err)
	}

	subject, body := buildMessage(event, rec.Name)

	if n.cfg.Email.Enabled {
		if err := n.sendEmail(ctx, event.Email, subject, body); err != nil {
			metrics.NotificationsSent.WithLabelValues("email", "failed").Inc()
			return fmt.Errorf("%w: %v", ErrSendFailed, err)
		}
		metrics.NotificationsSent.WithLabelValues("email", "sent").Inc()
	}

	if n.cfg.SMS.Enabled && event.Kind == models.NotificationAllocation && rec.MobileNumber != "" {
		if err := n.sendSMS(ctx, "+91"+rec.MobileNumber, subject); err != nil {
			// Email already went out; an SMS failure is logged but
			// does not fail the notification.
			metrics.NotificationsSent.WithLabelValues("sms", "failed").Inc()
			n.logger.Warn("sms delivery failed", map[string]interface{}{
				"email": event.Email,
				"error": err.Error(),
			})
		} else {
			metrics.NotificationsSent.WithLabelValues("sms", "sent").Inc()
		}
	}

	return nil
}

func (n *AWSNotifier) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.cfg.Email.FromEmail),
	})
	return err
}

func (n *AWSNotifier) sendSMS(ctx context.Context, to, message string) error {
	input := &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	}
	if n.cfg.SMS.SenderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(n.cfg.SMS.SenderID),
			},
		}
	}
	_, err := n.snsClient.Publish(ctx, input)
	return err
}

func buildMessage(event models.NotificationEvent, name string) (subject, body string) {
	switch {
	case event.Kind == models.NotificationValidation && event.Verdict == models.VerdictValid:
		subject = "Your application has been verified"
		body = fmt.Sprintf("Dear %s,\n\nYour application details and documents have been verified successfully. "+
			"You are now in the merit queue for seat allocation.\n", name)
	case event.Kind == models.NotificationValidation:
		subject = "Action needed: problems found in your application"
		body = fmt.Sprintf("Dear %s,\n\nWe found the following problems while verifying your application:\n\n- %s\n\n"+
			"Please correct your application; it will be verified again automatically.\n",
			name, strings.Join(event.Issues, "\n- "))
	case event.Kind == models.NotificationAllocation && event.Verdict == models.VerdictAccepted:
		subject = "Congratulations! You have been allotted a seat"
		body = fmt.Sprintf("Dear %s,\n\nCongratulations! Based on your JEE rank you have been allotted a seat "+
			"in your chosen stream. Further admission instructions will follow.\n", name)
	default:
		subject = "Seat allocation result"
		body = fmt.Sprintf("Dear %s,\n\nWe regret to inform you that a seat could not be allotted to you "+
			"in this round. You will be considered again if seats become available.\n", name)
	}
	return subject, body
}
