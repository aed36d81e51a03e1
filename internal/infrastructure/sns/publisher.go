// Package sns publishes issued phone codes to an SNS topic for delivery.
package sns

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/phone-auth-api/internal/config"
	"github.com/phone-auth-api/internal/domain"
	"github.com/phone-auth-api/internal/infrastructure/awscfg"
)

// EventOTPIssued is the event_type message attribute on every publish.
const EventOTPIssued = "otp.issued"

// PublishAPI is the subset of the SNS client used here.
type PublishAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// OTPIssuedEvent is the JSON body of an otp.issued message.
type OTPIssuedEvent struct {
	UserID      string           `json:"user_id"`
	PhoneNumber string           `json:"phone_number"`
	Kind        domain.TokenKind `json:"kind"`
	Code        string           `json:"code"`
	ExpiresAt   time.Time        `json:"expires_at"`
}

// Publisher hands codes to a downstream SMS worker subscribed to the topic.
type Publisher struct {
	client   PublishAPI
	topicARN string
}

func NewClient(ctx context.Context, cfg *config.Config) (*sns.Client, error) {
	awsCfg, err := awscfg.Load(ctx, cfg, cfg.SNSRegion)
	if err != nil {
		return nil, err
	}
	clientOpts := []func(*sns.Options){}
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return sns.NewFromConfig(awsCfg, clientOpts...), nil
}

func NewPublisher(client PublishAPI, topicARN string) *Publisher {
	return &Publisher{client: client, topicARN: topicARN}
}

func (p *Publisher) OTPIssued(ctx context.Context, u *domain.User, t *domain.OTPToken) error {
	body, err := json.Marshal(OTPIssuedEvent{
		UserID:      u.UserID,
		PhoneNumber: u.PhoneNumber,
		Kind:        t.Kind,
		Code:        t.Code,
		ExpiresAt:   t.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("marshal otp event: %w", err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(EventOTPIssued)},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

// Discard drops every event. It is used when no topic is configured.
type Discard struct{}

func (Discard) OTPIssued(context.Context, *domain.User, *domain.OTPToken) error { return nil }
