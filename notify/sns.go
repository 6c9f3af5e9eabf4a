package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
)

// Publisher emits account lifecycle events to an SNS topic.
type Publisher struct {
	client   *sns.Client
	topicARN string
}

// NewPublisher builds an SNS publisher for the region and topic.
func NewPublisher(ctx context.Context, region, topicARN string) (*Publisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &Publisher{client: sns.NewFromConfig(cfg), topicARN: topicARN}, nil
}

type accountEvent struct {
	Type      string    `json:"type"`
	AccountID uuid.UUID `json:"accountId"`
	Email     string    `json:"email"`
	At        time.Time `json:"at"`
}

// PublishAccountDeleted announces an account deletion to downstream
// consumers.
func (p *Publisher) PublishAccountDeleted(ctx context.Context, accountID uuid.UUID, email string) error {
	payload, err := json.Marshal(accountEvent{
		Type:      "account.deleted",
		AccountID: accountID,
		Email:     email,
		At:        time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(payload)),
	})
	return err
}
