package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/amillerrr/video-publisher/pkg/models"
)

// SQSAPI is the subset of the SQS client used for notifications.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSNotifier announces published videos on a queue so downstream
// consumers (thumbnailers, feeds) can react.
type SQSNotifier struct {
	client   SQSAPI
	queueURL string
}

// NewSQSNotifier creates a notifier for queueURL.
func NewSQSNotifier(client SQSAPI, queueURL string) *SQSNotifier {
	return &SQSNotifier{client: client, queueURL: queueURL}
}

// NotifyPublished sends one JSON message describing event.
func (n *SQSNotifier) NotifyPublished(ctx context.Context, event models.PublishedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = n.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"aspectClass": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(event.AspectClass)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send published event: %w", err)
	}

	return nil
}
