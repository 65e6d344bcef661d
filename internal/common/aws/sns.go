// internal/common/aws/sns.go
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type SNSClient struct {
	client *sns.Client
	topic  string
}

func NewSNSClient(ctx context.Context, region, topicARN string) (*SNSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SNSClient{client: sns.NewFromConfig(cfg), topic: topicARN}, nil
}

// Publish pushes a JSON message to the downstream notification topic.
func (s *SNSClient) Publish(ctx context.Context, message string) error {
	input := &sns.PublishInput{
		TopicArn: aws.String(s.topic),
		Message:  aws.String(message),
	}
	_, err := s.client.Publish(ctx, input)
	return err
}
