package messaging

import (
	"context"

	"cloud.google.com/go/pubsub"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

type Client struct {
	googlePubSubClient *pubsub.Client
	topic              *pubsub.Topic
}

type ClientOptions struct {
	ProjectID      string
	Topic          string
	CredentialPath string
}

func New(ctx context.Context, config ClientOptions, opts ...option.ClientOption) (*Client, error) {
	if config.Topic == "" {
		return nil, errors.New("a topic is required to publish")
	}
	if config.CredentialPath != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialPath))
	}

	googlePubSubClient, err := pubsub.NewClient(ctx, config.ProjectID, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Google Pub/Sub client")
	}

	return &Client{
		googlePubSubClient: googlePubSubClient,
		topic:              googlePubSubClient.Topic(config.Topic),
	}, nil
}

func (s *Client) Publish(ctx context.Context, message Message) error {
	msg := &pubsub.Message{
		Data:       message.Data,
		Attributes: message.Attributes,
	}
	if msg.Attributes == nil {
		msg.Attributes = make(map[string]string)
	}

	if _, err := s.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return errors.Wrapf(err, "failed to publish in Google Pub/Sub topic %s", s.topic.ID())
	}
	return nil
}

// Close flushes pending messages and releases the connection.
func (s *Client) Close() error {
	s.topic.Stop()
	return s.googlePubSubClient.Close()
}

// NopPublisher drops every message. It stands in for Client when no topic
// is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, _ Message) error {
	return nil
}
