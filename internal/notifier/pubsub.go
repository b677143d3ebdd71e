package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/Kumzy/doctolib-watcher/internal/metrics"
	"github.com/Kumzy/doctolib-watcher/internal/watch"
)

// PubSub publishes messages to a Google Cloud Pub/Sub topic, for deployments
// where a downstream consumer owns the final delivery channel. A publish is
// confirmed only once the server acknowledges it, which keeps the
// commit-after-delivery contract intact.
type PubSub struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *zap.Logger
}

// NewPubSub creates a Pub/Sub-backed notifier. It authenticates using Google
// Cloud's Application Default Credentials and verifies the topic exists.
func NewPubSub(ctx context.Context, projectID, topicID string, logger *zap.Logger) (*PubSub, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("close pubsub client after topic check failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("check pubsub topic %q: %w", topicID, err)
	}
	if !exists {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("close pubsub client after missing topic", zap.Error(cerr))
		}
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", topicID, projectID)
	}
	return &PubSub{client: client, topic: topic, logger: logger}, nil
}

// Notify publishes the message JSON and waits for the server acknowledgement.
func (p *PubSub) Notify(ctx context.Context, msg watch.Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("marshal pubsub payload", zap.Error(err))
		metrics.ObserveDelivery("failed")
		return false
	}

	result := p.topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		p.logger.Error("pubsub publish failed", zap.Error(err))
		metrics.ObserveDelivery("failed")
		return false
	}

	p.logger.Info("notification published", zap.String("title", msg.Title))
	metrics.ObserveDelivery("delivered")
	return true
}

// Close stops the topic's publisher and closes the underlying client.
func (p *PubSub) Close() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
