// Package pubsub announces finished crawl runs on Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
)

// EventCrawlCompleted is the event attribute attached to every summary.
const EventCrawlCompleted = "crawl.completed"

// Notifier publishes crawl reports to a topic.
type Notifier struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

var _ crawler.Notifier = (*Notifier)(nil)

// New creates a Notifier for the provided topic.
func New(topic *pubsub.Topic) *Notifier {
	return &Notifier{topic: topic}
}

// Dial connects to Pub/Sub and returns a Notifier that owns the client.
func Dial(ctx context.Context, projectID, topicID string) (*Notifier, error) {
	if projectID == "" || topicID == "" {
		return nil, fmt.Errorf("pubsub project id and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	return &Notifier{client: client, topic: client.Topic(topicID)}, nil
}

// Notify marshals the report to JSON and waits for the publish to be acknowledged.
func (n *Notifier) Notify(ctx context.Context, report crawler.Report) error {
	if n == nil || n.topic == nil {
		return fmt.Errorf("pubsub topic is not configured")
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"run_id": report.RunID,
			"event":  EventCrawlCompleted,
		},
	}
	if _, err := n.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close flushes pending publishes and closes the client when the Notifier owns it.
func (n *Notifier) Close() error {
	if n == nil || n.topic == nil {
		return nil
	}
	n.topic.Stop()
	if n.client == nil {
		return nil
	}
	if err := n.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
