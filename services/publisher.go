package services

import (
	"context"
	"encoding/json"

	"github.com/yashrajoria/checkout-service/models"
	aws_pkg "github.com/yashrajoria/checkout-service/pkg/aws"
)

// EventPublisher delivers order lifecycle events to the configured event bus.
type EventPublisher interface {
	Publish(ctx context.Context, event models.OrderEvent) error
}

// NoopPublisher drops every event. Used when EVENT_BUS is "none".
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, models.OrderEvent) error { return nil }

// SNSEventPublisher publishes order events as JSON messages to an SNS topic.
type SNSEventPublisher struct {
	client   aws_pkg.SNSPublisher
	topicArn string
}

func NewSNSEventPublisher(client aws_pkg.SNSPublisher, topicArn string) *SNSEventPublisher {
	return &SNSEventPublisher{client: client, topicArn: topicArn}
}

func (p *SNSEventPublisher) Publish(ctx context.Context, event models.OrderEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if typed, ok := p.client.(typedSNSPublisher); ok {
		return typed.PublishWithType(ctx, p.topicArn, event.Type, b)
	}
	return p.client.Publish(ctx, p.topicArn, b)
}

type typedSNSPublisher interface {
	PublishWithType(ctx context.Context, topicArn, eventType string, message []byte) error
}

// MetricsRecorder counts business events. Satisfied by *aws_pkg.MetricsClient.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

type noopMetrics struct{}

func (noopMetrics) RecordCount(context.Context, string, map[string]string) error { return nil }
