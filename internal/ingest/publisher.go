package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/RajaMuhammadAwais/AiOps/internal/model"
)

// Publisher pushes alerts and feedback onto the bus. Monitoring
// sources use it; tests use it to drive the consumer.
type Publisher struct {
	js     nats.JetStreamContext
	logger *zap.Logger
}

// NewPublisher creates a publisher on the given JetStream context.
func NewPublisher(js nats.JetStreamContext, logger *zap.Logger) *Publisher {
	return &Publisher{
		js:     js,
		logger: logger.Named("publisher"),
	}
}

// PublishAlert publishes one alert to the incoming subject.
func (p *Publisher) PublishAlert(ctx context.Context, alert model.AlertRecord) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	if _, err := p.js.Publish(SubjectAlertIncoming, data, nats.Context(ctx)); err != nil {
		p.logger.Error("Failed to publish alert",
			zap.String("alert_id", alert.ID),
			zap.Error(err))
		return err
	}

	p.logger.Debug("alert published",
		zap.String("alert_id", alert.ID),
		zap.String("name", alert.Name))
	return nil
}

// PublishFeedback publishes a feedback message.
func (p *Publisher) PublishFeedback(ctx context.Context, feedback FeedbackMessage) error {
	data, err := json.Marshal(feedback)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %w", err)
	}

	if _, err := p.js.Publish(SubjectFeedback, data, nats.Context(ctx)); err != nil {
		p.logger.Error("Failed to publish feedback", zap.Error(err))
		return err
	}
	return nil
}
