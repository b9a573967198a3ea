// Package ingest connects the engine to the alert bus. Monitoring
// sources publish AlertRecords to JetStream; the consumer feeds them
// through the orchestrator on a bounded worker pool and publishes each
// processing result back to the bus.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/RajaMuhammadAwais/AiOps/internal/correlate"
	"github.com/RajaMuhammadAwais/AiOps/internal/model"
	"github.com/RajaMuhammadAwais/AiOps/internal/orchestrator"
)

const (
	alertStreamName       = "ALERTS"
	alertStreamSubjects   = "alerts.>"
	remediationStreamName = "REMEDIATION"
	remediationSubjects   = "remediation.>"

	// SubjectAlertIncoming carries inbound AlertRecords.
	SubjectAlertIncoming = "alerts.incoming"
	// SubjectFeedback carries correlation feedback and suppression
	// registrations from operators or an ML layer.
	SubjectFeedback = "alerts.feedback"

	resultSubjectPrefix = "remediation.result."
	queueGroup          = "aiops_engines"
)

// DefaultConcurrency bounds how many alerts are processed at once.
const DefaultConcurrency = 8

// Config defines configuration for the consumer.
type Config struct {
	Concurrency int `mapstructure:"concurrency"`
}

// FeedbackMessage is the payload accepted on the feedback subject.
// Either field may be set; empty fields are ignored.
type FeedbackMessage struct {
	Feedback          string `json:"feedback,omitempty"`
	SuppressSignature string `json:"suppress_signature,omitempty"`
}

// Consumer subscribes to the alert bus and drives the orchestrator.
type Consumer struct {
	logger *zap.Logger
	js     nats.JetStreamContext
	orch   *orchestrator.Orchestrator

	sem  chan struct{}
	subs []*nats.Subscription
	wg   sync.WaitGroup

	mu  sync.RWMutex
	ctx context.Context
}

// NewConsumer creates a consumer and ensures the alert and remediation
// streams exist.
func NewConsumer(js nats.JetStreamContext, orch *orchestrator.Orchestrator, cfg Config, logger *zap.Logger) (*Consumer, error) {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	consumer := &Consumer{
		logger: logger.Named("ingest"),
		js:     js,
		orch:   orch,
		sem:    make(chan struct{}, concurrency),
		ctx:    context.Background(),
	}

	if err := consumer.setup(); err != nil {
		return nil, err
	}
	return consumer, nil
}

// setup creates or updates the JetStream streams.
func (c *Consumer) setup() error {
	streams := []struct {
		name     string
		subjects []string
	}{
		{name: alertStreamName, subjects: []string{alertStreamSubjects}},
		{name: remediationStreamName, subjects: []string{remediationSubjects}},
	}

	for _, stream := range streams {
		streamInfo, err := c.js.StreamInfo(stream.name)
		if err != nil && err != nats.ErrStreamNotFound {
			return fmt.Errorf("failed to get stream info: %w", err)
		}

		if streamInfo == nil {
			_, err = c.js.AddStream(&nats.StreamConfig{
				Name:       stream.name,
				Subjects:   stream.subjects,
				Retention:  nats.LimitsPolicy,
				MaxAge:     24 * time.Hour,
				MaxMsgs:    -1,
				MaxBytes:   -1,
				Discard:    nats.DiscardOld,
				MaxMsgSize: 1 * 1024 * 1024,
				Storage:    nats.FileStorage,
				Replicas:   1,
				Duplicates: time.Hour,
			})
			if err != nil {
				return fmt.Errorf("failed to create stream %s: %w", stream.name, err)
			}
			c.logger.Info("Created stream", zap.String("name", stream.name))
		} else {
			config := streamInfo.Config
			config.Subjects = stream.subjects
			config.MaxAge = 24 * time.Hour

			_, err = c.js.UpdateStream(&config)
			if err != nil {
				return fmt.Errorf("failed to update stream %s: %w", stream.name, err)
			}
			c.logger.Info("Updated stream", zap.String("name", stream.name))
		}
	}
	return nil
}

// Start subscribes to the alert and feedback subjects. The context
// bounds all in-flight processing: cancelling it makes running actions
// record a cancellation failure and stop.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	alertSub, err := c.js.QueueSubscribe(
		SubjectAlertIncoming,
		queueGroup,
		c.handleAlert,
		nats.ManualAck(),
		nats.AckWait(30*time.Second),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to alerts: %w", err)
	}
	c.subs = append(c.subs, alertSub)

	feedbackSub, err := c.js.Subscribe(
		SubjectFeedback,
		c.handleFeedback,
		nats.ManualAck(),
		nats.AckWait(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to feedback: %w", err)
	}
	c.subs = append(c.subs, feedbackSub)

	c.logger.Info("consumer started",
		zap.String("subject", SubjectAlertIncoming),
		zap.Int("concurrency", cap(c.sem)))
	return nil
}

// Stop drains the subscriptions and waits for in-flight alerts.
func (c *Consumer) Stop() {
	for _, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			c.logger.Warn("failed to drain subscription", zap.Error(err))
		}
	}
	c.wg.Wait()
	c.logger.Info("consumer stopped")
}

// handleAlert unmarshals one inbound alert and processes it on the
// worker pool. Malformed payloads are logged and dropped; they must
// never halt the stream.
func (c *Consumer) handleAlert(msg *nats.Msg) {
	var alert model.AlertRecord
	if err := json.Unmarshal(msg.Data, &alert); err != nil {
		c.logger.Error("Failed to unmarshal alert", zap.Error(err))
		c.ack(msg)
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.sem <- struct{}{}
		defer func() { <-c.sem }()

		ctx := c.runCtx()
		result, err := c.orch.Process(ctx, alert)
		if err != nil {
			c.logger.Warn("alert processing aborted",
				zap.String("alert_id", alert.ID),
				zap.Error(err))
			return
		}
		c.publishResult(result)
	}()

	c.ack(msg)
}

// handleFeedback applies threshold feedback or registers a suppression
// pattern.
func (c *Consumer) handleFeedback(msg *nats.Msg) {
	defer c.ack(msg)

	var feedback FeedbackMessage
	if err := json.Unmarshal(msg.Data, &feedback); err != nil {
		c.logger.Error("Failed to unmarshal feedback", zap.Error(err))
		return
	}

	if feedback.Feedback != "" {
		threshold, err := c.orch.AdjustThreshold(correlate.Feedback(feedback.Feedback))
		if err != nil {
			c.logger.Warn("rejected feedback", zap.Error(err))
		} else {
			c.logger.Info("feedback applied",
				zap.String("feedback", feedback.Feedback),
				zap.Float64("threshold", threshold))
		}
	}
	if feedback.SuppressSignature != "" {
		c.orch.RegisterSuppression(feedback.SuppressSignature)
		c.logger.Info("suppression registered",
			zap.String("signature", feedback.SuppressSignature))
	}
}

// publishResult publishes the processing result to the remediation
// stream, keyed by alert ID.
func (c *Consumer) publishResult(result *orchestrator.ProcessResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("Failed to marshal result",
			zap.String("alert_id", result.AlertID),
			zap.Error(err))
		return
	}

	if _, err := c.js.Publish(resultSubjectPrefix+result.AlertID, data); err != nil {
		c.logger.Error("Failed to publish result",
			zap.String("alert_id", result.AlertID),
			zap.Error(err))
	}
}

func (c *Consumer) ack(msg *nats.Msg) {
	if err := msg.Ack(); err != nil {
		c.logger.Error("Failed to acknowledge message", zap.Error(err))
	}
}

func (c *Consumer) runCtx() context.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ctx
}
