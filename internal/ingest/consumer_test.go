package ingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RajaMuhammadAwais/AiOps/internal/correlate"
	"github.com/RajaMuhammadAwais/AiOps/internal/heal"
	"github.com/RajaMuhammadAwais/AiOps/internal/model"
	"github.com/RajaMuhammadAwais/AiOps/internal/orchestrator"
	"github.com/RajaMuhammadAwais/AiOps/internal/testutil"
)

type recordingHandler struct {
	kind model.ActionKind
}

func (h *recordingHandler) Kind() model.ActionKind { return h.kind }

func (h *recordingHandler) Execute(_ context.Context, _ model.ActionSpec, _ *model.AlertRecord) (*model.ActionOutcome, error) {
	return &model.ActionOutcome{Success: true, Message: "notified"}, nil
}

func TestConsumer(t *testing.T) {
	js, cleanup := testutil.SetupJetStream(t)
	defer cleanup()

	logger := zap.NewNop()

	correlator := correlate.New(correlate.Config{}, nil, logger)
	engine := heal.NewEngine(nil, logger)
	require.NoError(t, engine.AddRule(model.SelfHealingRule{
		ID:   "cpu-high",
		Name: "cpu-high",
		Clauses: []model.ConditionClause{
			{Kind: model.ClauseMetricGT, Metric: "cpu_usage", Threshold: 90},
		},
		Action:  model.ActionSpec{Kind: model.ActionNotifyTeam},
		Enabled: true,
	}))
	dispatcher := heal.NewDispatcher(heal.NewHistory(nil, logger), nil, logger)
	require.NoError(t, dispatcher.RegisterHandler(&recordingHandler{kind: model.ActionNotifyTeam}))
	orch := orchestrator.New(orchestrator.Config{}, correlator, engine, dispatcher, nil, logger)

	consumer, err := NewConsumer(js, orch, Config{Concurrency: 4}, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, consumer.Start(ctx))
	defer consumer.Stop()

	publisher := NewPublisher(js, logger)
	base := time.Now()

	waitForResult := func(t *testing.T, alertID string, publish func()) orchestrator.ProcessResult {
		t.Helper()
		sub, err := js.SubscribeSync(resultSubjectPrefix + alertID)
		require.NoError(t, err)
		defer sub.Unsubscribe()

		publish()

		msg, err := sub.NextMsg(10 * time.Second)
		require.NoError(t, err)
		var result orchestrator.ProcessResult
		require.NoError(t, json.Unmarshal(msg.Data, &result))
		return result
	}

	t.Run("Setup", func(t *testing.T) {
		stream, err := js.StreamInfo(alertStreamName)
		require.NoError(t, err)
		assert.Equal(t, []string{alertStreamSubjects}, stream.Config.Subjects)

		stream, err = js.StreamInfo(remediationStreamName)
		require.NoError(t, err)
		assert.Equal(t, []string{remediationSubjects}, stream.Config.Subjects)
	})

	t.Run("Process Published Alert", func(t *testing.T) {
		result := waitForResult(t, "a1", func() {
			require.NoError(t, publisher.PublishAlert(context.Background(), model.AlertRecord{
				ID:        "a1",
				Name:      "HighCPU",
				Severity:  model.SeverityHigh,
				Source:    model.SourcePrometheus,
				Timestamp: base,
				Message:   "cpu saturation",
				Labels:    map[string]string{"service": "web"},
				Metrics:   []model.MetricSample{{Name: "cpu_usage", Value: 95}},
			}))
		})

		assert.Equal(t, "a1", result.AlertID)
		assert.False(t, result.Suppressed)
		assert.Equal(t, 1, result.MatchedRules)
		require.Len(t, result.ActionsTaken, 1)
		assert.True(t, result.ActionsTaken[0].Outcome.Success)
		assert.Equal(t, "cpu-high", result.ActionsTaken[0].RuleID)
	})

	t.Run("Malformed Payload Does Not Halt Processing", func(t *testing.T) {
		_, err := js.Publish(SubjectAlertIncoming, []byte("{not json"))
		require.NoError(t, err)

		result := waitForResult(t, "a2", func() {
			require.NoError(t, publisher.PublishAlert(context.Background(), model.AlertRecord{
				ID:        "a2",
				Name:      "HighCPU",
				Severity:  model.SeverityHigh,
				Source:    model.SourcePrometheus,
				Timestamp: base.Add(2 * time.Hour),
				Message:   "cpu saturation again",
				Labels:    map[string]string{"service": "web"},
				Metrics:   []model.MetricSample{{Name: "cpu_usage", Value: 97}},
			}))
		})

		assert.Equal(t, "a2", result.AlertID)
		assert.Equal(t, 1, result.MatchedRules)
	})

	t.Run("Suppressed Alert Reported", func(t *testing.T) {
		noisy := func(id string, offset time.Duration) model.AlertRecord {
			return model.AlertRecord{
				ID:        id,
				Name:      "DiskFillingUp",
				Severity:  model.SeverityLow,
				Source:    model.SourcePrometheus,
				Timestamp: base.Add(4*time.Hour + offset),
				Message:   "disk usage above soft limit on volume data",
				Labels:    map[string]string{"service": "web"},
			}
		}

		first := waitForResult(t, "a3", func() {
			require.NoError(t, publisher.PublishAlert(context.Background(), noisy("a3", 0)))
		})
		assert.False(t, first.Suppressed)

		second := waitForResult(t, "a4", func() {
			require.NoError(t, publisher.PublishAlert(context.Background(), noisy("a4", time.Minute)))
		})
		assert.True(t, second.Suppressed)
		assert.Equal(t, 0, second.MatchedRules)
	})

	t.Run("Feedback Adjusts Threshold", func(t *testing.T) {
		require.NoError(t, publisher.PublishFeedback(context.Background(), FeedbackMessage{
			Feedback: "too_aggressive",
		}))
		require.Eventually(t, func() bool {
			return correlator.Threshold() > correlate.DefaultSimilarityThreshold
		}, 5*time.Second, 50*time.Millisecond)
		assert.InDelta(t, 0.75, correlator.Threshold(), 1e-9)
	})

	t.Run("Feedback Registers Suppression", func(t *testing.T) {
		require.NoError(t, publisher.PublishFeedback(context.Background(), FeedbackMessage{
			SuppressSignature: "service=web|pattern_detected",
		}))
		require.Eventually(t, func() bool {
			return correlator.SuppressionCount() > 0
		}, 5*time.Second, 50*time.Millisecond)
	})
}
