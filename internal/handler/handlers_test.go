package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/RajaMuhammadAwais/AiOps/internal/model"
)

func serviceAlert(service string) model.AlertRecord {
	return model.AlertRecord{
		ID:        "a1",
		Name:      "HighMemory",
		Severity:  model.SeverityHigh,
		Timestamp: time.Now(),
		Message:   "memory pressure",
		Labels:    map[string]string{"service": service},
		Metrics:   []model.MetricSample{{Name: "memory_usage", Value: 91.5}},
	}
}

type fakeRestarter struct {
	restarted []string
	err       error
}

func (f *fakeRestarter) RestartService(_ context.Context, service string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.restarted = append(f.restarted, service)
	return "container-123", nil
}

func TestServiceRestartHandler(t *testing.T) {
	t.Run("uses rule params first", func(t *testing.T) {
		restarter := &fakeRestarter{}
		h := NewServiceRestartHandler(restarter, zaptest.NewLogger(t))
		alert := serviceAlert("web")

		outcome, err := h.Execute(context.Background(), model.ActionSpec{
			Kind:   model.ActionServiceRestart,
			Params: map[string]string{"service": "payments"},
		}, &alert)

		require.NoError(t, err)
		assert.True(t, outcome.Success)
		assert.Equal(t, []string{"payments"}, restarter.restarted)
		assert.Equal(t, "container-123", outcome.Details["target"])
	})

	t.Run("falls back to alert service label", func(t *testing.T) {
		restarter := &fakeRestarter{}
		h := NewServiceRestartHandler(restarter, zaptest.NewLogger(t))
		alert := serviceAlert("web")

		outcome, err := h.Execute(context.Background(), model.ActionSpec{Kind: model.ActionServiceRestart}, &alert)
		require.NoError(t, err)
		assert.True(t, outcome.Success)
		assert.Equal(t, []string{"web"}, restarter.restarted)
	})

	t.Run("no target service", func(t *testing.T) {
		h := NewServiceRestartHandler(&fakeRestarter{}, zaptest.NewLogger(t))
		alert := serviceAlert("web")
		alert.Labels = nil

		outcome, err := h.Execute(context.Background(), model.ActionSpec{Kind: model.ActionServiceRestart}, &alert)
		require.NoError(t, err)
		assert.False(t, outcome.Success)
		assert.Contains(t, outcome.Message, "no service to restart")
	})

	t.Run("backend failure", func(t *testing.T) {
		h := NewServiceRestartHandler(&fakeRestarter{err: errors.New("daemon unreachable")}, zaptest.NewLogger(t))
		alert := serviceAlert("web")

		outcome, err := h.Execute(context.Background(), model.ActionSpec{Kind: model.ActionServiceRestart}, &alert)
		require.NoError(t, err)
		assert.False(t, outcome.Success)
		assert.Contains(t, outcome.Message, "daemon unreachable")
	})
}

func TestPickContainerPrefersExactName(t *testing.T) {
	containers := []types.Container{
		{ID: "aaa", Names: []string{"/web-sidecar"}},
		{ID: "bbb", Names: []string{"/web"}},
	}
	assert.Equal(t, "bbb", pickContainer(containers, "web").ID)
	assert.Equal(t, "aaa", pickContainer(containers, "nomatch").ID)
}

type fakeFlusher struct {
	scopes  []string
	removed int64
	err     error
}

func (f *fakeFlusher) Flush(_ context.Context, scope string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.scopes = append(f.scopes, scope)
	return f.removed, nil
}

func TestCacheClearHandler(t *testing.T) {
	t.Run("scope from alert label", func(t *testing.T) {
		flusher := &fakeFlusher{removed: 42}
		h := NewCacheClearHandler(flusher, zaptest.NewLogger(t))
		alert := serviceAlert("sessions")

		outcome, err := h.Execute(context.Background(), model.ActionSpec{Kind: model.ActionCacheClear}, &alert)
		require.NoError(t, err)
		assert.True(t, outcome.Success)
		assert.Equal(t, []string{"sessions"}, flusher.scopes)
		assert.Equal(t, int64(42), outcome.Details["entries_removed"])
	})

	t.Run("flush failure", func(t *testing.T) {
		h := NewCacheClearHandler(&fakeFlusher{err: errors.New("connection refused")}, zaptest.NewLogger(t))
		alert := serviceAlert("sessions")

		outcome, err := h.Execute(context.Background(), model.ActionSpec{Kind: model.ActionCacheClear}, &alert)
		require.NoError(t, err)
		assert.False(t, outcome.Success)
		assert.Contains(t, outcome.Message, "cache flush failed")
	})
}

type fakeScaler struct {
	service  string
	delta    int
	replicas int
	err      error
}

func (f *fakeScaler) Scale(_ context.Context, service string, delta int) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.service, f.delta = service, delta
	return f.replicas, nil
}

func TestScaleHandler(t *testing.T) {
	t.Run("scales up by default", func(t *testing.T) {
		scaler := &fakeScaler{replicas: 4}
		h := NewScaleHandler(scaler, zaptest.NewLogger(t))
		alert := serviceAlert("web")

		outcome, err := h.Execute(context.Background(), model.ActionSpec{Kind: model.ActionScale}, &alert)
		require.NoError(t, err)
		assert.True(t, outcome.Success)
		assert.Equal(t, "web", scaler.service)
		assert.Equal(t, 1, scaler.delta)
		assert.Equal(t, 4, outcome.Details["replicas"])
	})

	t.Run("direction down with step", func(t *testing.T) {
		scaler := &fakeScaler{replicas: 2}
		h := NewScaleHandler(scaler, zaptest.NewLogger(t))
		alert := serviceAlert("web")

		outcome, err := h.Execute(context.Background(), model.ActionSpec{
			Kind:   model.ActionScale,
			Params: map[string]string{"direction": "down", "step": "2"},
		}, &alert)
		require.NoError(t, err)
		assert.True(t, outcome.Success)
		assert.Equal(t, -2, scaler.delta)
	})

	t.Run("rejects bad step", func(t *testing.T) {
		h := NewScaleHandler(&fakeScaler{}, zaptest.NewLogger(t))
		alert := serviceAlert("web")

		outcome, err := h.Execute(context.Background(), model.ActionSpec{
			Kind:   model.ActionScale,
			Params: map[string]string{"step": "lots"},
		}, &alert)
		require.NoError(t, err)
		assert.False(t, outcome.Success)
		assert.Contains(t, outcome.Message, "bad step")
	})
}

type fakeNotifier struct {
	messages []string
	err      error
}

func (f *fakeNotifier) Notify(_ context.Context, _ *model.AlertRecord, message string) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, message)
	return nil
}

func TestNotifyTeamHandler(t *testing.T) {
	t.Run("routes to named channel", func(t *testing.T) {
		oncall := &fakeNotifier{}
		h := NewNotifyTeamHandler(zaptest.NewLogger(t))
		h.RegisterChannel("oncall", oncall)
		h.RegisterChannel("platform", &fakeNotifier{})
		alert := serviceAlert("web")

		outcome, err := h.Execute(context.Background(), model.ActionSpec{
			Kind:   model.ActionNotifyTeam,
			Params: map[string]string{"channel": "oncall"},
		}, &alert)
		require.NoError(t, err)
		assert.True(t, outcome.Success)
		require.Len(t, oncall.messages, 1)
		assert.Contains(t, oncall.messages[0], "[HIGH] HighMemory")
		assert.Contains(t, oncall.messages[0], "service: web")
	})

	t.Run("single channel is the default", func(t *testing.T) {
		only := &fakeNotifier{}
		h := NewNotifyTeamHandler(zaptest.NewLogger(t))
		h.RegisterChannel("oncall", only)
		alert := serviceAlert("web")

		outcome, err := h.Execute(context.Background(), model.ActionSpec{Kind: model.ActionNotifyTeam}, &alert)
		require.NoError(t, err)
		assert.True(t, outcome.Success)
		assert.Len(t, only.messages, 1)
	})

	t.Run("unknown channel", func(t *testing.T) {
		h := NewNotifyTeamHandler(zaptest.NewLogger(t))
		h.RegisterChannel("oncall", &fakeNotifier{})
		h.RegisterChannel("platform", &fakeNotifier{})
		alert := serviceAlert("web")

		outcome, err := h.Execute(context.Background(), model.ActionSpec{
			Kind:   model.ActionNotifyTeam,
			Params: map[string]string{"channel": "nobody"},
		}, &alert)
		require.NoError(t, err)
		assert.False(t, outcome.Success)
		assert.Contains(t, outcome.Message, "no notification channel")
	})
}

func TestWebhookNotifier(t *testing.T) {
	t.Run("posts alert json", func(t *testing.T) {
		var received struct {
			Text  string             `json:"text"`
			Alert *model.AlertRecord `json:"alert"`
		}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		n := NewWebhookNotifier(server.URL, time.Second, zaptest.NewLogger(t))
		alert := serviceAlert("web")
		require.NoError(t, n.Notify(context.Background(), &alert, "summary text"))
		assert.Equal(t, "summary text", received.Text)
		require.NotNil(t, received.Alert)
		assert.Equal(t, "a1", received.Alert.ID)
	})

	t.Run("error status surfaces", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		n := NewWebhookNotifier(server.URL, time.Second, zaptest.NewLogger(t))
		alert := serviceAlert("web")
		err := n.Notify(context.Background(), &alert, "summary")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})
}
