package handler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"go.uber.org/zap"

	"github.com/RajaMuhammadAwais/AiOps/internal/model"
)

// Scaler changes the replica count of a service and returns the new
// count.
type Scaler interface {
	Scale(ctx context.Context, service string, delta int) (int, error)
}

// ScaleHandler remediates load alerts by scaling a service out or in.
// Params: "service" (falls back to the alert's service label),
// "direction" ("up" or "down", default up), "step" (replicas to add or
// remove, default 1).
type ScaleHandler struct {
	scaler Scaler
	logger *zap.Logger
}

// NewScaleHandler creates a scale handler.
func NewScaleHandler(scaler Scaler, logger *zap.Logger) *ScaleHandler {
	return &ScaleHandler{
		scaler: scaler,
		logger: logger.Named("scale"),
	}
}

// Kind returns the action kind this handler serves.
func (h *ScaleHandler) Kind() model.ActionKind {
	return model.ActionScale
}

// Execute applies the scaling step to the target service.
func (h *ScaleHandler) Execute(ctx context.Context, action model.ActionSpec, alert *model.AlertRecord) (*model.ActionOutcome, error) {
	service := action.Params["service"]
	if service == "" {
		service = alert.Labels["service"]
	}
	if service == "" {
		return &model.ActionOutcome{
			Success: false,
			Message: "no service to scale: neither rule params nor alert labels name one",
		}, nil
	}

	step := 1
	if raw := action.Params["step"]; raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return &model.ActionOutcome{
				Success: false,
				Message: fmt.Sprintf("bad step %q: must be a positive integer", raw),
			}, nil
		}
		step = parsed
	}
	delta := step
	if action.Params["direction"] == "down" {
		delta = -step
	}

	h.logger.Info("scaling service",
		zap.String("service", service),
		zap.Int("delta", delta),
		zap.String("alert_id", alert.ID))

	replicas, err := h.scaler.Scale(ctx, service, delta)
	if err != nil {
		return &model.ActionOutcome{
			Success: false,
			Message: fmt.Sprintf("scaling %s failed: %v", service, err),
		}, nil
	}
	return &model.ActionOutcome{
		Success: true,
		Message: fmt.Sprintf("scaled %s to %d replicas", service, replicas),
		Details: map[string]interface{}{"service": service, "replicas": replicas, "delta": delta},
	}, nil
}

// SwarmScaler adjusts the replica count of a Docker Swarm service.
type SwarmScaler struct {
	cli    client.APIClient
	logger *zap.Logger
}

// NewSwarmScaler connects to the Docker daemon from the environment.
func NewSwarmScaler(logger *zap.Logger) (*SwarmScaler, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &SwarmScaler{cli: cli, logger: logger.Named("swarm")}, nil
}

// Scale shifts the service's replica count by delta, never below one
// replica.
func (s *SwarmScaler) Scale(ctx context.Context, service string, delta int) (int, error) {
	svc, _, err := s.cli.ServiceInspectWithRaw(ctx, service, types.ServiceInspectOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to inspect service %s: %w", service, err)
	}
	if svc.Spec.Mode.Replicated == nil || svc.Spec.Mode.Replicated.Replicas == nil {
		return 0, fmt.Errorf("service %s is not replicated", service)
	}

	current := int(*svc.Spec.Mode.Replicated.Replicas)
	next := current + delta
	if next < 1 {
		next = 1
	}
	replicas := uint64(next)
	svc.Spec.Mode.Replicated.Replicas = &replicas

	resp, err := s.cli.ServiceUpdate(ctx, svc.ID, svc.Version, svc.Spec, types.ServiceUpdateOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to update service %s: %w", service, err)
	}
	for _, warn := range resp.Warnings {
		s.logger.Warn("service update warning",
			zap.String("service", service),
			zap.String("warning", warn))
	}

	s.logger.Info("service scaled",
		zap.String("service", service),
		zap.Int("from", current),
		zap.Int("to", next))
	return next, nil
}
