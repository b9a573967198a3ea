package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"go.uber.org/zap"

	"github.com/RajaMuhammadAwais/AiOps/internal/model"
)

// Restarter restarts one service instance and returns an identifier of
// what was restarted.
type Restarter interface {
	RestartService(ctx context.Context, service string) (string, error)
}

// ServiceRestartHandler remediates alerts by restarting the affected
// service. The target service comes from the rule's params, falling
// back to the alert's service label.
type ServiceRestartHandler struct {
	restarter Restarter
	logger    *zap.Logger
}

// NewServiceRestartHandler creates a service restart handler.
func NewServiceRestartHandler(restarter Restarter, logger *zap.Logger) *ServiceRestartHandler {
	return &ServiceRestartHandler{
		restarter: restarter,
		logger:    logger.Named("restart"),
	}
}

// Kind returns the action kind this handler serves.
func (h *ServiceRestartHandler) Kind() model.ActionKind {
	return model.ActionServiceRestart
}

// Execute restarts the target service.
func (h *ServiceRestartHandler) Execute(ctx context.Context, action model.ActionSpec, alert *model.AlertRecord) (*model.ActionOutcome, error) {
	service := action.Params["service"]
	if service == "" {
		service = alert.Labels["service"]
	}
	if service == "" {
		return &model.ActionOutcome{
			Success: false,
			Message: "no service to restart: neither rule params nor alert labels name one",
		}, nil
	}

	h.logger.Info("restarting service",
		zap.String("service", service),
		zap.String("alert_id", alert.ID))

	target, err := h.restarter.RestartService(ctx, service)
	if err != nil {
		return &model.ActionOutcome{
			Success: false,
			Message: fmt.Sprintf("restart of %s failed: %v", service, err),
		}, nil
	}
	return &model.ActionOutcome{
		Success: true,
		Message: fmt.Sprintf("restarted service %s", service),
		Details: map[string]interface{}{"service": service, "target": target},
	}, nil
}

// DockerRestarter restarts services running as Docker containers,
// matched by container name.
type DockerRestarter struct {
	cli         client.APIClient
	stopTimeout time.Duration
	logger      *zap.Logger
}

// NewDockerRestarter connects to the Docker daemon from the
// environment. stopTimeout bounds how long a container may take to
// stop before being killed.
func NewDockerRestarter(stopTimeout time.Duration, logger *zap.Logger) (*DockerRestarter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	if stopTimeout <= 0 {
		stopTimeout = 10 * time.Second
	}
	return &DockerRestarter{
		cli:         cli,
		stopTimeout: stopTimeout,
		logger:      logger.Named("docker"),
	}, nil
}

// RestartService restarts the first running container whose name
// matches the service.
func (r *DockerRestarter) RestartService(ctx context.Context, service string) (string, error) {
	containers, err := r.cli.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", service)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to list containers: %w", err)
	}
	if len(containers) == 0 {
		return "", fmt.Errorf("no running container matches service %q", service)
	}

	target := pickContainer(containers, service)
	seconds := int(r.stopTimeout.Seconds())
	if err := r.cli.ContainerRestart(ctx, target.ID, container.StopOptions{Timeout: &seconds}); err != nil {
		return "", fmt.Errorf("failed to restart container %s: %w", target.ID[:12], err)
	}

	r.logger.Info("container restarted",
		zap.String("service", service),
		zap.String("container_id", target.ID[:12]))
	return target.ID, nil
}

// pickContainer prefers an exact name match over the first filter hit.
func pickContainer(containers []types.Container, service string) types.Container {
	for _, c := range containers {
		for _, name := range c.Names {
			if strings.TrimPrefix(name, "/") == service {
				return c
			}
		}
	}
	return containers[0]
}
