package handler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/RajaMuhammadAwais/AiOps/internal/model"
)

// defaultScriptTimeout bounds script runtime when the rule does not
// set its own limit.
const defaultScriptTimeout = 30 * time.Second

// ScriptHandler runs an operator-provided remediation script. Params:
// "path" (required), "args" (whitespace-separated), "timeout" (Go
// duration, default 30s). The alert is exposed to the script through
// ALERT_* environment variables. A timeout is reported distinctly from
// a non-zero exit.
type ScriptHandler struct {
	logger         *zap.Logger
	defaultTimeout time.Duration
}

// NewScriptHandler creates a script handler.
func NewScriptHandler(defaultTimeout time.Duration, logger *zap.Logger) *ScriptHandler {
	if defaultTimeout <= 0 {
		defaultTimeout = defaultScriptTimeout
	}
	return &ScriptHandler{
		logger:         logger.Named("script"),
		defaultTimeout: defaultTimeout,
	}
}

// Kind returns the action kind this handler serves.
func (h *ScriptHandler) Kind() model.ActionKind {
	return model.ActionRunScript
}

// Execute runs the configured script and captures its output.
func (h *ScriptHandler) Execute(ctx context.Context, action model.ActionSpec, alert *model.AlertRecord) (*model.ActionOutcome, error) {
	path := action.Params["path"]
	if path == "" {
		return &model.ActionOutcome{
			Success: false,
			Message: "no script path configured",
		}, nil
	}

	timeout := h.defaultTimeout
	if raw := action.Params["timeout"]; raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return &model.ActionOutcome{
				Success: false,
				Message: fmt.Sprintf("bad timeout %q: %v", raw, err),
			}, nil
		}
		timeout = parsed
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := strings.Fields(action.Params["args"])
	cmd := exec.CommandContext(cmdCtx, path, args...)
	cmd.Env = append(os.Environ(),
		"ALERT_ID="+alert.ID,
		"ALERT_NAME="+alert.Name,
		"ALERT_SEVERITY="+string(alert.Severity),
		"ALERT_MESSAGE="+alert.Message,
		"ALERT_SERVICE="+alert.Labels["service"],
	)

	h.logger.Info("running remediation script",
		zap.String("path", path),
		zap.Strings("args", args),
		zap.Duration("timeout", timeout),
		zap.String("alert_id", alert.ID))

	output, err := cmd.CombinedOutput()
	trimmed := strings.TrimSpace(string(output))

	if err != nil {
		if cmdCtx.Err() == context.DeadlineExceeded {
			return &model.ActionOutcome{
				Success: false,
				Message: fmt.Sprintf("script timed out after %s", timeout),
				Details: map[string]interface{}{"path": path, "output": trimmed},
			}, nil
		}
		return &model.ActionOutcome{
			Success: false,
			Message: fmt.Sprintf("script failed: %v", err),
			Details: map[string]interface{}{"path": path, "output": trimmed},
		}, nil
	}

	return &model.ActionOutcome{
		Success: true,
		Message: fmt.Sprintf("script %s completed", path),
		Details: map[string]interface{}{"path": path, "output": trimmed},
	}, nil
}
