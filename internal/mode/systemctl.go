package mode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/jmylchreest/mixarr/internal/observability"
)

// SystemctlRunner drives systemd units through the systemctl binary.
type SystemctlRunner struct {
	logger *slog.Logger
}

// NewSystemctlRunner returns a runner that shells out to systemctl.
func NewSystemctlRunner(logger *slog.Logger) *SystemctlRunner {
	return &SystemctlRunner{logger: observability.WithComponent(logger, "systemctl")}
}

// Start issues systemctl start for the unit.
func (r *SystemctlRunner) Start(ctx context.Context, unit string) error {
	return r.run(ctx, "start", unit)
}

// Stop issues systemctl stop for the unit.
func (r *SystemctlRunner) Stop(ctx context.Context, unit string) error {
	return r.run(ctx, "stop", unit)
}

// IsActive reports whether systemd considers the unit active. A non-zero
// exit from is-active means inactive, not an error.
func (r *SystemctlRunner) IsActive(ctx context.Context, unit string) (bool, error) {
	cmd := exec.CommandContext(ctx, "systemctl", "is-active", "--quiet", unit)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, fmt.Errorf("systemctl is-active %s: %w", unit, err)
}

func (r *SystemctlRunner) run(ctx context.Context, verb, unit string) error {
	cmd := exec.CommandContext(ctx, "systemctl", verb, unit)
	output, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(output))
		if msg != "" {
			return fmt.Errorf("systemctl %s %s: %w: %s", verb, unit, err, msg)
		}
		return fmt.Errorf("systemctl %s %s: %w", verb, unit, err)
	}
	r.logger.Debug("systemctl", slog.String("verb", verb), slog.String("unit", unit))
	return nil
}
