package secrets

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultRotateTimeout bounds a rotation command when the caller's context
// has no deadline.
const DefaultRotateTimeout = 2 * time.Minute

// ErrEmptyRotation is returned when a rotation command succeeds but prints
// nothing, which would otherwise blank the item.
var ErrEmptyRotation = errors.New("rotation command produced no value")

// runRotationCommand runs command with /bin/sh and returns its stdout with
// trailing line endings removed. The command must print only the new value.
func runRotationCommand(ctx context.Context, command string) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultRotateTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	// Grandchildren can hold stdout open after the shell is killed.
	cmd.WaitDelay = time.Second

	output, err := cmd.Output()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("rotation command: %w", ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("exit code %d: %s", exitErr.ExitCode(), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}

	value := strings.TrimRight(string(output), "\r\n")
	if value == "" {
		return "", ErrEmptyRotation
	}
	return value, nil
}
