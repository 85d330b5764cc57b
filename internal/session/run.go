package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/chainguard-dev/clog"
)

var ErrHandoff = fmt.Errorf("failed to hand off to ssh")

// Run hands the controlling terminal to the composed command and blocks
// until the session ends. The child's exit status is the session's result;
// its own diagnostics go straight to the caller's stderr, uninterpreted.
func Run(ctx context.Context, argv []string) (int, error) {
	clog.FromContext(ctx).Debug("starting session", "argv", argv)

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 0, fmt.Errorf("%w: %w", ErrHandoff, err)
	}
	return 0, nil
}
