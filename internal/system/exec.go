package system

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ExecRunner runs commands through os/exec with a per-call timeout.
type ExecRunner struct {
	timeout time.Duration
}

// NewExecRunner creates a runner; a non-positive timeout disables the limit.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{timeout: timeout}
}

// Run executes name with args and returns stdout. Stderr is only folded into
// the returned error.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	c := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		c, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(c, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := stdout.String()
	if c.Err() == context.DeadlineExceeded {
		return out, fmt.Errorf("command timed out: %s %s", name, strings.Join(args, " "))
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Background starts name with args detached from the caller. The child is
// reaped in a goroutine; its result is discarded.
func (r *ExecRunner) Background(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}
