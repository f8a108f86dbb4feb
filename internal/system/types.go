package system

import (
	"context"
)

// Runner executes external commands. Run blocks until the command exits and
// returns its stdout; Background starts the command and does not wait for it.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
	Background(name string, args ...string) error
}

// MountInfo is a single entry from the mount table.
type MountInfo struct {
	Device     string
	Mountpoint string
	FSType     string
}
