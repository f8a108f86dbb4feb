package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/sys/unix"

	"preclear_disk/internal/config"
)

var (
	// ErrNotRoot is returned when the configuration demands root and the
	// effective uid is not 0.
	ErrNotRoot = errors.New("root privileges required")
	// ErrInvalidDevice is returned for device names that are not plain
	// kernel block device names.
	ErrInvalidDevice = errors.New("invalid device name")
)

var deviceNameRe = regexp.MustCompile(`^[a-z]+[a-z0-9]*$`)

// geteuid is replaced in tests.
var geteuid = unix.Geteuid

func SecurityChecks(cfg *config.Config) error {
	if cfg == nil {
		cfg = config.Default()
	}

	if cfg.Security.RequireRoot && geteuid() != 0 {
		return ErrNotRoot
	}

	return nil
}

// ValidateDevice accepts a bare kernel device name ("sdb") or a /dev path
// ("/dev/sdb") and returns the bare name. Anything that could escape a
// session command line or a status file path is rejected.
func ValidateDevice(device string) (string, error) {
	name := strings.TrimSpace(device)
	name = strings.TrimPrefix(name, "/dev/")
	if name == "" || len(name) > 32 || !deviceNameRe.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDevice, device)
	}
	return name, nil
}

// ShouldSkipDisk reports whether a by-id key matches one of the operator's
// excluded serials.
func ShouldSkipDisk(cfg *config.Config, key string) bool {
	if cfg == nil {
		return false
	}

	base := filepath.Base(key)
	for _, excluded := range cfg.Security.ExcludedSerials {
		if excluded != "" && strings.Contains(base, excluded) {
			return true
		}
	}

	return false
}
