package preclear

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"

	"preclear_disk/internal/system"
)

// ErrScriptMissing is returned when the preclear script is not installed.
var ErrScriptMissing = errors.New("preclear script not present")

// ScriptInfo describes the installed preclear script.
type ScriptInfo struct {
	Path     string `json:"path"`
	Present  bool   `json:"present"`
	Version  string `json:"version,omitempty"`
	Noprompt bool   `json:"noprompt"`
}

// DetectScript checks for the script at path, asks it for its version and
// looks for unattended-mode support by searching its text for marker. Builds
// that do not report a version are assumed to prompt.
func DetectScript(ctx context.Context, runner system.Runner, path, marker string) ScriptInfo {
	info := ScriptInfo{Path: path}
	if !system.FileExists(path) {
		return info
	}
	info.Present = true

	if out, err := runner.Run(ctx, path, "-v"); err == nil {
		// "preclear_disk.sh version: 0.8.6-beta"
		if _, version, ok := strings.Cut(out, ":"); ok {
			info.Version = strings.TrimSpace(version)
		}
	}

	if marker != "" && info.Version != "" {
		if data, err := os.ReadFile(path); err == nil {
			info.Noprompt = bytes.Contains(data, []byte(marker))
		}
	}
	return info
}
