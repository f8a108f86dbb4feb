package tmux

import (
	"bufio"
	"context"
	"strconv"
	"strings"

	"preclear_disk/internal/config"
	"preclear_disk/internal/logging"
	"preclear_disk/internal/system"
)

// Manager drives detached tmux sessions. Failures of the tmux binary are
// logged and otherwise treated as an absent session.
type Manager struct {
	runner system.Runner
	logger *logging.EnterpriseLogger
	binary string
	width  int
	height int
	prefix string
}

func NewManager(cfg *config.Config, runner system.Runner, logger *logging.EnterpriseLogger) *Manager {
	return &Manager{
		runner: runner,
		logger: logger,
		binary: cfg.Tmux.Binary,
		width:  cfg.Tmux.Width,
		height: cfg.Tmux.Height,
		prefix: cfg.Tmux.SessionPrefix,
	}
}

// SessionName returns the session name used for device, e.g. preclear_disk_sdb.
func (m *Manager) SessionName(device string) string {
	return m.prefix + device
}

// List returns the names of all live sessions.
func (m *Manager) List(ctx context.Context) []string {
	out, err := m.tmux(ctx, "ls")
	if err != nil {
		return nil
	}

	var names []string
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		name, _, _ := strings.Cut(scanner.Text(), ":")
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (m *Manager) Exists(ctx context.Context, name string) bool {
	for _, s := range m.List(ctx) {
		if s == name {
			return true
		}
	}
	return false
}

// Create starts a detached session unless one with the same name is live.
func (m *Manager) Create(ctx context.Context, name string) {
	if m.Exists(ctx, name) {
		return
	}
	m.tmux(ctx, "new-session", "-d",
		"-x", strconv.Itoa(m.width),
		"-y", strconv.Itoa(m.height),
		"-s", name)
}

// SendKeys types text into the session followed by ENTER. Nothing happens if
// the session does not exist.
func (m *Manager) SendKeys(ctx context.Context, name, text string) {
	m.tmux(ctx, "send", "-t", name, text, "ENTER")
}

// Capture returns the pane content including scroll-back. The second result
// is false when the session is absent.
func (m *Manager) Capture(ctx context.Context, name string) (string, bool) {
	if !m.Exists(ctx, name) {
		return "", false
	}
	out, err := m.tmux(ctx, "capture-pane", "-p", "-S", "-", "-t", name)
	if err != nil {
		return "", false
	}
	return out, true
}

// Kill terminates the session if present.
func (m *Manager) Kill(ctx context.Context, name string) {
	if !m.Exists(ctx, name) {
		return
	}
	m.tmux(ctx, "kill-session", "-t", name)
}

func (m *Manager) tmux(ctx context.Context, args ...string) (string, error) {
	out, err := m.runner.Run(ctx, m.binary, args...)
	if err != nil {
		m.logger.Log("DEBUG", "tmux command failed", "args", strings.Join(args, " "), "error", err.Error())
	}
	return out, err
}
