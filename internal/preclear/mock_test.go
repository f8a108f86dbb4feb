package preclear

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"preclear_disk/internal/config"
)

// fakeSessions is an in-memory session backend. onSend lets a test play the
// part of the program running inside the session.
type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]*strings.Builder
	created  int
	killed   int
	sent     []string
	onSend   func(f *fakeSessions, name, text string)
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]*strings.Builder)}
}

func (f *fakeSessions) SessionName(device string) string {
	return "preclear_disk_" + device
}

func (f *fakeSessions) Exists(_ context.Context, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[name]
	return ok
}

func (f *fakeSessions) Create(_ context.Context, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[name]; ok {
		return
	}
	f.sessions[name] = &strings.Builder{}
	f.created++
}

func (f *fakeSessions) SendKeys(_ context.Context, name, text string) {
	f.mu.Lock()
	buf, ok := f.sessions[name]
	if !ok {
		f.mu.Unlock()
		return
	}
	buf.WriteString(text + "\n")
	f.sent = append(f.sent, text)
	hook := f.onSend
	f.mu.Unlock()

	if hook != nil {
		hook(f, name, text)
	}
}

func (f *fakeSessions) Capture(_ context.Context, name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf, ok := f.sessions[name]
	if !ok {
		return "", false
	}
	return buf.String(), true
}

func (f *fakeSessions) Kill(_ context.Context, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[name]; ok {
		delete(f.sessions, name)
		f.killed++
	}
}

func (f *fakeSessions) print(name, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if buf, ok := f.sessions[name]; ok {
		buf.WriteString(text + "\n")
	}
}

func (f *fakeSessions) sentKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// fakeRunner answers the script version query and records background jobs.
type fakeRunner struct {
	mu         sync.Mutex
	version    string
	background []string
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	if len(args) == 1 && args[0] == "-v" && r.version != "" {
		return filepath.Base(name) + " version: " + r.version + "\n", nil
	}
	return "", errors.New("exit status 1")
}

func (r *fakeRunner) Background(name string, args ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.background = append(r.background, strings.Join(append([]string{name}, args...), " "))
	return nil
}

// testConfig returns a config rooted in a temp dir with a short handshake
// window and an installed script whose body is scriptBody.
func testConfig(t *testing.T, scriptBody string) *config.Config {
	t.Helper()
	root := t.TempDir()

	cfg := config.Default()
	cfg.Paths.StatusDir = filepath.Join(root, "tmp")
	cfg.Paths.ProcDir = filepath.Join(root, "proc")
	cfg.Paths.ScriptFile = filepath.Join(root, "preclear_disk.sh")
	cfg.Preclear.ConfirmTimeout = "100ms"
	cfg.Preclear.PollInterval = "5ms"

	for _, dir := range []string{cfg.Paths.StatusDir, cfg.Paths.ProcDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}
	if scriptBody != "" {
		if err := os.WriteFile(cfg.Paths.ScriptFile, []byte(scriptBody), 0755); err != nil {
			t.Fatal(err)
		}
	}
	return cfg
}
