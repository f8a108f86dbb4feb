package probe

import (
	"context"
	"errors"
	"strings"
	"sync"
)

type reply struct {
	out string
	err error
}

// fakeRunner answers commands from a table keyed by the full command line.
// Unknown commands fail.
type fakeRunner struct {
	mu      sync.Mutex
	replies map[string]reply
	calls   []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{replies: make(map[string]reply)}
}

func (f *fakeRunner) on(cmdline, out string, err error) {
	f.replies[cmdline] = reply{out: out, err: err}
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cmdline := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, cmdline)
	if r, ok := f.replies[cmdline]; ok {
		return r.out, r.err
	}
	return "", errors.New("exit status 1")
}

func (f *fakeRunner) Background(name string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, strings.Join(append([]string{name}, args...), " "))
	return nil
}

func (f *fakeRunner) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}
