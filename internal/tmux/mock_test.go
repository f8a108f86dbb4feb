package tmux

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// fakeTmux emulates the subset of the tmux CLI used by Manager.
type fakeTmux struct {
	mu       sync.Mutex
	sessions map[string]*strings.Builder
	geometry map[string]string
	calls    []string
	broken   bool
}

func newFakeTmux() *fakeTmux {
	return &fakeTmux{
		sessions: make(map[string]*strings.Builder),
		geometry: make(map[string]string),
	}
}

func (f *fakeTmux) Run(_ context.Context, name string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, strings.Join(args, " "))
	if f.broken {
		return "", errors.New("exit status 1")
	}

	switch args[0] {
	case "ls":
		if len(f.sessions) == 0 {
			return "", errors.New("no server running on /tmp/tmux-0/default")
		}
		var names []string
		for n := range f.sessions {
			names = append(names, n)
		}
		sort.Strings(names)
		var b strings.Builder
		for _, n := range names {
			fmt.Fprintf(&b, "%s: 1 windows (created Mon Jan  1 00:00:00 2024)\n", n)
		}
		return b.String(), nil
	case "new-session":
		target := args[len(args)-1]
		if _, ok := f.sessions[target]; ok {
			return "", fmt.Errorf("duplicate session: %s", target)
		}
		f.sessions[target] = &strings.Builder{}
		f.geometry[target] = args[3] + "x" + args[5]
		return "", nil
	case "send":
		buf, ok := f.sessions[args[2]]
		if !ok {
			return "", fmt.Errorf("can't find session: %s", args[2])
		}
		buf.WriteString(args[3] + "\n")
		return "", nil
	case "capture-pane":
		buf, ok := f.sessions[args[len(args)-1]]
		if !ok {
			return "", fmt.Errorf("can't find session")
		}
		return buf.String(), nil
	case "kill-session":
		target := args[len(args)-1]
		if _, ok := f.sessions[target]; !ok {
			return "", fmt.Errorf("can't find session: %s", target)
		}
		delete(f.sessions, target)
		return "", nil
	}
	return "", fmt.Errorf("unknown command %q", args[0])
}

func (f *fakeTmux) Background(name string, args ...string) error {
	return nil
}

func (f *fakeTmux) count(cmd string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, cmd) {
			n++
		}
	}
	return n
}
