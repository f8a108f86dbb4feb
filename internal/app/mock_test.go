package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"preclear_disk/internal/config"
	"preclear_disk/internal/logging"
)

// fakeHost emulates tmux, the probing tools and the preclear script for a
// host with two unassigned disks: A (sdb, blank) and B (sdc, one mounted
// partition).
type fakeHost struct {
	cfg *config.Config

	mu         sync.Mutex
	sessions   map[string]*strings.Builder
	background []string
}

func (h *fakeHost) Run(_ context.Context, name string, args ...string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch name {
	case h.cfg.Tmux.Binary:
		return h.tmux(args)
	case h.cfg.Paths.ScriptFile:
		return "preclear_disk.sh version: 1.0.22\n", nil
	}

	target := args[len(args)-1]
	disk := diskOf(target)
	if disk == "" {
		return "", errors.New("exit status 2")
	}

	switch {
	case name == "udevadm" && args[1] == "-q":
		return "/devices/virtual/block/" + disk + "\n", nil
	case name == "udevadm":
		return fmt.Sprintf("ID_MODEL=MODEL_%s\nID_SERIAL_SHORT=SER%s\n", disk, disk), nil
	case name == "smartctl" && args[0] == "-i":
		return fmt.Sprintf("Model Family:     Family %s\nDevice Model:     Model %s\nFirmware Version: FW%s\n", disk, disk, disk), nil
	case name == "smartctl" && args[0] == "-A":
		return "194 Temperature_Celsius     0x0022   118   104   000    Old_age   Always       -       31\n", nil
	case name == "blockdev":
		if disk == "A" {
			return "4000787030016\n", nil
		}
		return "2000398934016\n", nil
	case name == "hdparm":
		return "\n" + target + ":\n drive state is:  active/idle\n", nil
	}
	return "", errors.New("exit status 1")
}

func (h *fakeHost) Background(name string, args ...string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.background = append(h.background, strings.Join(append([]string{name}, args...), " "))
	return nil
}

func (h *fakeHost) tmux(args []string) (string, error) {
	switch args[0] {
	case "ls":
		if len(h.sessions) == 0 {
			return "", errors.New("no server running")
		}
		var lines []string
		for n := range h.sessions {
			lines = append(lines, n+": 1 windows (created today)")
		}
		sort.Strings(lines)
		return strings.Join(lines, "\n") + "\n", nil
	case "new-session":
		h.sessions[args[len(args)-1]] = &strings.Builder{}
	case "send":
		if buf, ok := h.sessions[args[2]]; ok {
			buf.WriteString(args[3] + "\n")
			if strings.HasPrefix(args[3], h.cfg.Paths.ScriptFile) {
				buf.WriteString("Answer Yes to continue: \n")
			}
		}
	case "capture-pane":
		if buf, ok := h.sessions[args[len(args)-1]]; ok {
			return buf.String(), nil
		}
		return "", errors.New("can't find session")
	case "kill-session":
		delete(h.sessions, args[len(args)-1])
	}
	return "", nil
}

func diskOf(arg string) string {
	switch {
	case strings.Contains(arg, "DISK_A"), strings.HasSuffix(arg, "/sdb"), strings.HasSuffix(arg, "/A"):
		return "A"
	case strings.Contains(arg, "DISK_B"), strings.HasSuffix(arg, "/sdc"), strings.HasSuffix(arg, "/B"):
		return "B"
	}
	return ""
}

// newTestApp builds an App over a temp-dir host layout.
func newTestApp(t *testing.T) (*App, *fakeHost) {
	t.Helper()
	root := t.TempDir()
	dev := filepath.Join(root, "dev")
	byID := filepath.Join(dev, "disk", "by-id")
	if err := os.MkdirAll(byID, 0755); err != nil {
		t.Fatal(err)
	}

	for _, n := range []string{"sdb", "sdc", "sdc1"} {
		if err := os.WriteFile(filepath.Join(dev, n), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	links := map[string]string{
		"ata-DISK_B":       "sdc",
		"ata-DISK_B-part1": "sdc1",
		"ata-DISK_A":       "sdb",
	}
	for alias, node := range links {
		if err := os.Symlink(filepath.Join(dev, node), filepath.Join(byID, alias)); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.Default()
	cfg.Paths.ByIDDir = byID
	cfg.Paths.SuperDat = filepath.Join(root, "super.dat")
	cfg.Paths.DiskCfg = filepath.Join(root, "disk.cfg")
	cfg.Paths.BootLabelPath = filepath.Join(dev, "disk", "by-label", "UNRAID")
	cfg.Paths.StateDir = filepath.Join(root, "state")
	cfg.Paths.StatusDir = filepath.Join(root, "tmp")
	cfg.Paths.ProcDir = filepath.Join(root, "proc")
	cfg.Paths.MountsFile = filepath.Join(root, "mounts")
	cfg.Paths.ScriptFile = filepath.Join(root, "preclear_disk.sh")
	cfg.Tmux.Binary = filepath.Join(root, "tmux")
	cfg.Reporting.LocalPath = filepath.Join(root, "state", "reports")
	cfg.Preclear.ConfirmTimeout = "200ms"
	cfg.Preclear.PollInterval = "5ms"

	for _, dir := range []string{cfg.Paths.StatusDir, cfg.Paths.ProcDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}
	mounts := filepath.Join(dev, "sdc1") + " /mnt/disks/B xfs rw,noatime 0 0\nproc /proc proc rw 0 0\n"
	if err := os.WriteFile(cfg.Paths.MountsFile, []byte(mounts), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.Paths.ScriptFile, []byte("#!/bin/bash\n"), 0755); err != nil {
		t.Fatal(err)
	}

	host := &fakeHost{cfg: cfg, sessions: make(map[string]*strings.Builder)}
	return NewApp(cfg, logging.NewNop(), host, "test"), host
}
