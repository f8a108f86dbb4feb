package system

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

// ProcessExists reports whether pid is present in the process table. The
// procfs directory is authoritative when mounted; otherwise a zero signal is
// sent to the pid.
func ProcessExists(procDir string, pid int) bool {
	if pid <= 0 {
		return false
	}

	if st, err := os.Stat(procDir); err == nil && st.IsDir() {
		_, err := os.Stat(filepath.Join(procDir, strconv.Itoa(pid)))
		return err == nil
	}

	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
