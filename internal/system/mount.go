package system

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ParseMounts reads a mount table in /proc/mounts format.
func ParseMounts(path string) ([]MountInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseMountsFrom(f)
}

func ParseMountsFrom(r io.Reader) ([]MountInfo, error) {
	var mounts []MountInfo
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}

		mounts = append(mounts, MountInfo{
			Device:     fields[0],
			Mountpoint: decodeMountPath(fields[1]),
			FSType:     fields[2],
		})
	}

	return mounts, scanner.Err()
}

// MountedDevices returns the set of device paths present in the mount table.
// Pseudo sources such as "proc" or "shm" are skipped. Symlinked device names
// (by-uuid, by-label, mapper aliases) are resolved. An unreadable table
// yields an empty set.
func MountedDevices(path string) map[string]bool {
	devices := make(map[string]bool)

	mounts, err := ParseMounts(path)
	if err != nil {
		return devices
	}

	for _, m := range mounts {
		if !filepath.IsAbs(m.Device) {
			continue
		}
		devices[m.Device] = true
		if real, err := filepath.EvalSymlinks(m.Device); err == nil {
			devices[real] = true
		}
	}
	return devices
}

// decodeMountPath replaces common octal escapes in /proc/mounts.
func decodeMountPath(s string) string {
	s = strings.ReplaceAll(s, `\040`, " ")
	s = strings.ReplaceAll(s, `\011`, "\t")
	s = strings.ReplaceAll(s, `\134`, `\`)
	return s
}
