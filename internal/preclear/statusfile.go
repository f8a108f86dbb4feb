package preclear

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"preclear_disk/internal/system"
)

const statusFilePrefix = "preclear_stat_"

// StatusRecord is one line written by the orchestrator or the script:
// device|tag|message[|pid].
type StatusRecord struct {
	Device  string
	Tag     string
	Message string
	// HasPID is set for four-field records written while a watcher process is
	// tracked. PID is zero for a blank field and -1 when the field does not
	// parse.
	HasPID bool
	PID    int
}

func (r StatusRecord) String() string {
	s := r.Device + "|" + r.Tag + "|" + r.Message
	if r.HasPID {
		s += "|"
		if r.PID != 0 {
			s += strconv.Itoa(r.PID)
		}
	}
	return s
}

// ParseStatusRecord splits a status line. Missing trailing fields are empty.
func ParseStatusRecord(line string) StatusRecord {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), "|")
	for len(fields) < 3 {
		fields = append(fields, "")
	}

	rec := StatusRecord{Device: fields[0], Tag: fields[1], Message: fields[2]}
	if len(fields) > 3 {
		rec.HasPID = true
		if field := strings.TrimSpace(fields[3]); field != "" {
			rec.PID = -1
			if pid, err := strconv.Atoi(field); err == nil {
				rec.PID = pid
			}
		}
	}
	return rec
}

// StatusPath returns the status file of device under dir.
func StatusPath(dir, device string) string {
	return filepath.Join(dir, statusFilePrefix+device)
}

// ReadStatus loads the status record of device. The second result is false
// when no file exists.
func ReadStatus(dir, device string) (StatusRecord, bool, error) {
	data, err := os.ReadFile(StatusPath(dir, device))
	if err != nil {
		if os.IsNotExist(err) {
			return StatusRecord{}, false, nil
		}
		return StatusRecord{}, false, fmt.Errorf("read status of %s: %w", device, err)
	}
	return ParseStatusRecord(string(data)), true, nil
}

func WriteStatus(dir string, rec StatusRecord) error {
	if err := system.WriteFileAtomic(StatusPath(dir, rec.Device), []byte(rec.String()), 0644); err != nil {
		return fmt.Errorf("write status of %s: %w", rec.Device, err)
	}
	return nil
}

// RemoveStatus deletes the status file of device; a missing file is not an
// error.
func RemoveStatus(dir, device string) error {
	err := os.Remove(StatusPath(dir, device))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove status of %s: %w", device, err)
	}
	return nil
}
