package preclear

import (
	"context"
	"path/filepath"
	"strings"

	"preclear_disk/internal/config"
	"preclear_disk/internal/logging"
	"preclear_disk/internal/system"
)

// State is the operator-facing state of a device.
type State int

const (
	StateNotStarted State = iota
	StateMounted
	// StateStarting is a record without a pid field: the launch placeholder or
	// a short record left by older script builds. Liveness cannot be checked,
	// so it is handled like a finished run that still offers stop.
	StateStarting
	StateRunning
	StateFinished
	StateOrphaned
)

var stateNames = map[State]string{
	StateNotStarted: "not started",
	StateMounted:    "mounted",
	StateStarting:   "starting",
	StateRunning:    "running",
	StateFinished:   "finished",
	StateOrphaned:   "orphaned",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Action is an operation offered for a device in its current state.
type Action string

const (
	ActionStart        Action = "start"
	ActionPreview      Action = "preview"
	ActionStop         Action = "stop"
	ActionClearStats   Action = "clear_stats"
	ActionClearSession Action = "clear_session"
)

// Signals are the independently updated inputs of a status resolution.
type Signals struct {
	SessionAlive bool
	Mounted      bool
	ProcessAlive bool

	// Record is nil when no status file exists.
	Record *StatusRecord
}

// Status is the resolved state with its message and offered actions.
type Status struct {
	State   State    `json:"state"`
	Message string   `json:"message,omitempty"`
	Actions []Action `json:"actions"`
}

func (s Status) Has(action Action) bool {
	for _, a := range s.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Resolve derives the status of a device. A status record takes precedence
// over a bare session, and a bare session over the mount state. Preview is
// offered whenever a session is alive.
func Resolve(sig Signals) Status {
	var st Status

	switch {
	case sig.Record != nil:
		st.Message = strings.ReplaceAll(sig.Record.Message, "^n", " ")
		switch {
		case !sig.Record.HasPID:
			st.State = StateStarting
		case sig.ProcessAlive:
			st.State = StateRunning
		default:
			st.State = StateFinished
		}
		if sig.SessionAlive {
			st.Actions = append(st.Actions, ActionPreview)
		}
		if st.State == StateFinished {
			st.Actions = append(st.Actions, ActionClearStats)
		} else {
			st.Actions = append(st.Actions, ActionStop)
		}
	case sig.SessionAlive:
		st.State = StateOrphaned
		st.Actions = []Action{ActionPreview, ActionClearSession}
	case sig.Mounted:
		st.State = StateMounted
		st.Message = "Disk mounted"
		st.Actions = []Action{}
	default:
		st.State = StateNotStarted
		st.Actions = []Action{ActionStart}
	}

	return st
}

// Resolver gathers the signals of a device from tmux, the status directory,
// the process table and the mount table.
type Resolver struct {
	cfg      *config.Config
	sessions Sessions
	logger   *logging.EnterpriseLogger

	processExists func(pid int) bool
}

func NewResolver(cfg *config.Config, sessions Sessions, logger *logging.EnterpriseLogger) *Resolver {
	r := &Resolver{
		cfg:      cfg,
		sessions: sessions,
		logger:   logger,
	}
	r.processExists = func(pid int) bool {
		return system.ProcessExists(cfg.Paths.ProcDir, pid)
	}
	return r
}

// Status resolves device given its node, its partition aliases and the set
// of mounted device nodes.
func (r *Resolver) Status(ctx context.Context, device, node string, partitions []string, mounted map[string]bool) Status {
	sig := Signals{
		SessionAlive: r.sessions.Exists(ctx, r.sessions.SessionName(device)),
		Mounted:      DeviceMounted(node, partitions, mounted),
	}

	rec, ok, err := ReadStatus(r.cfg.Paths.StatusDir, device)
	if err != nil {
		r.logger.Log("DEBUG", "status file unreadable", "device", device, "error", err.Error())
	}
	if ok {
		sig.Record = &rec
		if rec.HasPID {
			// a blank pid field names the proc directory itself
			sig.ProcessAlive = rec.PID == 0 || r.processExists(rec.PID)
		}
	}

	return Resolve(sig)
}

// DeviceMounted reports whether the whole-disk node or any of its partitions
// is mounted.
func DeviceMounted(node string, partitions []string, mounted map[string]bool) bool {
	return (node != "" && mounted[node]) || PartitionsMounted(partitions, mounted)
}

// PartitionsMounted reports whether any partition alias, or the node it
// resolves to, is in the mounted set.
func PartitionsMounted(partitions []string, mounted map[string]bool) bool {
	for _, p := range partitions {
		if mounted[p] {
			return true
		}
		if real, err := filepath.EvalSymlinks(p); err == nil && mounted[real] {
			return true
		}
	}
	return false
}
