package preclear

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"preclear_disk/internal/config"
	"preclear_disk/internal/logging"
	"preclear_disk/internal/security"
	"preclear_disk/internal/system"
)

// StartingMessage is the placeholder status written at launch.
const StartingMessage = "Starting..."

// Sessions is the detached-session backend used to host preclear runs.
type Sessions interface {
	SessionName(device string) string
	Exists(ctx context.Context, name string) bool
	Create(ctx context.Context, name string)
	SendKeys(ctx context.Context, name, text string)
	Capture(ctx context.Context, name string) (string, bool)
	Kill(ctx context.Context, name string)
}

// Launch describes one accepted start request.
type Launch struct {
	RunID         string    `json:"run_id"`
	Device        string    `json:"device"`
	Session       string    `json:"session"`
	Command       string    `json:"command"`
	Options       Options   `json:"options"`
	ScriptVersion string    `json:"script_version,omitempty"`
	Noprompt      bool      `json:"noprompt"`
	Confirmed     bool      `json:"confirmed"`
	StartedAt     time.Time `json:"started_at"`
}

// Orchestrator launches, stops and clears preclear runs, one session per
// device.
type Orchestrator struct {
	cfg      *config.Config
	sessions Sessions
	runner   system.Runner
	logger   *logging.EnterpriseLogger
}

func NewOrchestrator(cfg *config.Config, sessions Sessions, runner system.Runner, logger *logging.EnterpriseLogger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		sessions: sessions,
		runner:   runner,
		logger:   logger,
	}
}

// Script reports the installed preclear script.
func (o *Orchestrator) Script(ctx context.Context) ScriptInfo {
	return DetectScript(ctx, o.runner, o.cfg.Paths.ScriptFile, o.cfg.Preclear.NopromptMarker)
}

// Start replaces any session of device with a fresh one running the script
// and answers its confirmation prompt. A prompt that never appears is not an
// error; the run waits for the operator and Confirmed stays false.
func (o *Orchestrator) Start(ctx context.Context, device string, opts Options) (Launch, error) {
	dev, err := security.ValidateDevice(device)
	if err != nil {
		return Launch{}, err
	}
	if err := opts.Validate(); err != nil {
		return Launch{}, err
	}

	script := o.Script(ctx)
	if !script.Present {
		return Launch{}, fmt.Errorf("%w: %s", ErrScriptMissing, script.Path)
	}

	launch := Launch{
		RunID:         uuid.New().String(),
		Device:        dev,
		Session:       o.sessions.SessionName(dev),
		Command:       opts.Command(script.Path, dev, script.Noprompt),
		Options:       opts,
		ScriptVersion: script.Version,
		Noprompt:      script.Noprompt,
		StartedAt:     time.Now(),
	}

	o.logger.Log("INFO", "starting preclear",
		"run_id", launch.RunID,
		"device", dev,
		"session", launch.Session,
		"command", launch.Command,
		"noprompt", launch.Noprompt)

	o.sessions.Kill(ctx, launch.Session)
	o.sessions.Create(ctx, launch.Session)

	if opts.WritesPlaceholder() {
		rec := StatusRecord{Device: dev, Tag: "NN", Message: StartingMessage}
		if err := WriteStatus(o.cfg.Paths.StatusDir, rec); err != nil {
			o.logger.Log("WARN", "failed to write status placeholder", "run_id", launch.RunID, "error", err.Error())
		}
	}

	o.sessions.SendKeys(ctx, launch.Session, launch.Command)

	if opts.NeedsConfirmation() && !script.Noprompt {
		launch.Confirmed = o.confirm(ctx, launch.Session)
		if launch.Confirmed {
			o.logger.Log("INFO", "preclear confirmed", "run_id", launch.RunID, "device", dev)
		} else {
			o.logger.Log("WARN", "confirmation prompt not seen, run awaits operator", "run_id", launch.RunID, "device", dev)
		}
	}

	return launch, nil
}

// confirm polls the session output for the confirmation marker and answers
// it. It gives up after the confirm timeout or when ctx is done.
func (o *Orchestrator) confirm(ctx context.Context, name string) bool {
	deadline := time.NewTimer(o.cfg.GetConfirmTimeout())
	defer deadline.Stop()
	ticker := time.NewTicker(o.cfg.GetPollInterval())
	defer ticker.Stop()

	for {
		if out, ok := o.sessions.Capture(ctx, name); ok && strings.Contains(out, o.cfg.Preclear.ConfirmMarker) {
			o.sessions.SendKeys(ctx, name, o.cfg.Preclear.ConfirmReply)
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-ticker.C:
		}
	}
}

// Stop aborts the run on device, drops its status and asks the kernel to
// re-read the partition table in the background.
func (o *Orchestrator) Stop(ctx context.Context, device string) error {
	dev, err := o.clear(ctx, device)
	if err != nil {
		return err
	}

	if err := o.runner.Background("hdparm", "-z", "/dev/"+dev); err != nil {
		o.logger.Log("DEBUG", "partition reload failed to start", "device", dev, "error", err.Error())
	}
	o.logger.Log("INFO", "preclear stopped", "device", dev)
	return nil
}

// Clear discards the session and status of a finished run.
func (o *Orchestrator) Clear(ctx context.Context, device string) error {
	dev, err := o.clear(ctx, device)
	if err != nil {
		return err
	}
	o.logger.Log("INFO", "preclear cleared", "device", dev)
	return nil
}

func (o *Orchestrator) clear(ctx context.Context, device string) (string, error) {
	dev, err := security.ValidateDevice(device)
	if err != nil {
		return "", err
	}

	o.sessions.Kill(ctx, o.sessions.SessionName(dev))
	if err := RemoveStatus(o.cfg.Paths.StatusDir, dev); err != nil {
		return dev, err
	}
	return dev, nil
}

// Preview returns the captured output of the run on device. The second
// result is false when no session exists.
func (o *Orchestrator) Preview(ctx context.Context, device string) (string, bool, error) {
	dev, err := security.ValidateDevice(device)
	if err != nil {
		return "", false, err
	}
	out, ok := o.sessions.Capture(ctx, o.sessions.SessionName(dev))
	return out, ok, nil
}
