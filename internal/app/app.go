package app

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/facette/natsort"

	"preclear_disk/internal/cache"
	"preclear_disk/internal/config"
	"preclear_disk/internal/disks"
	"preclear_disk/internal/logging"
	"preclear_disk/internal/preclear"
	"preclear_disk/internal/probe"
	"preclear_disk/internal/reporting"
	"preclear_disk/internal/security"
	"preclear_disk/internal/system"
	"preclear_disk/internal/tmux"
)

// ErrDeviceUnavailable is returned when a start targets a disk that is not
// unassigned or has a mounted partition.
var ErrDeviceUnavailable = errors.New("device is not an unmounted unassigned disk")

// App wires discovery, caches, sessions and the orchestrator behind the
// operations exposed by the CLI and the HTTP handler.
type App struct {
	config       *config.Config
	logger       *logging.EnterpriseLogger
	version      string
	enumerator   *disks.Enumerator
	prober       *probe.Prober
	metadata     *cache.MetadataCache
	temperatures *cache.TemperatureCache
	sessions     *tmux.Manager
	orchestrator *preclear.Orchestrator
	resolver     *preclear.Resolver
}

// NewApp builds an App running every external command through runner.
func NewApp(cfg *config.Config, logger *logging.EnterpriseLogger, runner system.Runner, version string) *App {
	prober := probe.NewProber(runner, logger)
	sessions := tmux.NewManager(cfg, runner, logger)

	return &App{
		config:       cfg,
		logger:       logger,
		version:      version,
		enumerator:   disks.NewEnumerator(cfg, logger),
		prober:       prober,
		metadata:     cache.NewMetadataCache(cfg.MetadataFile(), prober, logger),
		temperatures: cache.NewTemperatureCache(cfg.TemperatureFile(), cfg.GetTemperatureTTL(), prober, logger),
		sessions:     sessions,
		orchestrator: preclear.NewOrchestrator(cfg, sessions, runner, logger),
		resolver:     preclear.NewResolver(cfg, sessions, logger),
	}
}

// DiskInfo is one row of the unassigned disk listing.
type DiskInfo struct {
	Key         string          `json:"key"`
	Device      string          `json:"device"`
	Name        string          `json:"name"`
	Partitions  []string        `json:"partitions"`
	Serial      string          `json:"serial"`
	SerialShort string          `json:"serial_short"`
	Family      string          `json:"family"`
	Model       string          `json:"model"`
	Firmware    string          `json:"firmware"`
	Size        int64           `json:"size"`
	SizeHuman   string          `json:"size_human"`
	Temperature string          `json:"temperature"`
	SpunDown    bool            `json:"spun_down"`
	Status      preclear.Status `json:"status"`
}

// GetDisks returns every unassigned disk with its attributes, temperature
// and preclear status, ordered by device node.
func (a *App) GetDisks(ctx context.Context) ([]DiskInfo, error) {
	devices, err := a.enumerator.ListUnassigned()
	if err != nil {
		return nil, fmt.Errorf("failed to list unassigned disks: %w", err)
	}

	mounted := system.MountedDevices(a.config.Paths.MountsFile)

	result := make([]DiskInfo, 0, len(devices))
	for _, d := range devices {
		attrs := a.metadata.GetAttributes(ctx, d.Key, false)

		result = append(result, DiskInfo{
			Key:         d.Key,
			Device:      d.Path,
			Name:        d.Name(),
			Partitions:  d.Partitions,
			Serial:      attrs.Serial(),
			SerialShort: attrs.ShortSerial(),
			Family:      attrs.Family,
			Model:       attrs.DeviceModel,
			Firmware:    attrs.Firmware,
			Size:        attrs.Size,
			SizeHuman:   humanize.Bytes(uint64(max(attrs.Size, 0))),
			Temperature: a.temperatures.Get(ctx, d.Key),
			SpunDown:    a.prober.IsSpunDown(ctx, d.Path),
			Status:      a.resolver.Status(ctx, d.Name(), d.Path, d.Partitions, mounted),
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return natsort.Compare(result[i].Device, result[j].Device)
	})
	return result, nil
}

// GetDisk returns the listing row of device.
func (a *App) GetDisk(ctx context.Context, device string) (DiskInfo, bool, error) {
	dev, err := security.ValidateDevice(device)
	if err != nil {
		return DiskInfo{}, false, err
	}

	all, err := a.GetDisks(ctx)
	if err != nil {
		return DiskInfo{}, false, err
	}
	for _, d := range all {
		if d.Name == dev {
			return d, true, nil
		}
	}
	return DiskInfo{}, false, nil
}

// Script reports the installed preclear script.
func (a *App) Script(ctx context.Context) preclear.ScriptInfo {
	return a.orchestrator.Script(ctx)
}

// StartPreclear launches a preclear run on an unassigned, unmounted disk and
// records a launch report.
func (a *App) StartPreclear(ctx context.Context, device string, opts preclear.Options) (preclear.Launch, error) {
	dev, err := security.ValidateDevice(device)
	if err != nil {
		return preclear.Launch{}, err
	}

	disk, ok, err := a.findUnassigned(dev)
	if err != nil {
		return preclear.Launch{}, err
	}
	if !ok {
		return preclear.Launch{}, fmt.Errorf("%w: %s", ErrDeviceUnavailable, dev)
	}

	launch, err := a.orchestrator.Start(ctx, dev, opts)
	if err != nil {
		return launch, err
	}

	attrs := a.metadata.GetAttributes(ctx, disk.Key, false)
	report := reporting.NewReport(launch, a.version, disk.Key, attrs.Serial())
	if path, err := reporting.SaveReport(report, a.config); err != nil {
		a.logger.Log("WARN", "failed to save launch report", "run_id", launch.RunID, "error", err.Error())
	} else if path != "" {
		a.logger.Log("DEBUG", "launch report saved", "run_id", launch.RunID, "path", path)
	}

	return launch, nil
}

// findUnassigned looks dev up in the unassigned list and rejects it when any
// of its partitions is mounted.
func (a *App) findUnassigned(dev string) (disks.Device, bool, error) {
	devices, err := a.enumerator.ListUnassigned()
	if err != nil {
		return disks.Device{}, false, fmt.Errorf("failed to list unassigned disks: %w", err)
	}

	mounted := system.MountedDevices(a.config.Paths.MountsFile)
	for _, d := range devices {
		if d.Name() != dev {
			continue
		}
		if preclear.DeviceMounted(d.Path, d.Partitions, mounted) {
			return d, false, nil
		}
		return d, true, nil
	}
	return disks.Device{}, false, nil
}

// StopPreclear aborts the run on device.
func (a *App) StopPreclear(ctx context.Context, device string) error {
	return a.orchestrator.Stop(ctx, device)
}

// ClearPreclear discards a finished or orphaned run on device.
func (a *App) ClearPreclear(ctx context.Context, device string) error {
	return a.orchestrator.Clear(ctx, device)
}

// ShowPreclear returns the captured session output of device.
func (a *App) ShowPreclear(ctx context.Context, device string) (string, bool, error) {
	return a.orchestrator.Preview(ctx, device)
}

// GetReports returns launch reports, newest first, optionally for one device.
func (a *App) GetReports(device string) ([]reporting.Report, error) {
	if device != "" {
		dev, err := security.ValidateDevice(device)
		if err != nil {
			return nil, err
		}
		device = dev
	}
	return reporting.LoadReports(a.config, device)
}

// SystemInfo summarizes the environment the plugin runs in.
type SystemInfo struct {
	Version       string   `json:"version"`
	ScriptPresent bool     `json:"script_present"`
	ScriptVersion string   `json:"script_version,omitempty"`
	Noprompt      bool     `json:"noprompt"`
	TmuxAvailable bool     `json:"tmux_available"`
	Sessions      []string `json:"sessions"`
	OS            string   `json:"os"`
	Architecture  string   `json:"architecture"`
}

// GetSystemInfo returns system information for display.
func (a *App) GetSystemInfo(ctx context.Context) SystemInfo {
	script := a.Script(ctx)

	sessions := []string{}
	for _, name := range a.sessions.List(ctx) {
		if strings.HasPrefix(name, a.config.Tmux.SessionPrefix) {
			sessions = append(sessions, name)
		}
	}

	return SystemInfo{
		Version:       a.version,
		ScriptPresent: script.Present,
		ScriptVersion: script.Version,
		Noprompt:      script.Noprompt,
		TmuxAvailable: system.FileExists(a.config.Tmux.Binary),
		Sessions:      sessions,
		OS:            runtime.GOOS,
		Architecture:  runtime.GOARCH,
	}
}
