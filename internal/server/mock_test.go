package server

import (
	"context"

	"preclear_disk/internal/app"
	"preclear_disk/internal/preclear"
	"preclear_disk/internal/security"
)

type fakeBackend struct {
	disks    []app.DiskInfo
	listErr  error
	script   preclear.ScriptInfo
	startErr error
	output   string
	alive    bool

	started []startCall
	stopped []string
	cleared []string
}

type startCall struct {
	device string
	opts   preclear.Options
}

func (f *fakeBackend) GetDisks(context.Context) ([]app.DiskInfo, error) {
	return f.disks, f.listErr
}

func (f *fakeBackend) Script(context.Context) preclear.ScriptInfo {
	return f.script
}

func (f *fakeBackend) StartPreclear(_ context.Context, device string, opts preclear.Options) (preclear.Launch, error) {
	if f.startErr != nil {
		return preclear.Launch{}, f.startErr
	}
	if _, err := security.ValidateDevice(device); err != nil {
		return preclear.Launch{}, err
	}
	f.started = append(f.started, startCall{device: device, opts: opts})
	return preclear.Launch{RunID: "run-1", Device: device, Confirmed: true}, nil
}

func (f *fakeBackend) StopPreclear(_ context.Context, device string) error {
	if _, err := security.ValidateDevice(device); err != nil {
		return err
	}
	f.stopped = append(f.stopped, device)
	return nil
}

func (f *fakeBackend) ClearPreclear(_ context.Context, device string) error {
	if _, err := security.ValidateDevice(device); err != nil {
		return err
	}
	f.cleared = append(f.cleared, device)
	return nil
}

func (f *fakeBackend) ShowPreclear(_ context.Context, device string) (string, bool, error) {
	if _, err := security.ValidateDevice(device); err != nil {
		return "", false, err
	}
	return f.output, f.alive, nil
}

func (f *fakeBackend) GetSystemInfo(context.Context) app.SystemInfo {
	return app.SystemInfo{Version: "test", ScriptPresent: f.script.Present}
}
