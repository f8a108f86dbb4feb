package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"preclear_disk/internal/preclear"
)

func TestGetDisks(t *testing.T) {
	a, _ := newTestApp(t)

	disks, err := a.GetDisks(context.Background())
	if err != nil {
		t.Fatalf("GetDisks: %v", err)
	}
	if len(disks) != 2 {
		t.Fatalf("expected 2 disks, got %d", len(disks))
	}

	sdb, sdc := disks[0], disks[1]
	if sdb.Name != "sdb" || sdc.Name != "sdc" {
		t.Fatalf("got order %s, %s; want sdb, sdc", sdb.Name, sdc.Name)
	}

	if sdb.Serial != "MODEL_A_SERA" {
		t.Errorf("got serial %q, want MODEL_A_SERA", sdb.Serial)
	}
	if sdb.Family != "Family A" || sdb.Model != "Model A" || sdb.Firmware != "FWA" {
		t.Errorf("unexpected identity %+v", sdb)
	}
	if sdb.SizeHuman != "4.0 TB" {
		t.Errorf("got size %q, want 4.0 TB", sdb.SizeHuman)
	}
	if sdb.Temperature != "31" {
		t.Errorf("got temperature %q, want 31", sdb.Temperature)
	}
	if sdb.SpunDown {
		t.Error("sdb reported spun down")
	}
	if sdb.Status.State != preclear.StateNotStarted || !sdb.Status.Has(preclear.ActionStart) {
		t.Errorf("got status %+v for sdb", sdb.Status)
	}

	if len(sdc.Partitions) != 1 {
		t.Errorf("expected one partition on sdc, got %v", sdc.Partitions)
	}
	if sdc.Status.State != preclear.StateMounted {
		t.Errorf("got %s for sdc, want mounted", sdc.Status.State)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	a, host := newTestApp(t)
	ctx := context.Background()

	launch, err := a.StartPreclear(ctx, "sdb", preclear.Options{Passes: 1})
	if err != nil {
		t.Fatalf("StartPreclear: %v", err)
	}
	if !launch.Confirmed {
		t.Error("expected confirmation to be answered")
	}

	disk, ok, err := a.GetDisk(ctx, "sdb")
	if err != nil || !ok {
		t.Fatalf("GetDisk: ok=%v err=%v", ok, err)
	}
	if disk.Status.State != preclear.StateStarting {
		t.Errorf("got %s after start, want starting", disk.Status.State)
	}

	reports, err := a.GetReports("sdb")
	if err != nil || len(reports) != 1 {
		t.Fatalf("expected one report, got %d (%v)", len(reports), err)
	}
	if reports[0].RunID != launch.RunID || reports[0].Serial != "MODEL_A_SERA" {
		t.Errorf("unexpected report %+v", reports[0])
	}

	out, ok, err := a.ShowPreclear(ctx, "sdb")
	if err != nil || !ok || out == "" {
		t.Errorf("ShowPreclear: %q ok=%v err=%v", out, ok, err)
	}

	info := a.GetSystemInfo(ctx)
	if len(info.Sessions) != 1 || info.Sessions[0] != "preclear_disk_sdb" {
		t.Errorf("got sessions %v", info.Sessions)
	}
	if !info.ScriptPresent || info.ScriptVersion != "1.0.22" {
		t.Errorf("got script info %+v", info)
	}

	if err := a.StopPreclear(ctx, "sdb"); err != nil {
		t.Fatalf("StopPreclear: %v", err)
	}
	disk, _, _ = a.GetDisk(ctx, "sdb")
	if disk.Status.State != preclear.StateNotStarted {
		t.Errorf("got %s after stop, want not started", disk.Status.State)
	}
	if len(host.background) != 1 || host.background[0] != "hdparm -z /dev/sdb" {
		t.Errorf("got background %v", host.background)
	}
}

func TestStartPreclear_RefusesUnavailableDisks(t *testing.T) {
	a, host := newTestApp(t)
	ctx := context.Background()

	for _, dev := range []string{"sdc", "sdz"} {
		if _, err := a.StartPreclear(ctx, dev, preclear.Options{}); !errors.Is(err, ErrDeviceUnavailable) {
			t.Errorf("%s: got %v, want ErrDeviceUnavailable", dev, err)
		}
	}
	if len(host.sessions) != 0 {
		t.Error("refused start created a session")
	}
}

func TestClearPreclear(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	if _, err := a.StartPreclear(ctx, "sdb", preclear.Options{Op: preclear.OpVerify}); err != nil {
		t.Fatal(err)
	}
	if err := a.ClearPreclear(ctx, "sdb"); err != nil {
		t.Fatalf("ClearPreclear: %v", err)
	}
	if _, ok, _ := a.ShowPreclear(ctx, "sdb"); ok {
		t.Error("session survived clear")
	}
}

func TestWholeDiskMountListedAsMounted(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	dev := filepath.Dir(filepath.Dir(a.config.Paths.ByIDDir))
	mounts := filepath.Join(dev, "sdb") + " /mnt/disks/A xfs rw 0 0\n"
	if err := os.WriteFile(a.config.Paths.MountsFile, []byte(mounts), 0644); err != nil {
		t.Fatal(err)
	}

	disk, ok, err := a.GetDisk(ctx, "sdb")
	if err != nil || !ok {
		t.Fatalf("GetDisk: ok=%v err=%v", ok, err)
	}
	if disk.Status.State != preclear.StateMounted || disk.Status.Has(preclear.ActionStart) {
		t.Errorf("got %+v, want mounted without start", disk.Status)
	}
	if _, err := a.StartPreclear(ctx, "sdb", preclear.Options{}); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("got %v, want ErrDeviceUnavailable", err)
	}
}
