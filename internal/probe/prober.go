package probe

import (
	"bufio"
	"context"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"preclear_disk/internal/logging"
	"preclear_disk/internal/system"
)

// UnknownTemperature is reported when a drive is spun down or its
// temperature cannot be read.
const UnknownTemperature = "*"

// udevWhitelist lists the udev properties kept in the attribute record.
var udevWhitelist = []string{"ID_MODEL", "ID_SCSI_SERIAL", "ID_SERIAL_SHORT"}

// Attributes is the persisted identity of a drive. Fields that could not be
// probed are left empty.
type Attributes struct {
	Model       string `json:"id_model"`
	SCSISerial  string `json:"id_scsi_serial,omitempty"`
	SerialShort string `json:"id_serial_short,omitempty"`
	Family      string `json:"family"`
	DeviceModel string `json:"model"`
	Firmware    string `json:"firmware"`
	Size        int64  `json:"size"`
}

// ShortSerial prefers the SCSI serial over the short ATA serial.
func (a Attributes) ShortSerial() string {
	if a.SCSISerial != "" {
		return a.SCSISerial
	}
	return a.SerialShort
}

// Serial is the model+serial composite shown to the operator.
func (a Attributes) Serial() string {
	return a.Model + "_" + a.ShortSerial()
}

// Prober queries udev, smartctl, blockdev and hdparm for a single device.
type Prober struct {
	runner system.Runner
	logger *logging.EnterpriseLogger
}

func NewProber(runner system.Runner, logger *logging.EnterpriseLogger) *Prober {
	return &Prober{runner: runner, logger: logger}
}

// Attributes probes the identity of device. A failing sub-command leaves its
// fields empty and never aborts the probe.
func (p *Prober) Attributes(ctx context.Context, device string) Attributes {
	var attrs Attributes

	udev := p.udevProperties(ctx, device)
	attrs.Model = udev["ID_MODEL"]
	attrs.SCSISerial = udev["ID_SCSI_SERIAL"]
	attrs.SerialShort = udev["ID_SERIAL_SHORT"]

	info := p.smartInfo(ctx, device)
	attrs.Family = info["Model Family"]
	attrs.DeviceModel = info["Device Model"]
	if attrs.Family == "" && attrs.DeviceModel == "" {
		vendor, product, revision := info["Vendor"], info["Product"], info["Revision"]
		attrs.Family = vendor + " " + product
		attrs.DeviceModel = vendor + " " + product + " - Rev. " + revision
	}
	attrs.Firmware = info["Firmware Version"]
	attrs.Size = p.size(ctx, device)

	return attrs
}

// IsSpunDown reports whether the drive is in standby. A failed power-state
// query counts as spinning.
func (p *Prober) IsSpunDown(ctx context.Context, device string) bool {
	out, err := p.runner.Run(ctx, "hdparm", "-C", device)
	if err != nil {
		p.logger.Log("DEBUG", "power state query failed", "device", device, "error", err.Error())
		return false
	}
	return strings.Contains(out, "standby")
}

// Temperature reads the current drive temperature in Celsius. Any failure or
// non-numeric value yields UnknownTemperature.
func (p *Prober) Temperature(ctx context.Context, device string) string {
	out, err := p.runner.Run(ctx, "smartctl", "-A", "-d", "sat,auto", device)
	if err != nil && out == "" {
		p.logger.Log("DEBUG", "temperature query failed", "device", device, "error", err.Error())
		return UnknownTemperature
	}
	return parseTemperature(out)
}

func (p *Prober) udevProperties(ctx context.Context, device string) map[string]string {
	props := make(map[string]string)

	path, err := p.runner.Run(ctx, "udevadm", "info", "-q", "path", "-n", device)
	if err != nil || strings.TrimSpace(path) == "" {
		p.logger.Log("DEBUG", "udev path query failed", "device", device, "error", errString(err))
		return props
	}

	out, err := p.runner.Run(ctx, "udevadm", "info", "--query=property", "--path", strings.TrimSpace(path))
	if err != nil {
		p.logger.Log("DEBUG", "udev property query failed", "device", device, "error", err.Error())
		return props
	}

	parsed, err := ini.LoadSources(ini.LoadOptions{
		Loose:                   true,
		IgnoreInlineComment:     true,
		SkipUnrecognizableLines: true,
	}, []byte(out))
	if err != nil {
		p.logger.Log("DEBUG", "udev property output unparsable", "device", device, "error", err.Error())
		return props
	}

	section := parsed.Section(ini.DefaultSection)
	for _, name := range udevWhitelist {
		if section.HasKey(name) {
			props[name] = strings.TrimSpace(section.Key(name).String())
		}
	}
	return props
}

// smartInfo returns the "Key: value" pairs of the smartctl identity section.
func (p *Prober) smartInfo(ctx context.Context, device string) map[string]string {
	out, err := p.runner.Run(ctx, "smartctl", "-i", "-d", "sat,auto", device)
	if err != nil {
		// smartctl exits non-zero on many healthy drives; keep whatever it printed
		p.logger.Log("DEBUG", "smartctl identity query failed", "device", device, "error", err.Error())
	}
	return parseSmartInfo(out)
}

func (p *Prober) size(ctx context.Context, device string) int64 {
	out, err := p.runner.Run(ctx, "blockdev", "--getsize64", device)
	if err != nil {
		p.logger.Log("DEBUG", "block size query failed", "device", device, "error", err.Error())
		return 0
	}
	size, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if err != nil {
		return 0
	}
	return size
}

// identityKeys are matched as substrings of the label, first line wins.
var identityKeys = []string{"Model Family", "Device Model", "Firmware Version", "Vendor", "Product", "Revision"}

func parseSmartInfo(out string) map[string]string {
	info := make(map[string]string)

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		for _, key := range identityKeys {
			if _, seen := info[key]; seen {
				continue
			}
			if strings.Contains(label, key) {
				info[key] = strings.TrimSpace(value)
			}
		}
	}
	return info
}

// parseTemperature takes the raw value column of the first
// Temperature_Celsius attribute row.
func parseTemperature(out string) string {
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(strings.ToLower(line), "temperature_celsius") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 10 {
			return UnknownTemperature
		}
		if _, err := strconv.ParseFloat(fields[9], 64); err != nil {
			return UnknownTemperature
		}
		return fields[9]
	}
	return UnknownTemperature
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
