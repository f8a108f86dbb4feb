package cache

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	"gopkg.in/ini.v1"

	"preclear_disk/internal/logging"
	"preclear_disk/internal/probe"
	"preclear_disk/internal/system"
)

// AttributeProber probes the identity of a single drive.
type AttributeProber interface {
	Attributes(ctx context.Context, device string) probe.Attributes
}

// MetadataCache keeps drive attributes keyed by by-id path in memory and in
// an INI file with one section per drive. A stored record is never
// re-probed unless a reload is forced.
type MetadataCache struct {
	path   string
	prober AttributeProber
	logger *logging.EnterpriseLogger

	mu      sync.Mutex
	records map[string]probe.Attributes
}

func NewMetadataCache(path string, prober AttributeProber, logger *logging.EnterpriseLogger) *MetadataCache {
	return &MetadataCache{
		path:    path,
		prober:  prober,
		logger:  logger,
		records: make(map[string]probe.Attributes),
	}
}

// GetAttributes returns the attributes of key, probing the drive on a miss
// or when forceReload is set.
func (c *MetadataCache) GetAttributes(ctx context.Context, key string, forceReload bool) probe.Attributes {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !forceReload {
		if attrs, ok := c.records[key]; ok {
			return attrs
		}
		if attrs, ok := c.loadRecord(key); ok {
			c.records[key] = attrs
			return attrs
		}
	}

	attrs := c.prober.Attributes(ctx, key)
	c.records[key] = attrs

	if err := c.persist(key, attrs); err != nil {
		c.logger.Log("WARN", "failed to persist disk attributes", "key", key, "error", err.Error())
	}
	return attrs
}

func (c *MetadataCache) loadRecord(key string) (probe.Attributes, bool) {
	f, err := loadStore(c.path)
	if err != nil {
		c.logger.Log("DEBUG", "metadata store unreadable", "path", c.path, "error", err.Error())
		return probe.Attributes{}, false
	}
	section, err := f.GetSection(key)
	if err != nil {
		return probe.Attributes{}, false
	}
	return attributesFromSection(section), true
}

// persist merges one record into the store under an exclusive file lock so
// concurrent writers do not drop each other's records.
func (c *MetadataCache) persist(key string, attrs probe.Attributes) error {
	lock, err := system.LockFile(c.path)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	f, err := loadStore(c.path)
	if err != nil {
		c.logger.Log("WARN", "metadata store corrupt, rewriting", "path", c.path, "error", err.Error())
		f = ini.Empty()
	}

	f.DeleteSection(key)
	section, err := f.NewSection(key)
	if err != nil {
		return fmt.Errorf("create section %q: %w", key, err)
	}
	attributesToSection(section, attrs)

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return fmt.Errorf("encode metadata store: %w", err)
	}
	if err := system.WriteFileAtomic(c.path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write metadata store: %w", err)
	}
	return nil
}

func loadStore(path string) (*ini.File, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ini.Empty(), nil
	}
	return ini.LoadSources(ini.LoadOptions{
		Loose:               true,
		IgnoreInlineComment: true,
	}, path)
}

func attributesToSection(section *ini.Section, attrs probe.Attributes) {
	set := func(name, value string) {
		if value != "" {
			section.Key(name).SetValue(value)
		}
	}
	set("ID_MODEL", attrs.Model)
	set("ID_SCSI_SERIAL", attrs.SCSISerial)
	set("ID_SERIAL_SHORT", attrs.SerialShort)
	section.Key("FAMILY").SetValue(attrs.Family)
	section.Key("MODEL").SetValue(attrs.DeviceModel)
	section.Key("FIRMWARE").SetValue(attrs.Firmware)
	section.Key("SIZE").SetValue(strconv.FormatInt(attrs.Size, 10))
}

func attributesFromSection(section *ini.Section) probe.Attributes {
	return probe.Attributes{
		Model:       section.Key("ID_MODEL").String(),
		SCSISerial:  section.Key("ID_SCSI_SERIAL").String(),
		SerialShort: section.Key("ID_SERIAL_SHORT").String(),
		Family:      section.Key("FAMILY").String(),
		DeviceModel: section.Key("MODEL").String(),
		Firmware:    section.Key("FIRMWARE").String(),
		Size:        section.Key("SIZE").MustInt64(0),
	}
}
