package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"preclear_disk/internal/logging"
	"preclear_disk/internal/probe"
	"preclear_disk/internal/system"
)

// TemperatureProber reads the power state and temperature of a drive.
type TemperatureProber interface {
	IsSpunDown(ctx context.Context, device string) bool
	Temperature(ctx context.Context, device string) string
}

// Reading is a cached temperature with the unix time it was taken.
// TakenAtMs carries the same instant in milliseconds; readings written
// without it fall back to Timestamp.
type Reading struct {
	Timestamp int64  `json:"timestamp"`
	TakenAtMs int64  `json:"taken_at_ms,omitempty"`
	Temp      string `json:"temp"`
}

func (r Reading) takenAt() time.Time {
	if r.TakenAtMs > 0 {
		return time.UnixMilli(r.TakenAtMs)
	}
	return time.Unix(r.Timestamp, 0)
}

// TemperatureCache keeps the last temperature of every drive in a JSON file.
// Readings older than the TTL are re-probed; spun-down drives are never
// touched.
type TemperatureCache struct {
	path   string
	ttl    time.Duration
	prober TemperatureProber
	logger *logging.EnterpriseLogger
	now    func() time.Time

	mu sync.Mutex
}

func NewTemperatureCache(path string, ttl time.Duration, prober TemperatureProber, logger *logging.EnterpriseLogger) *TemperatureCache {
	return &TemperatureCache{
		path:   path,
		ttl:    ttl,
		prober: prober,
		logger: logger,
		now:    time.Now,
	}
}

// Get returns the temperature of device in Celsius or probe.UnknownTemperature.
func (c *TemperatureCache) Get(ctx context.Context, device string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	readings, err := loadReadings(c.path)
	if err != nil {
		c.logger.Log("DEBUG", "temperature cache unreadable", "path", c.path, "error", err.Error())
	}
	if r, ok := readings[device]; ok && now.Sub(r.takenAt()) < c.ttl {
		return r.Temp
	}

	if c.prober.IsSpunDown(ctx, device) {
		return probe.UnknownTemperature
	}

	reading := Reading{
		Timestamp: now.Unix(),
		TakenAtMs: now.UnixMilli(),
		Temp:      c.prober.Temperature(ctx, device),
	}
	if err := c.store(device, reading); err != nil {
		c.logger.Log("WARN", "failed to persist temperature", "device", device, "error", err.Error())
	}
	return reading.Temp
}

func (c *TemperatureCache) store(device string, reading Reading) error {
	lock, err := system.LockFile(c.path)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	readings, err := loadReadings(c.path)
	if err != nil {
		readings = make(map[string]Reading)
	}
	readings[device] = reading

	data, err := json.Marshal(readings)
	if err != nil {
		return fmt.Errorf("encode temperatures: %w", err)
	}
	return system.WriteFileAtomic(c.path, data, 0644)
}

func loadReadings(path string) (map[string]Reading, error) {
	readings := make(map[string]Reading)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return readings, nil
		}
		return readings, err
	}
	if err := json.Unmarshal(data, &readings); err != nil {
		return make(map[string]Reading), fmt.Errorf("decode %s: %w", path, err)
	}
	return readings, nil
}
