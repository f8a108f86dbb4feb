package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"preclear_disk/internal/config"
	"preclear_disk/internal/preclear"
)

// Report JSON отчёт о запуске preclear
type Report struct {
	preclear.Launch
	Version string `json:"version"`
	Key     string `json:"key,omitempty"`
	Serial  string `json:"serial,omitempty"`
}

// NewReport собирает отчёт из описания запуска
func NewReport(launch preclear.Launch, version, key, serial string) *Report {
	return &Report{
		Launch:  launch,
		Version: version,
		Key:     key,
		Serial:  serial,
	}
}

// Filename имя файла отчёта, уникальное для запуска
func (r *Report) Filename() string {
	return fmt.Sprintf("preclear_%s_%s_%s.json",
		r.Device,
		r.StartedAt.Format("20060102_150405"),
		shortID(r.RunID))
}

// SaveReport сохраняет отчёт в JSON файл и возвращает его путь
func SaveReport(report *Report, cfg *config.Config) (string, error) {
	if !cfg.Reporting.Enabled {
		return "", nil
	}

	// Создаем директорию для отчётов
	if err := os.MkdirAll(cfg.Reporting.LocalPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(cfg.Reporting.LocalPath, report.Filename())

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	return path, nil
}

// LoadReports читает отчёты из директории, новые первыми. Повреждённые файлы
// пропускаются.
func LoadReports(cfg *config.Config, device string) ([]Report, error) {
	entries, err := os.ReadDir(cfg.Reporting.LocalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read report directory: %w", err)
	}

	var reports []Report
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(cfg.Reporting.LocalPath, entry.Name()))
		if err != nil {
			continue
		}
		var r Report
		if err := json.Unmarshal(data, &r); err != nil {
			continue
		}
		if device != "" && r.Device != device {
			continue
		}
		reports = append(reports, r)
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].StartedAt.After(reports[j].StartedAt)
	})
	return reports, nil
}

// PruneReports удаляет отчёты старше maxAge
func PruneReports(cfg *config.Config, maxAge time.Duration, now time.Time) (int, error) {
	reports, err := LoadReports(cfg, "")
	if err != nil {
		return 0, err
	}

	removed := 0
	for i := range reports {
		if now.Sub(reports[i].StartedAt) <= maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(cfg.Reporting.LocalPath, reports[i].Filename())); err == nil {
			removed++
		}
	}
	return removed, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
