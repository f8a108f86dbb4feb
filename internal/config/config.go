package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PathsConfig пути к файлам плагина и системным источникам данных
type PathsConfig struct {
	ScriptFile    string `yaml:"script_file"`
	StateDir      string `yaml:"state_dir"`
	StatusDir     string `yaml:"status_dir"`
	ByIDDir       string `yaml:"by_id_dir"`
	SuperDat      string `yaml:"super_dat"`
	DiskCfg       string `yaml:"disk_cfg"`
	BootLabelPath string `yaml:"boot_label_path"`
	MountsFile    string `yaml:"mounts_file"`
	ProcDir       string `yaml:"proc_dir"`
}

// TmuxConfig параметры терминального мультиплексора
type TmuxConfig struct {
	Binary        string `yaml:"binary"`
	Width         int    `yaml:"width"`
	Height        int    `yaml:"height"`
	SessionPrefix string `yaml:"session_prefix"`
}

// PreclearConfig параметры запуска внешнего скрипта
type PreclearConfig struct {
	ConfirmMarker  string   `yaml:"confirm_marker"`
	ConfirmReply   string   `yaml:"confirm_reply"`
	ConfirmTimeout string   `yaml:"confirm_timeout"`
	PollInterval   string   `yaml:"poll_interval"`
	NopromptMarker string   `yaml:"noprompt_marker"`
	DeviceClasses  []string `yaml:"device_classes"`
}

// CacheConfig параметры кэшей метаданных и температуры
type CacheConfig struct {
	TemperatureTTL string `yaml:"temperature_ttl"`
	CommandTimeout string `yaml:"command_timeout"`
}

// SecurityConfig ограничения безопасности
type SecurityConfig struct {
	RequireRoot     bool     `yaml:"require_root"`
	ExcludedSerials []string `yaml:"excluded_serials"`
}

// LoggingConfig параметры логирования
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxFiles   int    `yaml:"max_files"`
	Structured bool   `yaml:"structured"`
}

// ReportingConfig параметры отчётов о запусках
type ReportingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	LocalPath string `yaml:"local_path"`
}

// ServerConfig параметры HTTP интерфейса
type ServerConfig struct {
	Listen       string `yaml:"listen"`
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`
}

// Config конфигурация плагина
type Config struct {
	Paths     PathsConfig     `yaml:"paths"`
	Tmux      TmuxConfig      `yaml:"tmux"`
	Preclear  PreclearConfig  `yaml:"preclear"`
	Cache     CacheConfig     `yaml:"cache"`
	Security  SecurityConfig  `yaml:"security"`
	Logging   LoggingConfig   `yaml:"logging"`
	Reporting ReportingConfig `yaml:"reporting"`
	Server    ServerConfig    `yaml:"server"`
}

// PluginName имя плагина, используется в путях по умолчанию
const PluginName = "preclear.disk"

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			ScriptFile:    "/boot/config/plugins/" + PluginName + "/preclear_disk.sh",
			StateDir:      "/var/state/" + PluginName,
			StatusDir:     "/tmp",
			ByIDDir:       "/dev/disk/by-id",
			SuperDat:      "/boot/config/super.dat",
			DiskCfg:       "/boot/config/disk.cfg",
			BootLabelPath: "/dev/disk/by-label/UNRAID",
			MountsFile:    "/proc/mounts",
			ProcDir:       "/proc",
		},
		Tmux: TmuxConfig{
			Binary:        "/usr/bin/tmux",
			Width:         140,
			Height:        200,
			SessionPrefix: "preclear_disk_",
		},
		Preclear: PreclearConfig{
			ConfirmMarker:  "Answer Yes to continue",
			ConfirmReply:   "Yes",
			ConfirmTimeout: "30s",
			PollInterval:   "1s",
			NopromptMarker: "noprompt",
			DeviceClasses:  []string{"/dev/sd", "/dev/hd"},
		},
		Cache: CacheConfig{
			TemperatureTTL: "180s",
			CommandTimeout: "30s",
		},
		Security: SecurityConfig{
			RequireRoot:     true,
			ExcludedSerials: []string{},
		},
		Logging: LoggingConfig{
			Level:      "INFO",
			File:       "",
			MaxSizeMB:  10,
			MaxFiles:   3,
			Structured: false,
		},
		Reporting: ReportingConfig{
			Enabled:   true,
			LocalPath: "/var/state/" + PluginName + "/reports",
		},
		Server: ServerConfig{
			Listen:       ":8088",
			ReadTimeout:  "60s",
			WriteTimeout: "60s",
		},
	}
}

// Load загружает конфигурацию из файла
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Поля, отсутствующие в файле, остаются со значениями по умолчанию
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate проверяет конфигурацию на валидность
func Validate(config *Config) error {
	if config.Paths.ScriptFile == "" {
		return fmt.Errorf("script_file must be set")
	}
	for name, dir := range map[string]string{
		"state_dir":  config.Paths.StateDir,
		"status_dir": config.Paths.StatusDir,
		"by_id_dir":  config.Paths.ByIDDir,
	} {
		clean := filepath.Clean(dir)
		if dir == "" || clean == "." {
			return fmt.Errorf("invalid %s: %q", name, dir)
		}
	}

	if config.Tmux.Binary == "" {
		return fmt.Errorf("tmux binary must be set")
	}
	if config.Tmux.Width <= 0 || config.Tmux.Height <= 0 {
		return fmt.Errorf("tmux geometry must be positive, got %dx%d", config.Tmux.Width, config.Tmux.Height)
	}
	if config.Tmux.SessionPrefix == "" || strings.ContainsAny(config.Tmux.SessionPrefix, ":. '\"") {
		return fmt.Errorf("invalid tmux session prefix: %q", config.Tmux.SessionPrefix)
	}

	// Проверяем длительности
	durations := map[string]string{
		"preclear.confirm_timeout": config.Preclear.ConfirmTimeout,
		"preclear.poll_interval":   config.Preclear.PollInterval,
		"cache.temperature_ttl":    config.Cache.TemperatureTTL,
		"cache.command_timeout":    config.Cache.CommandTimeout,
		"server.read_timeout":      config.Server.ReadTimeout,
		"server.write_timeout":     config.Server.WriteTimeout,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s duration format: %s", name, value)
		}
		if d < 0 {
			return fmt.Errorf("%s cannot be negative, got %s", name, value)
		}
	}

	if config.Preclear.ConfirmMarker == "" {
		return fmt.Errorf("confirm marker must be set")
	}
	if len(config.Preclear.DeviceClasses) == 0 {
		return fmt.Errorf("at least one device class must be configured")
	}

	validLevels := map[string]bool{
		"DEBUG": true,
		"INFO":  true,
		"WARN":  true,
		"ERROR": true,
	}
	if !validLevels[config.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}
	if config.Logging.MaxSizeMB <= 0 || config.Logging.MaxSizeMB > 1000 {
		return fmt.Errorf("log max size must be between 1MB and 1000MB, got %d", config.Logging.MaxSizeMB)
	}
	if config.Logging.MaxFiles <= 0 || config.Logging.MaxFiles > 50 {
		return fmt.Errorf("log max files must be between 1 and 50, got %d", config.Logging.MaxFiles)
	}

	if config.Reporting.Enabled && config.Reporting.LocalPath == "" {
		return fmt.Errorf("reporting local_path must be set when reporting is enabled")
	}

	return nil
}

// Save сохраняет конфигурацию в файл
func Save(config *Config, path string) error {
	if err := Validate(config); err != nil {
		return fmt.Errorf("cannot save invalid config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MetadataFile путь к хранилищу атрибутов дисков
func (config *Config) MetadataFile() string {
	return filepath.Join(config.Paths.StateDir, "state.ini")
}

// TemperatureFile путь к кэшу температур
func (config *Config) TemperatureFile() string {
	return filepath.Join(config.Paths.StateDir, "hdd_temp.json")
}

// GetConfirmTimeout возвращает время ожидания подтверждения
func (config *Config) GetConfirmTimeout() time.Duration {
	return parseDuration(config.Preclear.ConfirmTimeout, 30*time.Second)
}

// GetPollInterval возвращает интервал опроса сессии
func (config *Config) GetPollInterval() time.Duration {
	d := parseDuration(config.Preclear.PollInterval, time.Second)
	if d <= 0 {
		return time.Second
	}
	return d
}

// GetTemperatureTTL возвращает срок свежести показаний температуры
func (config *Config) GetTemperatureTTL() time.Duration {
	return parseDuration(config.Cache.TemperatureTTL, 180*time.Second)
}

// GetCommandTimeout возвращает таймаут внешних команд
func (config *Config) GetCommandTimeout() time.Duration {
	return parseDuration(config.Cache.CommandTimeout, 30*time.Second)
}

// GetReadTimeout возвращает таймаут чтения запроса
func (config *Config) GetReadTimeout() time.Duration {
	return parseDuration(config.Server.ReadTimeout, 60*time.Second)
}

// GetWriteTimeout возвращает таймаут ответа; должен покрывать ожидание подтверждения
func (config *Config) GetWriteTimeout() time.Duration {
	return parseDuration(config.Server.WriteTimeout, 60*time.Second)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}

	return duration
}
