package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"preclear_disk/internal/config"
)

// EnterpriseLogger логгер плагина с записью в файл и ротацией
type EnterpriseLogger struct {
	level   string
	sugar   *zap.SugaredLogger
	file    *lumberjack.Logger
	verbose bool
}

func NewEnterpriseLogger(cfg *config.Config, verbose bool) (*EnterpriseLogger, error) {
	l := &EnterpriseLogger{
		level:   strings.ToUpper(cfg.Logging.Level),
		verbose: verbose,
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if cfg.Logging.Structured {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	minLevel := zapLevel(l.level)
	var cores []zapcore.Core

	// Автоматическое создание директории для логов
	if cfg.Logging.File != "" {
		logDir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] cannot create log directory %s: %v, logging to stderr\n", logDir, err)
		} else {
			l.file = &lumberjack.Logger{
				Filename:   cfg.Logging.File,
				MaxSize:    cfg.Logging.MaxSizeMB,
				MaxBackups: cfg.Logging.MaxFiles,
			}
			cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(l.file), minLevel))
		}
	}

	// Без файла или в verbose режиме пишем в stderr, иначе только ошибки
	stderrLevel := zapcore.ErrorLevel
	if verbose || l.file == nil {
		stderrLevel = minLevel
	}
	cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), stderrLevel))

	l.sugar = zap.New(zapcore.NewTee(cores...)).Sugar()
	return l, nil
}

// NewNop возвращает логгер, который ничего не пишет
func NewNop() *EnterpriseLogger {
	return &EnterpriseLogger{level: "ERROR", sugar: zap.NewNop().Sugar()}
}

func (l *EnterpriseLogger) Log(level, message string, fields ...interface{}) {
	if l == nil || l.sugar == nil {
		return
	}

	switch strings.ToUpper(level) {
	case "DEBUG":
		l.sugar.Debugw(message, fields...)
	case "INFO":
		l.sugar.Infow(message, fields...)
	case "WARN":
		l.sugar.Warnw(message, fields...)
	default:
		l.sugar.Errorw(message, fields...)
	}
}

func (l *EnterpriseLogger) Close() error {
	if l == nil || l.sugar == nil {
		return nil
	}
	_ = l.sugar.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func zapLevel(level string) zapcore.Level {
	switch level {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
