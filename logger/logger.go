package logger

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	base *zap.Logger
	once sync.Once
)

// LogLevel 定义日志级别
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// Format 控制台日志格式
type Format string

const (
	// FormatJSON writes one JSON object per line to stdout.
	FormatJSON Format = "json"
	// FormatConsole writes human readable lines to stderr, so a CLI run keeps
	// its report on stdout clean.
	FormatConsole Format = "console"
)

// Config 定义日志配置。OutputPath 为空时只输出到控制台，
// 文件输出始终是 JSON 并由 lumberjack 轮转
type Config struct {
	Level      LogLevel
	Format     Format
	OutputPath string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch LogLevel(strings.ToLower(string(l))) {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func encoderConfig() zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.EncodeTime = zapcore.RFC3339TimeEncoder
	enc.EncodeDuration = zapcore.StringDurationEncoder
	return enc
}

func consoleCore(cfg Config, level zapcore.Level) zapcore.Core {
	if Format(strings.ToLower(string(cfg.Format))) == FormatConsole {
		enc := encoderConfig()
		enc.EncodeLevel = zapcore.CapitalLevelEncoder
		enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		return zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stderr), level)
	}
	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.Lock(os.Stdout), level)
}

// build assembles the console core and, when configured, the rotated file core.
func build(cfg Config) (*zap.Logger, error) {
	level := cfg.Level.zapLevel()
	cores := []zapcore.Core{consoleCore(cfg, level)}

	if cfg.OutputPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0755); err != nil {
			return nil, err
		}
		rotated := &lumberjack.Logger{
			Filename:   cfg.OutputPath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(rotated), level))
	}

	return zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddCallerSkip(1), // 跳过本包的包装函数
		zap.AddStacktrace(zapcore.ErrorLevel),
	), nil
}

// InitLogger 初始化日志系统，只生效一次。日志目录无法创建时退回到只输出控制台
func InitLogger(cfg Config) {
	once.Do(func() {
		l, err := build(cfg)
		if err != nil {
			fallback := cfg
			fallback.OutputPath = ""
			l, _ = build(fallback)
			l.Warn("无法创建日志目录，只输出到控制台", zap.String("path", cfg.OutputPath), zap.Error(err))
		}
		base = l
	})
}

// Sync flushes buffered entries.
func Sync() {
	if base != nil {
		_ = base.Sync()
	}
}

// Debug 输出调试级别日志
func Debug(msg string, fields ...zap.Field) {
	if base != nil {
		base.Debug(msg, fields...)
	}
}

// Info 输出信息级别日志
func Info(msg string, fields ...zap.Field) {
	if base != nil {
		base.Info(msg, fields...)
	}
}

// Warn 输出警告级别日志
func Warn(msg string, fields ...zap.Field) {
	if base != nil {
		base.Warn(msg, fields...)
	}
}

// Error 输出错误级别日志
func Error(msg string, fields ...zap.Field) {
	if base != nil {
		base.Error(msg, fields...)
	}
}

// 字段辅助函数，只保留本项目用到的类型
func String(key, val string) zap.Field { return zap.String(key, val) }

func Int(key string, val int) zap.Field { return zap.Int(key, val) }

func Int64(key string, val int64) zap.Field { return zap.Int64(key, val) }

func Duration(key string, val time.Duration) zap.Field { return zap.Duration(key, val) }

// ErrorField 创建错误字段
func ErrorField(err error) zap.Field { return zap.Error(err) }

// RunID tags an entry with the pipeline run it belongs to.
func RunID(id string) zap.Field { return zap.String("runId", id) }
