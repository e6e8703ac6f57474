package logger

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestZapLevel(t *testing.T) {
	tests := []struct {
		in   LogLevel
		want zapcore.Level
	}{
		{DebugLevel, zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{ErrorLevel, zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := tt.in.zapLevel(); got != tt.want {
			t.Errorf("LogLevel(%q).zapLevel() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestHelpersWithoutInit(t *testing.T) {
	// 未初始化时所有输出都是空操作
	Debug("debug", String("k", "v"))
	Info("info", Int("n", 1), RunID("run-1"))
	Warn("warn", Int64("size", 2))
	Error("error", ErrorField(errors.New("boom")))
	Sync()
}

func TestBuildWritesRotatedJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "insight.log")
	l, err := build(Config{Level: WarnLevel, Format: FormatConsole, OutputPath: path, MaxSize: 1})
	if err != nil {
		t.Fatalf("build() error = %v", err)
	}
	l.Info("below level")
	l.Warn("清洗失败", RunID("run-7"), Int("rows", 3))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("log file has %d lines, want 1: %s", len(lines), data)
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("file entry is not JSON: %v", err)
	}
	if entry["runId"] != "run-7" || entry["level"] != "warn" || entry["timestamp"] == nil {
		t.Errorf("entry = %v", entry)
	}
}

func TestBuildRejectsUnwritableDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := build(Config{OutputPath: filepath.Join(file, "sub", "x.log")}); err == nil {
		t.Error("build() under a regular file succeeded, want error")
	}
}
