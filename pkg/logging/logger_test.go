// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
		{Level(-1), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestLevel_ToSlogLevel(t *testing.T) {
	tests := []struct {
		level Level
		want  slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{Level(99), slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := tt.level.toSlogLevel(); got != tt.want {
			t.Errorf("Level(%d).toSlogLevel() = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestNew_FileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelDebug,
		LogDir:  dir,
		Service: "studio",
		Quiet:   true,
	})
	logger.Info("song submitted", "task_id", "t-1")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() returned error: %v", err)
	}

	wantName := fmt.Sprintf("studio_%s.log", time.Now().Format("2006-01-02"))
	data, err := os.ReadFile(filepath.Join(dir, wantName))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log file is not JSON: %v", err)
	}
	if entry["msg"] != "song submitted" {
		t.Errorf("msg = %v, want %q", entry["msg"], "song submitted")
	}
	if entry["task_id"] != "t-1" {
		t.Errorf("task_id = %v, want t-1", entry["task_id"])
	}
	if entry["service"] != "studio" {
		t.Errorf("service = %v, want studio", entry["service"])
	}
}

func TestNew_DefaultServiceFilename(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{LogDir: dir, Quiet: true})
	logger.Info("hello")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() returned error: %v", err)
	}

	wantName := fmt.Sprintf("studio_%s.log", time.Now().Format("2006-01-02"))
	if _, err := os.Stat(filepath.Join(dir, wantName)); err != nil {
		t.Errorf("expected log file %s: %v", wantName, err)
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelWarn,
		LogDir:  dir,
		Service: "studio",
		Quiet:   true,
	})
	logger.Debug("dropped")
	logger.Info("also dropped")
	logger.Warn("kept")
	logger.Error("kept too")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() returned error: %v", err)
	}

	name := fmt.Sprintf("studio_%s.log", time.Now().Format("2006-01-02"))
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	content := string(data)
	if strings.Contains(content, "dropped") {
		t.Error("messages below the level should not be written")
	}
	if !strings.Contains(content, "kept") || !strings.Contains(content, "kept too") {
		t.Error("Warn and Error should be written at LevelWarn")
	}
}

func TestLogger_With(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{LogDir: dir, Service: "studio", Quiet: true})
	child := logger.With("task_id", "t-42")
	child.Info("progress", "pct", 50)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() returned error: %v", err)
	}

	name := fmt.Sprintf("studio_%s.log", time.Now().Format("2006-01-02"))
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), `"task_id":"t-42"`) {
		t.Errorf("child logger should carry inherited attrs, got: %s", data)
	}
}

func TestLogger_Slog(t *testing.T) {
	logger := New(Config{Quiet: true})
	defer logger.Close()
	if logger.Slog() == nil {
		t.Fatal("Slog() should never return nil")
	}
}

func TestDefault(t *testing.T) {
	logger := Default()
	defer logger.Close()
	if logger.config.Level != LevelInfo {
		t.Errorf("Default() level = %v, want LevelInfo", logger.config.Level)
	}
	if logger.config.Service != "studio" {
		t.Errorf("Default() service = %q, want studio", logger.config.Service)
	}
}

func TestLogger_Exporter(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{
		Level:    LevelInfo,
		Service:  "studio",
		Quiet:    true,
		Exporter: exporter,
	})
	logger.Info("variation selected", "index", 2)
	logger.Debug("below threshold")

	// Export runs on a goroutine; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for len(exporter.Entries()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() returned error: %v", err)
	}

	entries := exporter.Entries()
	if len(entries) != 1 {
		t.Fatalf("exporter got %d entries, want 1", len(entries))
	}
	entry := entries[0]
	if entry.Message != "variation selected" {
		t.Errorf("Message = %q, want %q", entry.Message, "variation selected")
	}
	if entry.Level != LevelInfo {
		t.Errorf("Level = %v, want LevelInfo", entry.Level)
	}
	if entry.Service != "studio" {
		t.Errorf("Service = %q, want studio", entry.Service)
	}
	if entry.Attrs["index"] != 2 {
		t.Errorf("Attrs[index] = %v, want 2", entry.Attrs["index"])
	}
}

func TestLogger_ConcurrentUse(t *testing.T) {
	logger := New(Config{Quiet: true, LogDir: t.TempDir(), Service: "studio"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.Info("concurrent", "n", n)
			logger.With("n", n).Warn("child")
		}(i)
	}
	wg.Wait()
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() returned error: %v", err)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~/logs", filepath.Join(home, "logs")},
		{"/var/log/studio", "/var/log/studio"},
		{"relative/path", "relative/path"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestArgsToMap(t *testing.T) {
	got := argsToMap([]any{"a", 1, "b", "two", 3, "non-string-key", "dangling"})
	if len(got) != 2 {
		t.Fatalf("argsToMap returned %d keys, want 2: %v", len(got), got)
	}
	if got["a"] != 1 || got["b"] != "two" {
		t.Errorf("argsToMap = %v", got)
	}
}

func TestBufferedExporter(t *testing.T) {
	exporter := NewBufferedExporter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := exporter.Export(ctx, LogEntry{Message: fmt.Sprintf("m%d", i)})
		if err != nil {
			t.Fatalf("Export returned error: %v", err)
		}
	}
	if err := exporter.Flush(ctx); err != nil {
		t.Errorf("Flush returned error: %v", err)
	}

	entries := exporter.Entries()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	// Entries returns a copy.
	entries[0].Message = "mutated"
	if exporter.Entries()[0].Message != "m0" {
		t.Error("Entries() should return a copy, not the backing slice")
	}

	if err := exporter.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}
}

func TestWriterExporter(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewWriterExporter(&buf)

	err := exporter.Export(context.Background(), LogEntry{
		Timestamp: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
		Level:     LevelWarn,
		Message:   "quota low",
		Attrs:     map[string]any{"remaining": 1},
	})
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "2026-01-15T12:00:00Z") {
		t.Errorf("output missing RFC3339 timestamp: %q", out)
	}
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "quota low") {
		t.Errorf("output missing level or message: %q", out)
	}
}

func TestNopExporter(t *testing.T) {
	exporter := &NopExporter{}
	ctx := context.Background()
	if err := exporter.Export(ctx, LogEntry{Message: "x"}); err != nil {
		t.Errorf("Export returned error: %v", err)
	}
	if err := exporter.Flush(ctx); err != nil {
		t.Errorf("Flush returned error: %v", err)
	}
	if err := exporter.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}
}
