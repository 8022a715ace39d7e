package slogutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"", 0},
		{"invalid", 0},
		{"-5MB", 0},
		{"inf", 0},
		{"100", 100},
		{"100B", 100},
		{"100b", 100},
		{"1KB", 1024},
		{"1kb", 1024},
		{" 10 KB ", 10240},
		{"1MB", 1 << 20},
		{"1GB", 1 << 30},
		{"1.5MB", int64(1.5 * (1 << 20))},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseSize(tt.input); got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestRotatingFileRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")
	rf, err := OpenRotatingFile(path, 10, 2)
	if err != nil {
		t.Fatalf("OpenRotatingFile() error = %v", err)
	}

	for _, line := range []string{"one\n", "two\n", "three\n", "four\n"} {
		if _, err := rf.Write([]byte(line)); err != nil {
			t.Fatalf("Write(%q) error = %v", line, err)
		}
	}
	if err := rf.Close(); err != nil {
		t.Fatal(err)
	}

	// one+two fit in 10 bytes; three and four each force a rotation.
	if got := readFile(t, path); got != "four\n" {
		t.Errorf("current = %q", got)
	}
	if got := readFile(t, path+".1"); got != "three\n" {
		t.Errorf("backup 1 = %q", got)
	}
	if got := readFile(t, path+".2"); got != "one\ntwo\n" {
		t.Errorf("backup 2 = %q", got)
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Error("backup 3 should not exist")
	}

	if _, err := rf.Write([]byte("late\n")); err == nil {
		t.Error("Write after Close should fail")
	}
}

func TestRotatingFileOversizedRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.log")
	rf, err := OpenRotatingFile(path, 4, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer rf.Close()

	if _, err := rf.Write([]byte("longer than four\n")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("an empty file should not be rotated")
	}
}

func TestRotatingFileNoBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.log")
	rf, err := OpenRotatingFile(path, 6, 0)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = rf.Write([]byte("first\n"))
	_, _ = rf.Write([]byte("second\n"))
	_ = rf.Close()

	if got := readFile(t, path); got != "second\n" {
		t.Errorf("current = %q", got)
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("no backup should be kept")
	}
}

func TestNewFileLogger(t *testing.T) {
	dir := t.TempDir()
	for _, maxSize := range []string{"1MB", ""} {
		path := filepath.Join(dir, "nixlsp"+maxSize+".log")
		logger, closer, err := NewFileLogger(path, FormatHuman, slog.LevelInfo, maxSize, 3)
		if err != nil {
			t.Fatalf("NewFileLogger(maxSize=%q) error = %v", maxSize, err)
		}
		logger.Info("hello", "maxSize", maxSize)
		if err := closer.Close(); err != nil {
			t.Fatal(err)
		}
		if got := readFile(t, path); !strings.Contains(got, "INFO  hello") {
			t.Errorf("maxSize=%q: log = %q", maxSize, got)
		}
	}
}
