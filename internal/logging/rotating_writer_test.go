package logging

import (
	"os"
	"path/filepath"
	"testing"

	"lobbysync/internal/config"
)

func TestRotatingWriterKeepsActiveFileBounded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lobby.log")
	writer, err := newRotatingWriter(path, 1)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	defer writer.Close()

	chunk := make([]byte, 512*1024)
	for i := 0; i < 3; i++ {
		if _, err := writer.Write(chunk); err != nil {
			t.Fatalf("write chunk %d: %v", i, err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat log: %v", err)
	}
	if info.Size() > 1024*1024 {
		t.Fatalf("active log size = %d, want <= 1MB", info.Size())
	}
	rotated, err := os.Stat(path + ".1")
	if err != nil {
		t.Fatalf("stat rotated log: %v", err)
	}
	if rotated.Size() != 1024*1024 {
		t.Fatalf("rotated log size = %d, want 1MB", rotated.Size())
	}
}

func TestInitWritesToLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	Init(config.LogConfig{Level: "debug", File: path, MaxMB: 1, Service: "test"})
	t.Cleanup(func() { Init(config.LogConfig{Level: "info"}) })

	if _, err := Writer().Write([]byte("{\"msg\":\"hello\"}\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(b) == 0 {
		t.Fatal("expected log file to receive output")
	}
}
