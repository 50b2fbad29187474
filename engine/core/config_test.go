package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "engine.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[application]
name = "test"
width = 640
height = 480

[renderer]
frames_in_flight = 3
present_mode = "fifo"
clear_color = [0.1, 0.2, 0.3, 1.0]

[lights]
ambient = [1.0, 0.0, 0.0, 0.5]
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Application.Name != "test" || cfg.Application.Width != 640 || cfg.Application.Height != 480 {
		t.Errorf("Application = %+v", cfg.Application)
	}
	// untouched keys keep their defaults
	if cfg.Application.StartX != 100 || cfg.Log.Level != "info" {
		t.Errorf("defaults lost: StartX = %d, Level = %q", cfg.Application.StartX, cfg.Log.Level)
	}
	if cfg.Renderer.FramesInFlight != 3 || cfg.Renderer.PresentMode != "fifo" {
		t.Errorf("Renderer = %+v", cfg.Renderer)
	}
	if cfg.Renderer.ClearColor != [4]float32{0.1, 0.2, 0.3, 1.0} {
		t.Errorf("ClearColor = %v", cfg.Renderer.ClearColor)
	}
	if cfg.Lights.Ambient != [4]float32{1, 0, 0, 0.5} {
		t.Errorf("Ambient = %v", cfg.Lights.Ambient)
	}
	// the pool defaults to one set per frame in flight
	if cfg.Descriptors.MaxSets != 3 || cfg.Descriptors.UniformBuffers != 3 {
		t.Errorf("Descriptors = %+v, want 3 and 3", cfg.Descriptors)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	SetLogOutput(&strings.Builder{})
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Renderer.FramesInFlight != 2 {
		t.Errorf("FramesInFlight = %d, want the default 2", cfg.Renderer.FramesInFlight)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[renderer\nframes_in_flight = 2", "invalid config"},
		{"too many frames", "[renderer]\nframes_in_flight = 4", "frames_in_flight"},
		{"no frames", "[renderer]\nframes_in_flight = 0", "frames_in_flight"},
		{"clear colour", "[renderer]\nclear_color = [2.0, 0.0, 0.0, 1.0]", "clear_color"},
		{"present mode", "[renderer]\npresent_mode = \"vsync\"", "present_mode"},
		{"zero size", "[application]\nwidth = 0", "non-zero"},
		{"small pool", "[descriptors]\nmax_sets = 1", "descriptor pool"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)
			_, err := LoadConfig(path)
			if err == nil {
				t.Fatal("LoadConfig() succeeded, want an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadConfig() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestConfigWatcher(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "[log]\nlevel = \"info\"\n")

	cw, err := NewConfigWatcher(path)
	if err != nil {
		t.Fatalf("NewConfigWatcher() error = %v", err)
	}
	defer cw.Close()

	if _, ok := cw.Poll(); ok {
		t.Fatal("Poll() returned a config before any change")
	}

	writeConfig(t, dir, "[log]\nlevel = \"debug\"\n")

	// a truncating write may be seen half done, keep reading until the
	// final content shows up
	timeout := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-cw.Updates():
			if cfg.Log.Level == "debug" {
				return
			}
		case <-timeout:
			t.Fatal("no config update after the file changed")
		}
	}
}

func TestConfigWatcherClose(t *testing.T) {
	cw, err := NewConfigWatcher(writeConfig(t, t.TempDir(), ""))
	if err != nil {
		t.Fatalf("NewConfigWatcher() error = %v", err)
	}
	if err := cw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := cw.Close(); err == nil {
		t.Error("second Close() succeeded")
	}
	if _, ok := cw.Poll(); ok {
		t.Error("Poll() returned a config after Close")
	}
}
