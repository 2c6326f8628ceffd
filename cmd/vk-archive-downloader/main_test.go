package main

import (
	"testing"

	"github.com/spf13/viper"

	"github.com/vkget/vk-archive-downloader/internal/config"
)

func TestBindPipelineFlags(t *testing.T) {
	configPath := ""
	cmd := newMessagesCmd(&configPath)

	for flag, value := range map[string]string{
		"root-dir":    "/tmp/archive",
		"workers":     "6",
		"retries":     "5",
		"retry-delay": "3s",
		"force":       "true",
	} {
		if err := cmd.Flags().Set(flag, value); err != nil {
			t.Fatalf("Failed to set flag %s: %v", flag, err)
		}
	}

	v := viper.New()
	settings := config.NewSettings(v)
	if err := bindPipelineFlags(v, cmd); err != nil {
		t.Fatalf("bindPipelineFlags failed: %v", err)
	}

	if settings.GetRootDirectory() != "/tmp/archive" {
		t.Errorf("Expected root dir from flag, got '%s'", settings.GetRootDirectory())
	}
	if settings.GetMaxParallelDownloads() != 6 {
		t.Errorf("Expected 6 workers, got %d", settings.GetMaxParallelDownloads())
	}
	if settings.GetRetryLimit() != 5 {
		t.Errorf("Expected 5 retries, got %d", settings.GetRetryLimit())
	}
	if settings.GetRetryDelay().String() != "3s" {
		t.Errorf("Expected 3s retry delay, got %s", settings.GetRetryDelay())
	}
	if !settings.GetForce() {
		t.Error("Expected force to be set")
	}
}

func TestRootCmdSubcommands(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"messages", "albums"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("Expected subcommand '%s' to exist: %v", name, err)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n        int64
		expected string
	}{
		{0, "0B"},
		{512, "512B"},
		{2048, "2.0KB"},
		{5 * 1024 * 1024, "5.0MB"},
		{3 * 1024 * 1024 * 1024, "3.0GB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.expected {
			t.Errorf("Expected '%s' for %d, got '%s'", tt.expected, tt.n, got)
		}
	}
}
