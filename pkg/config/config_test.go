package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dougsko/scumcal/pkg/tuning"
)

func TestLoadConfig(t *testing.T) {
	// Create a temporary directory for test files
	tempDir, err := os.MkdirTemp("", "scumcal-config-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	t.Run("Valid Config", func(t *testing.T) {
		configContent := `
radio:
  anchor_channel: 20
  initial_coarse_start: 22
  initial_coarse_end: 24
  rx_fine_offsets:
    listen: 5

tuning:
  mid_codes_between_channels_tx: 6

calibration:
  failure_threshold: 3
  tx_failure_ceiling: 100

feedback:
  tolerance: 40

web:
  port: 9090

storage:
  database_path: "/tmp/scumcal.db"
  max_events: 5000

logging:
  level: "debug"
  file: "/var/log/scumcal.log"
  console: true
`
		configPath := filepath.Join(tempDir, "valid.yaml")
		if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
			t.Fatalf("Failed to write config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if config.Radio.AnchorChannel != 20 {
			t.Errorf("Expected anchor channel 20, got %d", config.Radio.AnchorChannel)
		}
		if config.Radio.InitialCoarseStart != 22 || config.Radio.InitialCoarseEnd != 24 {
			t.Errorf("Expected coarse 22..24, got %d..%d", config.Radio.InitialCoarseStart, config.Radio.InitialCoarseEnd)
		}
		if config.Radio.RxFineOffsets.Listen != 5 {
			t.Errorf("Expected listen offset 5, got %d", config.Radio.RxFineOffsets.Listen)
		}
		if config.Radio.RxFineOffsets.Ack != 3 {
			t.Errorf("Expected default ack offset 3, got %d", config.Radio.RxFineOffsets.Ack)
		}
		if config.Tuning.MidCodesBetweenChannelsTX != 6 {
			t.Errorf("Expected TX channel spacing 6, got %d", config.Tuning.MidCodesBetweenChannelsTX)
		}
		if config.Tuning.MidCodesBetweenChannelsRX != 5 {
			t.Errorf("Expected default RX channel spacing 5, got %d", config.Tuning.MidCodesBetweenChannelsRX)
		}
		if config.Calibration.FailureThreshold != 3 {
			t.Errorf("Expected failure threshold 3, got %d", config.Calibration.FailureThreshold)
		}
		if config.Feedback.Tolerance != 40 {
			t.Errorf("Expected tolerance 40, got %d", config.Feedback.Tolerance)
		}
		if config.Web.Port != 9090 {
			t.Errorf("Expected web port 9090, got %d", config.Web.Port)
		}
		if config.Storage.MaxEvents != 5000 {
			t.Errorf("Expected max events 5000, got %d", config.Storage.MaxEvents)
		}
		if config.Logging.Level != "debug" {
			t.Errorf("Expected log level debug, got %s", config.Logging.Level)
		}
		if err := config.Validate(); err != nil {
			t.Errorf("Expected valid config, got: %v", err)
		}
	})

	t.Run("Empty File", func(t *testing.T) {
		configPath := filepath.Join(tempDir, "empty.yaml")
		if err := os.WriteFile(configPath, []byte(""), 0644); err != nil {
			t.Fatalf("Failed to write empty config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("Expected no error for empty file, got: %v", err)
		}

		if config.Radio.MinChannel != 11 || config.Radio.MaxChannel != 26 {
			t.Errorf("Expected default channels 11..26, got %d..%d", config.Radio.MinChannel, config.Radio.MaxChannel)
		}
		if config.Tuning != tuning.DefaultArithmetic() {
			t.Errorf("Expected default tuning constants, got %+v", config.Tuning)
		}
		if config.Feedback.Capacity != 10 {
			t.Errorf("Expected default feedback capacity 10, got %d", config.Feedback.Capacity)
		}
		if config.Logging.MaxBackups != 5 {
			t.Errorf("Expected default log max backups 5, got %d", config.Logging.MaxBackups)
		}
	})

	t.Run("Environment Overrides", func(t *testing.T) {
		configPath := filepath.Join(tempDir, "env.yaml")
		if err := os.WriteFile(configPath, []byte("web:\n  port: 9000\n"), 0644); err != nil {
			t.Fatalf("Failed to write config file: %v", err)
		}
		t.Setenv("SCUMCAL_WEB_PORT", "9100")
		t.Setenv("SCUMCAL_SOCKET", "/run/scumcal.sock")

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if config.Web.Port != 9100 {
			t.Errorf("Expected env web port 9100, got %d", config.Web.Port)
		}
		if config.API.UnixSocket != "/run/scumcal.sock" {
			t.Errorf("Expected env socket, got %s", config.API.UnixSocket)
		}
	})

	t.Run("File Not Found", func(t *testing.T) {
		_, err := LoadConfig("/nonexistent/path/config.yaml")
		if err == nil {
			t.Fatal("Expected error for nonexistent file, got nil")
		}
		if !strings.Contains(err.Error(), "failed to read config file") {
			t.Errorf("Expected 'failed to read config file' error, got: %v", err)
		}
	})

	t.Run("Invalid YAML", func(t *testing.T) {
		configContent := `
radio:
  anchor_channel: [invalid yaml structure
`
		configPath := filepath.Join(tempDir, "invalid.yaml")
		if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
			t.Fatalf("Failed to write config file: %v", err)
		}

		_, err := LoadConfig(configPath)
		if err == nil {
			t.Fatal("Expected error for invalid YAML, got nil")
		}
		if !strings.Contains(err.Error(), "failed to parse config file") {
			t.Errorf("Expected 'failed to parse config file' error, got: %v", err)
		}
	})
}

func TestValidate(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		if err := Default().Validate(); err != nil {
			t.Errorf("Expected no error for defaults, got: %v", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"Anchor Outside Range", func(c *Config) { c.Radio.AnchorChannel = 27 }, "anchor channel"},
		{"Inverted Coarse", func(c *Config) { c.Radio.InitialCoarseStart, c.Radio.InitialCoarseEnd = 5, 2 }, "initial coarse range"},
		{"Offset Beyond Headroom", func(c *Config) { c.Radio.RxFineOffsets.Ack = 8 }, "fine offset"},
		{"Overlap Too Large", func(c *Config) { c.Tuning.FineCodesPerMidTransition = 32 }, "invalid tuning constants"},
		{"Zero Threshold", func(c *Config) { c.Calibration.FailureThreshold = 0 }, "failure threshold"},
		{"Tiny Feedback Window", func(c *Config) { c.Feedback.Capacity = 2 }, "feedback capacity"},
		{"Bad Anchor Code", func(c *Config) { c.Simulation.TrueAnchorCode = "23.40.1" }, "out of range"},
		{"Unparsable Anchor Code", func(c *Config) { c.Simulation.TrueAnchorCode = "abc" }, "true anchor code"},
		{"Loss Rate", func(c *Config) { c.Simulation.LossRate = 1 }, "loss rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			err := config.Validate()
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestTrueAnchorCode(t *testing.T) {
	config := Default()
	config.Simulation.TrueAnchorCode = "23.29.05"

	code, err := config.TrueAnchorCode()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if code != (tuning.Code{Coarse: 23, Mid: 29, Fine: 5}) {
		t.Errorf("Expected 23.29.05, got %s", code)
	}
}
