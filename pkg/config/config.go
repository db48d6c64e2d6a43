package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dougsko/scumcal/pkg/tuning"
	"gopkg.in/yaml.v2"
)

// Config represents the scumcal configuration
type Config struct {
	Radio struct {
		// Channel plan
		MinChannel    int `yaml:"min_channel"`
		MaxChannel    int `yaml:"max_channel"`
		AnchorChannel int `yaml:"anchor_channel"`

		// Initial sweep window on the anchor channel
		InitialCoarseStart int `yaml:"initial_coarse_start"`
		InitialCoarseEnd   int `yaml:"initial_coarse_end"`
		NominalMid         int `yaml:"nominal_mid"`
		FineHeadroom       int `yaml:"fine_headroom"`

		// Fine codes added to the RX code per listen purpose
		RxFineOffsets struct {
			Listen int `yaml:"listen"`
			Sync   int `yaml:"sync"`
			Ack    int `yaml:"ack"`
		} `yaml:"rx_fine_offsets"`
	} `yaml:"radio"`

	Tuning tuning.Arithmetic `yaml:"tuning"`

	Calibration struct {
		FailureThreshold       int `yaml:"failure_threshold"`
		SlotDuration           int `yaml:"slot_duration"`
		SlotframeLength        int `yaml:"slotframe_length"`
		SlotframesPerCandidate int `yaml:"slotframes_per_candidate"`
		SweptChannels          int `yaml:"swept_channels"`
		TxFailureCeiling       int `yaml:"tx_failure_ceiling"`
	} `yaml:"calibration"`

	Feedback struct {
		Enabled   bool `yaml:"enabled"`
		Capacity  int  `yaml:"capacity"`
		NominalIF int  `yaml:"nominal_if"`
		Tolerance int  `yaml:"tolerance"`
	} `yaml:"feedback"`

	Simulation struct {
		Seed           int64   `yaml:"seed"`
		SlotIntervalMs int     `yaml:"slot_interval_ms"`
		TrueAnchorCode string  `yaml:"true_anchor_code"`
		LockWindow     int     `yaml:"lock_window"`
		TxSkew         int     `yaml:"tx_skew"`
		IFPerFine      int     `yaml:"if_per_fine"`
		DriftEverySlot int     `yaml:"drift_every_slots"`
		LossRate       float64 `yaml:"loss_rate"`
		IFSampleRate   int     `yaml:"if_sample_rate"`
		IFWindow       int     `yaml:"if_window"`
	} `yaml:"simulation"`

	Web struct {
		Port        int    `yaml:"port"`
		BindAddress string `yaml:"bind_address"`
		AuthSecret  string `yaml:"auth_secret"`
	} `yaml:"web"`

	API struct {
		UnixSocket string `yaml:"unix_socket"`
	} `yaml:"api"`

	Storage struct {
		DatabasePath string `yaml:"database_path"`
		MaxEvents    int    `yaml:"max_events"`
	} `yaml:"storage"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		Console    bool   `yaml:"console"`
		Structured bool   `yaml:"structured"`
		MaxSize    int    `yaml:"max_size"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`
}

// Default returns the configuration of the reference mote
func Default() *Config {
	var c Config

	c.Radio.MinChannel = 11
	c.Radio.MaxChannel = 26
	c.Radio.AnchorChannel = 17
	c.Radio.InitialCoarseStart = tuning.MinCode
	c.Radio.InitialCoarseEnd = tuning.MaxCode
	c.Radio.NominalMid = 29
	c.Radio.FineHeadroom = 7
	c.Radio.RxFineOffsets.Listen = 7
	c.Radio.RxFineOffsets.Sync = 0
	c.Radio.RxFineOffsets.Ack = 3

	c.Tuning = tuning.DefaultArithmetic()

	c.Calibration.FailureThreshold = 2
	c.Calibration.SlotDuration = 10011
	c.Calibration.SlotframeLength = 101
	c.Calibration.SlotframesPerCandidate = 2
	c.Calibration.TxFailureCeiling = 64

	c.Feedback.Enabled = true
	c.Feedback.Capacity = 10
	c.Feedback.NominalIF = 500
	c.Feedback.Tolerance = 25

	c.Simulation.Seed = 1
	c.Simulation.SlotIntervalMs = 1
	c.Simulation.TrueAnchorCode = "23.29.12"
	c.Simulation.LockWindow = 2
	c.Simulation.TxSkew = 3
	c.Simulation.IFPerFine = 20
	c.Simulation.DriftEverySlot = 5000
	c.Simulation.LossRate = 0.05
	c.Simulation.IFSampleRate = 20000000
	c.Simulation.IFWindow = 2048

	c.Web.Port = 8080
	c.Web.BindAddress = "0.0.0.0"

	c.API.UnixSocket = "/tmp/scumcal.sock"

	c.Storage.DatabasePath = ""
	c.Storage.MaxEvents = 10000

	c.Logging.Level = "info"
	c.Logging.Console = true
	c.Logging.MaxSize = 10
	c.Logging.MaxBackups = 5
	c.Logging.MaxAge = 30
	c.Logging.Compress = true

	return &c
}

// LoadConfig loads configuration from a YAML file over the defaults, then
// applies environment overrides
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(config)
	return config, nil
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(c *Config) {
	if socket := os.Getenv("SCUMCAL_SOCKET"); socket != "" {
		c.API.UnixSocket = socket
	}
	if level := os.Getenv("SCUMCAL_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if port := os.Getenv("SCUMCAL_WEB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Web.Port = p
		}
	}
	if secret := os.Getenv("SCUMCAL_AUTH_SECRET"); secret != "" {
		c.Web.AuthSecret = secret
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	r := c.Radio
	if r.MinChannel < 0 || r.MaxChannel < r.MinChannel {
		return fmt.Errorf("invalid channel range %d..%d", r.MinChannel, r.MaxChannel)
	}
	if r.AnchorChannel < r.MinChannel || r.AnchorChannel > r.MaxChannel {
		return fmt.Errorf("anchor channel %d outside %d..%d", r.AnchorChannel, r.MinChannel, r.MaxChannel)
	}
	if !inCodeSpan(r.InitialCoarseStart) || !inCodeSpan(r.InitialCoarseEnd) || r.InitialCoarseStart > r.InitialCoarseEnd {
		return fmt.Errorf("invalid initial coarse range %d..%d", r.InitialCoarseStart, r.InitialCoarseEnd)
	}
	if !inCodeSpan(r.NominalMid) {
		return fmt.Errorf("nominal mid code %d out of range", r.NominalMid)
	}
	if !inCodeSpan(r.FineHeadroom) {
		return fmt.Errorf("fine headroom %d out of range", r.FineHeadroom)
	}
	for name, off := range map[string]int{"listen": r.RxFineOffsets.Listen, "sync": r.RxFineOffsets.Sync, "ack": r.RxFineOffsets.Ack} {
		if off < 0 || off > r.FineHeadroom {
			return fmt.Errorf("RX %s fine offset %d outside 0..%d", name, off, r.FineHeadroom)
		}
	}
	if err := c.Tuning.Validate(); err != nil {
		return err
	}

	cal := c.Calibration
	if cal.FailureThreshold < 1 || cal.FailureThreshold > 255 {
		return fmt.Errorf("failure threshold %d outside 1..255", cal.FailureThreshold)
	}
	if cal.SlotDuration <= 0 || cal.SlotframeLength <= 0 || cal.SlotframesPerCandidate <= 0 || cal.SweptChannels < 0 {
		return fmt.Errorf("invalid calibration timing")
	}
	if cal.TxFailureCeiling <= 0 {
		return fmt.Errorf("tx failure ceiling must be positive")
	}

	if c.Feedback.Capacity < 3 {
		return fmt.Errorf("feedback capacity %d must be at least 3", c.Feedback.Capacity)
	}
	if c.Feedback.Tolerance < 0 || c.Feedback.Tolerance >= c.Feedback.NominalIF {
		return fmt.Errorf("feedback tolerance %d must be below nominal IF %d", c.Feedback.Tolerance, c.Feedback.NominalIF)
	}

	sim := c.Simulation
	if _, err := c.TrueAnchorCode(); err != nil {
		return err
	}
	if sim.LossRate < 0 || sim.LossRate >= 1 {
		return fmt.Errorf("simulation loss rate %v outside [0, 1)", sim.LossRate)
	}
	if sim.SlotIntervalMs < 0 || sim.LockWindow < 0 || sim.DriftEverySlot < 0 || sim.IFPerFine < 0 {
		return fmt.Errorf("invalid simulation timing")
	}
	if sim.IFSampleRate <= 0 || sim.IFWindow < 64 {
		return fmt.Errorf("invalid IF meter settings")
	}

	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("invalid web port %d", c.Web.Port)
	}
	if c.Storage.MaxEvents < 0 {
		return fmt.Errorf("max events must not be negative")
	}
	return nil
}

// TrueAnchorCode parses the simulated radio's real anchor RX code
func (c *Config) TrueAnchorCode() (tuning.Code, error) {
	code, err := tuning.ParseCode(c.Simulation.TrueAnchorCode)
	if err != nil {
		return tuning.Code{}, fmt.Errorf("true anchor code: %w", err)
	}
	return code, nil
}

func inCodeSpan(v int) bool {
	return v >= tuning.MinCode && v <= tuning.MaxCode
}
