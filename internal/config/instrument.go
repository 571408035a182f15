package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/track.monitor/internal/alert"
	"github.com/banshee-data/track.monitor/internal/serialmux"
	"github.com/banshee-data/track.monitor/internal/session"
	"github.com/banshee-data/track.monitor/internal/stats"
	"github.com/banshee-data/track.monitor/internal/units"
)

// DefaultConfigPath is the canonical instrument defaults file.
const DefaultConfigPath = "config/instrument.defaults.json"

// DefaultAPIKeyEnv names the environment variable holding the diagnosis key.
const DefaultAPIKeyEnv = "ATC_DIAGNOSIS_API_KEY"

// InstrumentConfig is the on-disk configuration of the instrument. Every
// field is optional; the Get* methods supply defaults.
type InstrumentConfig struct {
	// Alerting
	ThresholdLA  *float64 `json:"threshold_la,omitempty"`
	ThresholdLI  *float64 `json:"threshold_li,omitempty"`
	ThresholdLAI *float64 `json:"threshold_lai,omitempty"`
	Cooldown     *string  `json:"cooldown,omitempty"` // duration string like "400ms"

	// Session
	Decimation *int    `json:"decimation,omitempty"`
	HistoryCap *int    `json:"history_cap,omitempty"`
	SpeedUnits *string `json:"speed_units,omitempty"`

	// Service
	Listen *string `json:"listen,omitempty"`
	DBPath *string `json:"db_path,omitempty"`

	// Sensors. An empty port path disables the device.
	MotionPort    *string                `json:"motion_port,omitempty"`
	MotionOptions *serialmux.PortOptions `json:"motion_options,omitempty"`
	MotionInit    []string               `json:"motion_init,omitempty"`
	GPSPort       *string                `json:"gps_port,omitempty"`
	GPSOptions    *serialmux.PortOptions `json:"gps_options,omitempty"`
	BuzzerPort    *string                `json:"buzzer_port,omitempty"`

	Audio *alert.Settings `json:"audio,omitempty"`

	// Diagnosis collaborator
	DiagnosisEndpoint *string `json:"diagnosis_endpoint,omitempty"`
	DiagnosisKeyEnv   *string `json:"diagnosis_key_env,omitempty"`
}

// EmptyInstrumentConfig returns a config with every field unset.
func EmptyInstrumentConfig() *InstrumentConfig {
	return &InstrumentConfig{}
}

// LoadInstrumentConfig reads and validates a .json config file of at most 1 MiB.
func LoadInstrumentConfig(path string) (*InstrumentConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyInstrumentConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the working directory
// or a parent. It panics when the file cannot be found; intended for tests.
func MustLoadDefaultConfig() *InstrumentConfig {
	for _, prefix := range []string{"", "../", "../../", "../../../"} {
		if cfg, err := LoadInstrumentConfig(prefix + DefaultConfigPath); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the set fields and their combination.
func (c *InstrumentConfig) Validate() error {
	if err := c.GetThresholds().Validate(); err != nil {
		return err
	}
	if c.Cooldown != nil && *c.Cooldown != "" {
		d, err := time.ParseDuration(*c.Cooldown)
		if err != nil {
			return fmt.Errorf("invalid cooldown '%s': %w", *c.Cooldown, err)
		}
		if d <= 0 {
			return fmt.Errorf("cooldown must be positive, got %s", d)
		}
	}
	if c.Decimation != nil && *c.Decimation < 1 {
		return fmt.Errorf("decimation must be at least 1, got %d", *c.Decimation)
	}
	if c.HistoryCap != nil && *c.HistoryCap < 1 {
		return fmt.Errorf("history_cap must be at least 1, got %d", *c.HistoryCap)
	}
	if c.SpeedUnits != nil && !units.IsValid(*c.SpeedUnits) {
		return fmt.Errorf("invalid speed_units %q: must be one of %s", *c.SpeedUnits, units.GetValidUnitsString())
	}
	for name, opts := range map[string]*serialmux.PortOptions{"motion_options": c.MotionOptions, "gps_options": c.GPSOptions} {
		if opts == nil {
			continue
		}
		if _, err := opts.Normalise(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// GetThresholds returns the LA/LI/LAI thresholds.
func (c *InstrumentConfig) GetThresholds() alert.Thresholds {
	th := alert.DefaultThresholds()
	if c.ThresholdLA != nil {
		th.LA = *c.ThresholdLA
	}
	if c.ThresholdLI != nil {
		th.LI = *c.ThresholdLI
	}
	if c.ThresholdLAI != nil {
		th.LAI = *c.ThresholdLAI
	}
	return th
}

// GetCooldown returns the alert cooldown.
func (c *InstrumentConfig) GetCooldown() time.Duration {
	if c.Cooldown == nil || *c.Cooldown == "" {
		return alert.DefaultCooldown
	}
	d, err := time.ParseDuration(*c.Cooldown)
	if err != nil || d <= 0 {
		return alert.DefaultCooldown
	}
	return d
}

func (c *InstrumentConfig) GetDecimation() int {
	if c.Decimation == nil {
		return stats.DefaultDecimation
	}
	return *c.Decimation
}

func (c *InstrumentConfig) GetHistoryCap() int {
	if c.HistoryCap == nil {
		return session.DefaultHistoryCap
	}
	return *c.HistoryCap
}

func (c *InstrumentConfig) GetSpeedUnits() string {
	if c.SpeedUnits == nil {
		return units.MPS
	}
	return *c.SpeedUnits
}

func (c *InstrumentConfig) GetListen() string {
	if c.Listen == nil {
		return ":8080"
	}
	return *c.Listen
}

func (c *InstrumentConfig) GetDBPath() string {
	if c.DBPath == nil {
		return "track_monitor.db"
	}
	return *c.DBPath
}

func (c *InstrumentConfig) GetMotionPort() string {
	if c.MotionPort == nil {
		return "/dev/ttyUSB0"
	}
	return *c.MotionPort
}

func (c *InstrumentConfig) GetMotionOptions() serialmux.PortOptions {
	if c.MotionOptions == nil {
		return serialmux.PortOptions{}
	}
	return *c.MotionOptions
}

func (c *InstrumentConfig) GetGPSPort() string {
	if c.GPSPort == nil {
		return "/dev/ttyACM0"
	}
	return *c.GPSPort
}

func (c *InstrumentConfig) GetGPSOptions() serialmux.PortOptions {
	if c.GPSOptions == nil {
		return serialmux.PortOptions{BaudRate: 9600}
	}
	return *c.GPSOptions
}

// GetBuzzerPort returns the buzzer port; empty means no buzzer.
func (c *InstrumentConfig) GetBuzzerPort() string {
	if c.BuzzerPort == nil {
		return ""
	}
	return *c.BuzzerPort
}

func (c *InstrumentConfig) GetAudio() alert.Settings {
	if c.Audio == nil {
		return alert.DefaultSettings()
	}
	return *c.Audio
}

func (c *InstrumentConfig) GetDiagnosisEndpoint() string {
	if c.DiagnosisEndpoint == nil {
		return ""
	}
	return *c.DiagnosisEndpoint
}

// GetDiagnosisKey reads the diagnosis API key from the configured
// environment variable.
func (c *InstrumentConfig) GetDiagnosisKey() string {
	name := DefaultAPIKeyEnv
	if c.DiagnosisKeyEnv != nil && *c.DiagnosisKeyEnv != "" {
		name = *c.DiagnosisKeyEnv
	}
	return os.Getenv(name)
}

// StoreOptions maps the config onto session store options.
func (c *InstrumentConfig) StoreOptions() session.Options {
	return session.Options{
		HistoryCap: c.GetHistoryCap(),
		Cooldown:   c.GetCooldown(),
		Decimation: c.GetDecimation(),
		SpeedUnits: c.GetSpeedUnits(),
	}
}
