// Package config loads the rig's JSON configuration. Every field is
// optional; the Get methods supply the defaults the rig runs with.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/rig/internal/daq"
	"github.com/banshee-data/rig/internal/flash"
	"github.com/banshee-data/rig/internal/pose"
)

// Default addresses used by the tracking process and the renderer.
const (
	DefaultPathListen     = "127.0.0.1:1317"
	DefaultPathDownstream = "127.0.0.1:1318"
	DefaultFlashListen    = "127.0.0.1:1319"
	DefaultZoneDecay      = "0:0.0055556,1:0.0027778"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// GainOverrides replaces individual gains of a policy's defaults.
type GainOverrides struct {
	Sidestep *float64 `json:"sidestep,omitempty"`
	Forward  *float64 `json:"forward,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Heading  *float64 `json:"heading,omitempty"`
}

// Apply returns base with every set override applied.
func (g *GainOverrides) Apply(base pose.Gains) pose.Gains {
	if g == nil {
		return base
	}
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&base.Sidestep, g.Sidestep)
	set(&base.Forward, g.Forward)
	set(&base.Rotation, g.Rotation)
	set(&base.X, g.X)
	set(&base.Y, g.Y)
	set(&base.Heading, g.Heading)
	return base
}

// RigConfig is the root configuration for both loops.
type RigConfig struct {
	// Position integrator
	PathListen     *string        `json:"path_listen,omitempty"`
	PathDownstream *string        `json:"path_downstream,omitempty"`
	Policy         *string        `json:"policy,omitempty"` // open, swapped or closed
	Gains          *GainOverrides `json:"gains,omitempty"`

	// Flash controller
	FlashListen   *string          `json:"flash_listen,omitempty"`
	Channel       *string          `json:"channel,omitempty"`
	BaseFrequency *float64         `json:"base_frequency,omitempty"`
	ZoneDecay     *string          `json:"zone_decay,omitempty"` // "zone:rate,..."
	DefaultDecay  *float64         `json:"default_decay,omitempty"`
	NoDecay       *bool            `json:"no_decay,omitempty"`
	PollInterval  *string          `json:"poll_interval,omitempty"` // duration string like "1ms"
	Hold          *string          `json:"hold,omitempty"`          // duration string like "2s"
	Driver        *string          `json:"driver,omitempty"`        // serial, gpio or log
	SerialPort    *string          `json:"serial_port,omitempty"`
	Serial        *daq.PortOptions `json:"serial,omitempty"`

	// Shared
	StatsInterval *string `json:"stats_interval,omitempty"` // duration string like "1m"
	RecordPath    *string `json:"record_path,omitempty"`
}

// Empty returns a RigConfig with every field unset.
func Empty() *RigConfig {
	return &RigConfig{}
}

// Load reads a RigConfig from a JSON file. Omitted fields keep their
// defaults, so partial configs are safe.
func Load(path string) (*RigConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the set values are usable.
func (c *RigConfig) Validate() error {
	if c.Policy != nil {
		if _, err := pose.ParsePolicy(*c.Policy); err != nil {
			return err
		}
	}
	if c.BaseFrequency != nil && *c.BaseFrequency <= 0 {
		return fmt.Errorf("base_frequency must be positive, got %f", *c.BaseFrequency)
	}
	if c.DefaultDecay != nil && *c.DefaultDecay < 0 {
		return fmt.Errorf("default_decay must be non-negative, got %f", *c.DefaultDecay)
	}
	for name, d := range map[string]*string{
		"poll_interval":  c.PollInterval,
		"hold":           c.Hold,
		"stats_interval": c.StatsInterval,
	} {
		if d == nil || *d == "" {
			continue
		}
		v, err := time.ParseDuration(*d)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *d, err)
		}
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, *d)
		}
	}
	if c.Driver != nil {
		if _, err := daq.NewOpener(*c.Driver, "", daq.PortOptions{}); err != nil {
			return err
		}
	}
	if c.Serial != nil {
		if _, _, err := c.Serial.Mode(); err != nil {
			return fmt.Errorf("invalid serial options: %w", err)
		}
	}
	return nil
}

func stringOr(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetPathListen returns the integrator's listen address.
func (c *RigConfig) GetPathListen() string { return stringOr(c.PathListen, DefaultPathListen) }

// GetPathDownstream returns the renderer address poses are sent to.
func (c *RigConfig) GetPathDownstream() string {
	return stringOr(c.PathDownstream, DefaultPathDownstream)
}

// GetPolicy returns the integration policy, defaulting to open.
func (c *RigConfig) GetPolicy() pose.Policy {
	p, err := pose.ParsePolicy(stringOr(c.Policy, "open"))
	if err != nil {
		return pose.Open
	}
	return p
}

// GetGains returns the policy's default gains with overrides applied.
func (c *RigConfig) GetGains() pose.Gains {
	return c.Gains.Apply(c.GetPolicy().DefaultGains())
}

// GetFlashListen returns the flash controller's listen address.
func (c *RigConfig) GetFlashListen() string { return stringOr(c.FlashListen, DefaultFlashListen) }

// GetChannel returns the digital output channel.
func (c *RigConfig) GetChannel() string { return stringOr(c.Channel, daq.DefaultChannel) }

// GetBaseFrequency returns the undecayed flash frequency in Hz.
func (c *RigConfig) GetBaseFrequency() float64 {
	if c.BaseFrequency == nil {
		return flash.DefaultBaseFrequency
	}
	return *c.BaseFrequency
}

// GetZoneDecay returns the raw zone decay string.
func (c *RigConfig) GetZoneDecay() string {
	if c.ZoneDecay == nil {
		return DefaultZoneDecay
	}
	return *c.ZoneDecay
}

// GetDefaultDecay returns the rate for zones missing from the table.
func (c *RigConfig) GetDefaultDecay() float64 {
	if c.DefaultDecay == nil {
		return 0
	}
	return *c.DefaultDecay
}

// GetNoDecay reports whether decay is disabled.
func (c *RigConfig) GetNoDecay() bool {
	return c.NoDecay != nil && *c.NoDecay
}

// GetPollInterval returns the flash loop's receive timeout.
func (c *RigConfig) GetPollInterval() time.Duration {
	return durationOr(c.PollInterval, time.Millisecond)
}

// GetHold returns how long the line is held low before release. An explicit
// "0s" disables the hold.
func (c *RigConfig) GetHold() time.Duration { return durationOr(c.Hold, daq.DefaultHold) }

// GetDriver returns the output driver, defaulting to the serial bridge.
func (c *RigConfig) GetDriver() string { return stringOr(c.Driver, daq.DriverSerial) }

// Opener returns the opener for the configured driver. dev forces the
// logging driver.
func (c *RigConfig) Opener(dev bool) (daq.Opener, error) {
	driver := c.GetDriver()
	if dev {
		driver = daq.DriverLog
	}
	return daq.NewOpener(driver, c.GetSerialPort(), c.GetSerial())
}

// GetSerialPort returns the bridge serial device.
func (c *RigConfig) GetSerialPort() string { return stringOr(c.SerialPort, "/dev/ttyACM0") }

// GetSerial returns the bridge serial options.
func (c *RigConfig) GetSerial() daq.PortOptions {
	if c.Serial == nil {
		return daq.PortOptions{}
	}
	return *c.Serial
}

// GetStatsInterval returns how often packet statistics are logged.
func (c *RigConfig) GetStatsInterval() time.Duration {
	return durationOr(c.StatsInterval, time.Minute)
}

// GetRecordPath returns the sqlite recording path, empty when disabled.
func (c *RigConfig) GetRecordPath() string { return stringOr(c.RecordPath, "") }

// FlashParams builds the flash parameters, parsing the zone decay table.
// Malformed pairs are logged by the parser and skipped.
func (c *RigConfig) FlashParams() flash.Params {
	table, _ := flash.ParseDecayTable(c.GetZoneDecay())
	return flash.Params{
		BaseFrequency: c.GetBaseFrequency(),
		Decay:         table,
		DefaultRate:   c.GetDefaultDecay(),
		NoDecay:       c.GetNoDecay(),
	}
}
