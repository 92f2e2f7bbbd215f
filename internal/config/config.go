// Package config loads the daemon's hardware and runtime settings.
//
// The trigger table is not configuration: it is compiled in (see package
// show). This file only says where things are wired and how the daemon
// behaves around them.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// Loading order: defaults, then the YAML file, then PROP_* environment overrides.
type Config struct {
	GPIO    GPIOConfig    `yaml:"gpio"`
	I2C     I2CConfig     `yaml:"i2c"`
	Inputs  InputsConfig  `yaml:"inputs"`
	Events  EventsConfig  `yaml:"events"`
	Logging LoggingConfig `yaml:"logging"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
}

// GPIOConfig describes the sensor input lines.
type GPIOConfig struct {
	Chip string `yaml:"chip"`
	// Lines holds the line offsets of DI1..DI8, in order.
	Lines     []int  `yaml:"lines"`
	Bias      string `yaml:"bias"` // "pull-up", "pull-down" or "disabled"
	ActiveLow bool   `yaml:"active_low"`
}

// I2CConfig describes the relay expander's bus.
type I2CConfig struct {
	Device  string        `yaml:"device"`
	Address uint16        `yaml:"address"`
	Timeout time.Duration `yaml:"timeout"`
}

// InputsConfig contains input monitor settings.
type InputsConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// EventsConfig contains event channel settings.
type EventsConfig struct {
	Capacity int `yaml:"capacity"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MQTTConfig contains the optional diagnostics publisher settings.
// An empty Broker disables MQTT entirely.
type MQTTConfig struct {
	Broker      string        `yaml:"broker"`
	ClientID    string        `yaml:"client_id"`
	TopicPrefix string        `yaml:"topic_prefix"`
	Level       string        `yaml:"level"` // minimum log level forwarded
	Heartbeat   time.Duration `yaml:"heartbeat"`
	QueueSize   int           `yaml:"queue_size"`
}

// Default pin map (BCM numbering) for DI1..DI8 on the opto input hat.
var defaultLines = []int{4, 17, 27, 22, 5, 6, 13, 19}

// Default returns a Config with the stock wiring and timings.
func Default() *Config {
	lines := make([]int, len(defaultLines))
	copy(lines, defaultLines)
	return &Config{
		GPIO: GPIOConfig{
			Chip:  "gpiochip0",
			Lines: lines,
			Bias:  "pull-up",
		},
		I2C: I2CConfig{
			Device:  "/dev/i2c-1",
			Address: 0x20,
			Timeout: 100 * time.Millisecond,
		},
		Inputs: InputsConfig{
			Debounce: 100 * time.Millisecond,
		},
		Events: EventsConfig{
			Capacity: 16,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		MQTT: MQTTConfig{
			ClientID:    "prop-controller",
			TopicPrefix: "props/controller",
			Level:       "info",
			Heartbeat:   15 * time.Minute,
			QueueSize:   64,
		},
	}
}

// Load reads configuration from a YAML file. An empty path returns the
// defaults (with environment overrides applied).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies PROP_SECTION_KEY environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PROP_GPIO_CHIP"); v != "" {
		cfg.GPIO.Chip = v
	}
	if v := os.Getenv("PROP_I2C_DEVICE"); v != "" {
		cfg.I2C.Device = v
	}
	if v := os.Getenv("PROP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PROP_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.GPIO.Chip == "" {
		errs = append(errs, errors.New("gpio.chip is required"))
	}
	if len(c.GPIO.Lines) != 8 {
		errs = append(errs, fmt.Errorf("gpio.lines must list 8 offsets, got %d", len(c.GPIO.Lines)))
	}
	seen := make(map[int]bool, len(c.GPIO.Lines))
	for i, l := range c.GPIO.Lines {
		if l < 0 {
			errs = append(errs, fmt.Errorf("gpio.lines[%d]: negative offset %d", i, l))
		}
		if seen[l] {
			errs = append(errs, fmt.Errorf("gpio.lines[%d]: offset %d used twice", i, l))
		}
		seen[l] = true
	}
	switch strings.ToLower(c.GPIO.Bias) {
	case "pull-up", "pull-down", "disabled", "":
	default:
		errs = append(errs, fmt.Errorf("gpio.bias: unknown value %q", c.GPIO.Bias))
	}

	if c.I2C.Device == "" {
		errs = append(errs, errors.New("i2c.device is required"))
	}
	if c.I2C.Address < 0x08 || c.I2C.Address > 0x77 {
		errs = append(errs, fmt.Errorf("i2c.address 0x%02x outside 7-bit range", c.I2C.Address))
	}
	if c.I2C.Timeout < 0 {
		errs = append(errs, errors.New("i2c.timeout must not be negative"))
	}

	if c.Inputs.Debounce <= 0 {
		errs = append(errs, errors.New("inputs.debounce must be positive"))
	}
	if c.Events.Capacity <= 0 {
		errs = append(errs, errors.New("events.capacity must be positive"))
	}

	if c.MQTT.Broker != "" {
		if c.MQTT.ClientID == "" {
			errs = append(errs, errors.New("mqtt.client_id is required when a broker is set"))
		}
		if c.MQTT.QueueSize <= 0 {
			errs = append(errs, errors.New("mqtt.queue_size must be positive"))
		}
	}
	if c.MQTT.Heartbeat < 0 {
		errs = append(errs, errors.New("mqtt.heartbeat must not be negative"))
	}

	return errors.Join(errs...)
}
