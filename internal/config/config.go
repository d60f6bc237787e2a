// Package config holds the application configuration loaded from a
// JSON file. Fields omitted from the file fall back to the documented
// defaults via the Get* accessors, so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stumelius/cranio-sub000/internal/db"
)

// Config is the root application configuration.
type Config struct {
	// DatabasePath is the SQLite file for session data.
	DatabasePath *string `json:"database_path,omitempty"`

	// SerialPort is the device path of the torque gauge.
	SerialPort *string `json:"serial_port,omitempty"`

	// Operator is recorded on every measurement document.
	Operator *string `json:"operator,omitempty"`

	// DefaultDistractor selects the distractor hardware preset.
	DefaultDistractor *string `json:"default_distractor,omitempty"`

	// Timing params, duration strings like "50ms"
	SampleDelay    *string `json:"sample_delay,omitempty"`
	UIPollInterval *string `json:"ui_poll_interval,omitempty"`
	JoinTimeout    *string `json:"join_timeout,omitempty"`

	QueueCapacity *int `json:"queue_capacity,omitempty"`
}

// Empty returns a Config with all fields unset.
func Empty() *Config {
	return &Config{}
}

// Load reads and validates a Config from a JSON file.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	for name, value := range map[string]*string{
		"sample_delay":     c.SampleDelay,
		"ui_poll_interval": c.UIPollInterval,
		"join_timeout":     c.JoinTimeout,
	} {
		if value != nil && *value != "" {
			if _, err := time.ParseDuration(*value); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *value, err)
			}
		}
	}
	if c.QueueCapacity != nil && *c.QueueCapacity <= 0 {
		return fmt.Errorf("queue_capacity must be positive, got %d", *c.QueueCapacity)
	}
	if c.DefaultDistractor != nil {
		known := false
		for _, di := range db.DistractorInfos() {
			if di.Type == *c.DefaultDistractor {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown default_distractor '%s'", *c.DefaultDistractor)
		}
	}
	return nil
}

// GetDatabasePath returns the database_path value or the default.
func (c *Config) GetDatabasePath() string {
	if c.DatabasePath == nil || *c.DatabasePath == "" {
		return "cranio.db"
	}
	return *c.DatabasePath
}

// GetSerialPort returns the serial_port value or the default.
func (c *Config) GetSerialPort() string {
	if c.SerialPort == nil || *c.SerialPort == "" {
		return "/dev/ttyUSB0"
	}
	return *c.SerialPort
}

// GetOperator returns the operator value or the default.
func (c *Config) GetOperator() string {
	if c.Operator == nil {
		return ""
	}
	return *c.Operator
}

// GetDefaultDistractor returns the default_distractor value or the
// default.
func (c *Config) GetDefaultDistractor() string {
	if c.DefaultDistractor == nil || *c.DefaultDistractor == "" {
		return db.DistractorKLSRED
	}
	return *c.DefaultDistractor
}

// GetSampleDelay parses and returns the sample_delay as a
// time.Duration.
func (c *Config) GetSampleDelay() time.Duration {
	return c.duration(c.SampleDelay, 10*time.Millisecond)
}

// GetUIPollInterval parses and returns the ui_poll_interval as a
// time.Duration.
func (c *Config) GetUIPollInterval() time.Duration {
	return c.duration(c.UIPollInterval, 50*time.Millisecond)
}

// GetJoinTimeout parses and returns the join_timeout as a
// time.Duration.
func (c *Config) GetJoinTimeout() time.Duration {
	return c.duration(c.JoinTimeout, time.Second)
}

// GetQueueCapacity returns the queue_capacity value or the default.
func (c *Config) GetQueueCapacity() int {
	if c.QueueCapacity == nil {
		return 1024
	}
	return *c.QueueCapacity
}

func (c *Config) duration(value *string, fallback time.Duration) time.Duration {
	if value == nil || *value == "" {
		return fallback
	}
	d, err := time.ParseDuration(*value)
	if err != nil {
		return fallback
	}
	return d
}
