// Package quota enforces the daily provider-call budget.
package quota

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ResetPolicy controls when the quota day rolls over.
type ResetPolicy struct {
	TimeZone  string `yaml:"timeZone"`
	ResetHour int    `yaml:"resetHour"`
}

// Config holds the operator quota settings from <CONFIG_DIR>/quota.yaml.
type Config struct {
	DailyLimit       int         `yaml:"dailyLimit"`
	ConcurrencyLimit int         `yaml:"concurrencyLimit"`
	ResetPolicy      ResetPolicy `yaml:"resetPolicy"`

	location *time.Location
}

type configFile struct {
	Quota Config `yaml:"quota"`
}

// DefaultConfig is used when quota.yaml is absent.
func DefaultConfig() Config {
	return Config{
		DailyLimit:       100,
		ConcurrencyLimit: 4,
		ResetPolicy:      ResetPolicy{TimeZone: "UTC", ResetHour: 0},
		location:         time.UTC,
	}
}

// LoadConfig reads quota.yaml from the config directory. A missing file
// yields defaults; a present file must carry every setting and pass
// validation.
func LoadConfig(configDir string) (Config, error) {
	path := filepath.Join(configDir, "quota.yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read quota config: %w", err)
	}

	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Config{}, fmt.Errorf("failed to parse quota config: %w", err)
	}

	config := file.Quota
	if err := config.validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.DailyLimit <= 0 {
		return fmt.Errorf("quota dailyLimit must be greater than zero, got %d", c.DailyLimit)
	}
	if c.ConcurrencyLimit <= 0 {
		return fmt.Errorf("quota concurrencyLimit must be greater than zero, got %d", c.ConcurrencyLimit)
	}
	if c.ResetPolicy.ResetHour < 0 || c.ResetPolicy.ResetHour > 23 {
		return fmt.Errorf("quota resetHour must be in [0,23], got %d", c.ResetPolicy.ResetHour)
	}
	if c.ResetPolicy.TimeZone == "" {
		return fmt.Errorf("quota resetPolicy.timeZone is required")
	}
	location, err := time.LoadLocation(c.ResetPolicy.TimeZone)
	if err != nil {
		return fmt.Errorf("invalid quota timeZone %q: %w", c.ResetPolicy.TimeZone, err)
	}
	c.location = location
	return nil
}

// DayFor returns the quota day an instant accounts against, as YYYY-MM-DD.
// Before the reset hour the instant still belongs to the previous day.
func (c *Config) DayFor(instant time.Time) string {
	location := c.location
	if location == nil {
		location = time.UTC
	}
	local := instant.In(location)
	if local.Hour() < c.ResetPolicy.ResetHour {
		local = local.AddDate(0, 0, -1)
	}
	return local.Format("2006-01-02")
}
