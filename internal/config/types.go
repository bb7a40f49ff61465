package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/multierr"
)

// FileName is the config file looked up in the config directory
const FileName = "blinds.yaml"

// Config represents the blinds.yaml structure
type Config struct {
	Entries        []EntryConfig       `yaml:"entries"`
	ScanInterval   time.Duration       `yaml:"scan_interval"`
	RequestTimeout time.Duration       `yaml:"request_timeout"`
	HomeAssistant  HomeAssistantConfig `yaml:"home_assistant"`
	MQTT           MQTTConfig          `yaml:"mqtt"`
	SunSchedule    SunScheduleConfig   `yaml:"sun_schedule"`
	API            APIConfig           `yaml:"api"`
	Log            LogConfig           `yaml:"log"`
}

// EntryConfig is one controller to set up
type EntryConfig struct {
	ID     string         `yaml:"id"`
	Domain string         `yaml:"domain"`
	Title  string         `yaml:"title"`
	Host   string         `yaml:"host"`
	Port   int            `yaml:"port"`
	Names  map[int]string `yaml:"names"`
	Blinds []int          `yaml:"blinds"`

	// Zero means inherit the top-level value
	ScanInterval   time.Duration `yaml:"scan_interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// HomeAssistantConfig configures the Home Assistant bridge
type HomeAssistantConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	// ReadOnly mirrors state but ignores service calls
	ReadOnly bool `yaml:"read_only"`
}

// MQTTConfig configures the MQTT bridge
type MQTTConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Broker      string        `yaml:"broker"`
	ClientID    string        `yaml:"client_id"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	TopicPrefix string        `yaml:"topic_prefix"`
	QoS         int           `yaml:"qos"`
	KeepAlive   time.Duration `yaml:"keep_alive"`
}

// SunScheduleConfig configures opening at sunrise and closing at sunset
type SunScheduleConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Latitude      float64       `yaml:"latitude"`
	Longitude     float64       `yaml:"longitude"`
	SunriseOffset time.Duration `yaml:"sunrise_offset"`
	SunsetOffset  time.Duration `yaml:"sunset_offset"`
	// Covers limits the schedule to these unique ids; empty means all covers
	Covers []string `yaml:"covers"`
}

// APIConfig configures the local HTTP API
type APIConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with every default applied
func Default() *Config {
	return &Config{
		ScanInterval:   30 * time.Second,
		RequestTimeout: 10 * time.Second,
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "blindscontrol",
			TopicPrefix: "blinds",
			QoS:         1,
			KeepAlive:   30 * time.Second,
		},
		API: APIConfig{
			Enabled: true,
			Port:    8080,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// ApplyEnv overrides file values with the process environment
func (c *Config) ApplyEnv() {
	if v := os.Getenv("HA_URL"); v != "" {
		c.HomeAssistant.URL = v
	}
	if v := os.Getenv("HA_TOKEN"); v != "" {
		c.HomeAssistant.Token = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.API.Port = port
		}
	}
	if v := os.Getenv("MQTT_USERNAME"); v != "" {
		c.MQTT.Username = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		c.MQTT.Password = v
	}
}

// EffectiveID is the entry id, or the default domain_host_port id when none is set.
// Domains with a fixed port are resolved again when the entry is set up.
func (e EntryConfig) EffectiveID() string {
	if e.ID != "" {
		return e.ID
	}
	host, port := e.Host, e.Port
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = 80
	}
	return fmt.Sprintf("%s_%s_%d", e.Domain, host, port)
}

// Validate reports every problem in the config at once
func (c *Config) Validate() error {
	var errs error

	if len(c.Entries) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("at least one entry is required"))
	}
	seen := make(map[string]bool)
	for i, e := range c.Entries {
		if e.Domain == "" {
			errs = multierr.Append(errs, fmt.Errorf("entries[%d].domain is required", i))
		}
		if e.Port < 0 || e.Port > 65535 {
			errs = multierr.Append(errs, fmt.Errorf("entries[%d].port must be between 1 and 65535", i))
		}
		if id := e.EffectiveID(); e.ID != "" || e.Domain != "" {
			if seen[id] {
				errs = multierr.Append(errs, fmt.Errorf("entries[%d].id %q is duplicated", i, id))
			}
			seen[id] = true
		}
	}

	if c.ScanInterval <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("scan_interval must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("request_timeout must be positive"))
	}

	if c.HomeAssistant.Enabled {
		if c.HomeAssistant.URL == "" {
			errs = multierr.Append(errs, fmt.Errorf("home_assistant.url is required (set HA_URL)"))
		}
		if c.HomeAssistant.Token == "" {
			errs = multierr.Append(errs, fmt.Errorf("home_assistant.token is required (set HA_TOKEN)"))
		}
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			errs = multierr.Append(errs, fmt.Errorf("mqtt.broker is required"))
		}
		if c.MQTT.TopicPrefix == "" {
			errs = multierr.Append(errs, fmt.Errorf("mqtt.topic_prefix is required"))
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = multierr.Append(errs, fmt.Errorf("mqtt.qos must be 0, 1, or 2"))
		}
	}

	if c.SunSchedule.Enabled {
		if c.SunSchedule.Latitude < -90 || c.SunSchedule.Latitude > 90 {
			errs = multierr.Append(errs, fmt.Errorf("sun_schedule.latitude must be between -90 and 90"))
		}
		if c.SunSchedule.Longitude < -180 || c.SunSchedule.Longitude > 180 {
			errs = multierr.Append(errs, fmt.Errorf("sun_schedule.longitude must be between -180 and 180"))
		}
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = multierr.Append(errs, fmt.Errorf("api.port must be between 1 and 65535"))
	}

	return errs
}

// EntryScanInterval returns the entry's poll interval, falling back to the global one
func (c *Config) EntryScanInterval(e EntryConfig) time.Duration {
	if e.ScanInterval > 0 {
		return e.ScanInterval
	}
	return c.ScanInterval
}

// EntryRequestTimeout returns the entry's request timeout, falling back to the global one
func (c *Config) EntryRequestTimeout(e EntryConfig) time.Duration {
	if e.RequestTimeout > 0 {
		return e.RequestTimeout
	}
	return c.RequestTimeout
}
