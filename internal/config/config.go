package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Govee           GoveeConfig    `yaml:"govee"`
	Dispatch        DispatchConfig `yaml:"dispatch"`
	Schedule        ScheduleConfig `yaml:"schedule"`
	Sunrise         SunriseConfig  `yaml:"sunrise"`
	Lamp            LampConfig     `yaml:"lamp"`
	Database        DatabaseConfig `yaml:"database"`
	Storage         StorageConfig  `yaml:"storage"`
	Scenes          ScenesConfig   `yaml:"scenes"`
	HTTP            HTTPConfig     `yaml:"http"`
	MQTT            MQTTConfig     `yaml:"mqtt"`
	Ledger          LedgerConfig   `yaml:"ledger"`
	Log             LogConfig      `yaml:"log"`
	ShutdownTimeout Duration       `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// GoveeConfig contains lamp API settings
type GoveeConfig struct {
	APIKey     string   `yaml:"api_key"`
	Device     string   `yaml:"device"`
	Model      string   `yaml:"model"`
	BaseURL    string   `yaml:"base_url"`
	Timeout    Duration `yaml:"timeout"`     // HTTP timeout for API requests
	Debug      bool     `yaml:"debug"`       // Pretend every command succeeds, no HTTP
	ControlRPM float64  `yaml:"control_rpm"` // Control request quota per minute
	StateRPS   float64  `yaml:"state_rps"`   // State read throttle
}

// DispatchConfig contains command loop settings
type DispatchConfig struct {
	Interval         Duration `yaml:"interval"`           // Pause after each apply attempt
	AvgApplyDuration Duration `yaml:"avg_apply_duration"` // Typical time one command takes to land
	MailboxSize      int      `yaml:"mailbox_size"`
}

// ScheduleConfig contains timer matching settings
type ScheduleConfig struct {
	Timezone string `yaml:"timezone"`
}

// SunriseConfig contains the ramp end points
type SunriseConfig struct {
	Hue             float64 `yaml:"hue"`
	SaturationStart float64 `yaml:"saturation_start"`
	SaturationStop  float64 `yaml:"saturation_stop"`
	Value           float64 `yaml:"value"`
	BrightnessStart int     `yaml:"brightness_start"`
	BrightnessStop  int     `yaml:"brightness_stop"`
}

// LampConfig contains the values the built-in scenes use
type LampConfig struct {
	DayBrightness   int    `yaml:"day_brightness"`
	NightBrightness int    `yaml:"night_brightness"`
	NightlampColor  [3]int `yaml:"nightlamp_color"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// StorageConfig selects where timers are persisted
type StorageConfig struct {
	Timers   string `yaml:"timers"` // "sqlite" or "bolt"
	BoltPath string `yaml:"bolt_path"`
}

// ScenesConfig points at an optional Lua scene script
type ScenesConfig struct {
	Script string `yaml:"script"`
}

// HTTPConfig contains control API server settings
type HTTPConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// IsEnabled returns whether the HTTP server is enabled (default: true)
func (c *HTTPConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Addr returns host:port
func (c *HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MQTTConfig contains MQTT bridge settings
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

// LedgerConfig contains event ledger settings
type LedgerConfig struct {
	Enabled         *bool    `yaml:"enabled"`
	Retention       Duration `yaml:"retention"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
}

// IsEnabled returns whether the ledger is enabled (default: true)
func (c *LedgerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	JSON   bool   `yaml:"json"`
	Colors *bool  `yaml:"colors"`
}

// UseColors returns whether console output is colored (default: true)
func (c *LogConfig) UseColors() bool {
	return c.Colors == nil || *c.Colors
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes, applies defaults and validates
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) setDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./lampd.sqlite"
	}

	// Govee defaults
	if cfg.Govee.BaseURL == "" {
		cfg.Govee.BaseURL = "https://developer-api.govee.com"
	}
	if cfg.Govee.Timeout == 0 {
		cfg.Govee.Timeout = Duration(10 * time.Second)
	}
	if cfg.Govee.ControlRPM == 0 {
		cfg.Govee.ControlRPM = 10
	}
	if cfg.Govee.StateRPS == 0 {
		cfg.Govee.StateRPS = 0.1
	}

	// Dispatch defaults
	if cfg.Dispatch.Interval == 0 {
		cfg.Dispatch.Interval = Duration(6 * time.Second)
	}
	if cfg.Dispatch.AvgApplyDuration == 0 {
		cfg.Dispatch.AvgApplyDuration = Duration(500 * time.Millisecond)
	}
	if cfg.Dispatch.MailboxSize == 0 {
		cfg.Dispatch.MailboxSize = 256
	}

	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = "Europe/Berlin"
	}

	// Sunrise defaults - warm orange fading toward white
	if cfg.Sunrise.Hue == 0 {
		cfg.Sunrise.Hue = 25
	}
	if cfg.Sunrise.SaturationStart == 0 {
		cfg.Sunrise.SaturationStart = 0.8
	}
	if cfg.Sunrise.SaturationStop == 0 {
		cfg.Sunrise.SaturationStop = 0.55
	}
	if cfg.Sunrise.Value == 0 {
		cfg.Sunrise.Value = 1.0
	}
	if cfg.Sunrise.BrightnessStart == 0 {
		cfg.Sunrise.BrightnessStart = 1
	}
	if cfg.Sunrise.BrightnessStop == 0 {
		cfg.Sunrise.BrightnessStop = 100
	}

	// Lamp defaults
	if cfg.Lamp.DayBrightness == 0 {
		cfg.Lamp.DayBrightness = 15
	}
	if cfg.Lamp.NightBrightness == 0 {
		cfg.Lamp.NightBrightness = 1
	}
	if cfg.Lamp.NightlampColor == [3]int{} {
		cfg.Lamp.NightlampColor = [3]int{255, 181, 128}
	}

	// Storage defaults
	if cfg.Storage.Timers == "" {
		cfg.Storage.Timers = "sqlite"
	}
	if cfg.Storage.BoltPath == "" {
		cfg.Storage.BoltPath = "./lampd-timers.db"
	}

	// HTTP defaults
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "127.0.0.1"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 9000
	}

	// MQTT defaults
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "lampd"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "lampd"
	}

	// Ledger defaults
	if cfg.Ledger.Retention == 0 {
		cfg.Ledger.Retention = Duration(30 * 24 * time.Hour)
	}
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// Validate checks values that have no sensible fallback
func (cfg *Config) Validate() error {
	if !cfg.Govee.Debug && (cfg.Govee.APIKey == "" || cfg.Govee.Device == "" || cfg.Govee.Model == "") {
		return fmt.Errorf("govee.api_key, govee.device and govee.model are required unless govee.debug is set")
	}
	if cfg.Dispatch.Interval.Duration() < 0 || cfg.Dispatch.AvgApplyDuration.Duration() < 0 {
		return fmt.Errorf("dispatch durations must not be negative")
	}
	if cycle := cfg.Dispatch.Interval.Duration() + cfg.Dispatch.AvgApplyDuration.Duration(); cycle < time.Millisecond {
		return fmt.Errorf("dispatch.interval + dispatch.avg_apply_duration must be at least 1ms, was %v", cycle)
	}
	if cfg.Govee.Timeout.Duration() <= 0 {
		return fmt.Errorf("govee.timeout must be positive")
	}
	if cfg.Ledger.IsEnabled() {
		if cfg.Ledger.Retention.Duration() <= 0 {
			return fmt.Errorf("ledger.retention must be positive")
		}
		if cfg.Ledger.CleanupInterval.Duration() <= 0 {
			return fmt.Errorf("ledger.cleanup_interval must be positive")
		}
	}
	if cfg.ShutdownTimeout.Duration() <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	for name, b := range map[string]int{
		"lamp.day_brightness":      cfg.Lamp.DayBrightness,
		"lamp.night_brightness":    cfg.Lamp.NightBrightness,
		"sunrise.brightness_start": cfg.Sunrise.BrightnessStart,
		"sunrise.brightness_stop":  cfg.Sunrise.BrightnessStop,
	} {
		if b < 1 || b > 100 {
			return fmt.Errorf("%s has to be 1-100, was %d", name, b)
		}
	}
	for _, c := range cfg.Lamp.NightlampColor {
		if c < 0 || c > 255 {
			return fmt.Errorf("lamp.nightlamp_color components have to be 0-255, got %v", cfg.Lamp.NightlampColor)
		}
	}
	switch cfg.Storage.Timers {
	case "sqlite", "bolt":
	default:
		return fmt.Errorf("storage.timers must be sqlite or bolt, got %q", cfg.Storage.Timers)
	}
	if cfg.MQTT.Enabled && cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
