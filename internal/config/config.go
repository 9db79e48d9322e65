package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full daemon configuration, loaded once at startup.
type Config struct {
	Serial  SerialConfig  `mapstructure:"serial"`
	CAT     CATConfig     `mapstructure:"cat"`
	TCP     TCPConfig     `mapstructure:"tcp"`
	GPIO    GPIOConfig    `mapstructure:"gpio"`
	DB      DBConfig      `mapstructure:"db"`
	ADIF    ADIFConfig    `mapstructure:"adif"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SerialConfig describes the CAT serial port.
type SerialConfig struct {
	Device string `mapstructure:"device"`
	Baud   int    `mapstructure:"baud"`
}

// CATConfig tunes the protocol endpoint itself.
type CATConfig struct {
	// Address is this endpoint's CI-V bus address. YAML accepts hex
	// (0xA4) as well as decimal.
	Address int `mapstructure:"address"`
	// PollIntervalMS is the idle sleep between byte reads.
	PollIntervalMS int `mapstructure:"poll_interval_ms"`
}

// TCPConfig enables the optional CAT-over-TCP listener.
type TCPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// GPIOConfig points the shared USB lines at the CAT UART. An empty path
// disables routing (off-device runs).
type GPIOConfig struct {
	RoutePath  string `mapstructure:"route_path"`
	RouteValue string `mapstructure:"route_value"`
}

// DBConfig locates the sqlite database. An empty path resolves to the
// default data directory.
type DBConfig struct {
	Path string `mapstructure:"path"`
}

// ADIFConfig locates the contact-log import spool. Empty disables the
// sweep.
type ADIFConfig struct {
	SpoolDir string `mapstructure:"spool_dir"`
}

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	LogToFile bool   `mapstructure:"log_to_file"`
}

// LocalAddress returns the configured CI-V address as a wire byte.
func (c *Config) LocalAddress() byte {
	return byte(c.CAT.Address)
}

// PollInterval returns the byte-poll idle sleep as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.CAT.PollIntervalMS) * time.Millisecond
}

// Load reads configuration from an optional file and CATD_* environment
// variables, falling back to defaults for everything else.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("catd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/catd")
	}

	v.SetEnvPrefix("CATD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.device", "/dev/ttyS2")
	v.SetDefault("serial.baud", 19200)

	v.SetDefault("cat.address", 0xA4)
	v.SetDefault("cat.poll_interval_ms", 10)

	v.SetDefault("tcp.enabled", false)
	v.SetDefault("tcp.listen", "0.0.0.0:4532")

	v.SetDefault("gpio.route_path", "")
	v.SetDefault("gpio.route_value", "1")

	v.SetDefault("db.path", "")
	v.SetDefault("adif.spool_dir", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_to_file", false)
}

func validate(cfg *Config) error {
	if cfg.Serial.Device == "" {
		return fmt.Errorf("serial.device must not be empty")
	}
	if cfg.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", cfg.Serial.Baud)
	}
	if cfg.CAT.Address < 0 || cfg.CAT.Address > 0xFF {
		return fmt.Errorf("cat.address must be a single byte, got %d", cfg.CAT.Address)
	}
	if cfg.CAT.PollIntervalMS <= 0 {
		return fmt.Errorf("cat.poll_interval_ms must be positive, got %d", cfg.CAT.PollIntervalMS)
	}
	if cfg.TCP.Enabled && cfg.TCP.Listen == "" {
		return fmt.Errorf("tcp.listen must be set when tcp.enabled is true")
	}
	return nil
}
