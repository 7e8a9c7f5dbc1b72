// Package config provides the loader settings from a TOML file, environment
// and command line flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/robotalks/cometload/pkg/link"
	"github.com/robotalks/cometload/pkg/loader"
)

// Config holds the link and protocol settings.
type Config struct {
	// Port is the link URL or serial device path.
	Port string `toml:"port"`
	// Baud is the serial speed.
	Baud int `toml:"baud"`
	// ByteTimeout is how long to wait for a single byte.
	ByteTimeout time.Duration `toml:"byte_timeout"`
	// RelayPoll is how often the relay checks for Ctrl-C.
	RelayPoll time.Duration `toml:"relay_poll"`
	// Retries are the timeout budgets per protocol step.
	Retries loader.Retries `toml:"retries"`
}

// Environment variables.
const (
	EnvConfig = "COMET_CONFIG"
	EnvPort   = "COMET_PORT"
	EnvBaud   = "COMET_BAUD"
)

var (
	defaultConfig = Config{
		Port:        "/dev/ttyUSB0",
		Baud:        link.DefaultBaud,
		ByteTimeout: loader.DefaultByteTimeout,
		RelayPoll:   loader.DefaultRelayPoll,
		Retries:     loader.DefaultRetries,
	}

	configFile  string
	flagPort    string
	flagBaud    int
	flagTimeout time.Duration
)

func init() {
	configFile = os.Getenv(EnvConfig)
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&configFile, "config", configFile, "TOML config file.")
	flag.StringVar(&flagPort, "port", "", "Link URL or serial device (default from config, "+EnvPort+" or "+defaultConfig.Port+").")
	flag.IntVar(&flagBaud, "baud", 0, "Serial baud rate.")
	flag.DurationVar(&flagTimeout, "timeout", 0, "Read timeout per byte.")
}

// Default returns a copy of the built-in defaults.
func Default() Config {
	return defaultConfig
}

// Load builds the effective config: defaults, then the config file, then
// environment, then flags.
func Load() (*Config, error) {
	conf := defaultConfig
	if configFile != "" {
		if err := conf.LoadFile(configFile); err != nil {
			return nil, err
		}
	}
	if err := conf.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if flagPort != "" {
		conf.Port = flagPort
	}
	if flagBaud > 0 {
		conf.Baud = flagBaud
	}
	if flagTimeout > 0 {
		conf.ByteTimeout = flagTimeout
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// LoadFile overlays settings present in a TOML file.
func (c *Config) LoadFile(path string) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if val := getenv(EnvPort); val != "" {
		c.Port = val
	}
	if val := getenv(EnvBaud); val != "" {
		baud, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s %q", EnvBaud, val)
		}
		c.Baud = baud
	}
	return nil
}

// Validate checks the settings are usable.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port must be specified")
	}
	if c.Baud <= 0 {
		return fmt.Errorf("invalid baud %d", c.Baud)
	}
	if c.ByteTimeout <= 0 {
		return fmt.Errorf("byte_timeout must be positive")
	}
	if c.RelayPoll <= 0 {
		return fmt.Errorf("relay_poll must be positive")
	}
	budgets := []struct {
		name  string
		value int
	}{
		{"handshake", c.Retries.Handshake},
		{"transfer", c.Retries.Transfer},
		{"receive", c.Retries.Receive},
		{"load", c.Retries.Load},
		{"start", c.Retries.Start},
	}
	for _, b := range budgets {
		if b.value <= 0 {
			return fmt.Errorf("retries.%s must be positive", b.name)
		}
	}
	return nil
}

// Open opens the configured link.
func (c *Config) Open() (loader.Port, error) {
	return link.Open(c.Port, link.Options{Baud: c.Baud, Timeout: c.ByteTimeout})
}

// NewClient creates a loader client on port with the configured timeouts.
func (c *Config) NewClient(port loader.Port, progress loader.Progress) *loader.Client {
	client := loader.NewClient(port)
	client.Timeout = c.ByteTimeout
	client.Retries = c.Retries
	client.Progress = progress
	return client
}
