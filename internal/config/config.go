package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/building-safety/internal/logger"
	"github.com/oshokin/building-safety/internal/protocol"
)

const (
	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// ErrConfigIsNotSet is returned when a nil configuration is provided.
	ErrConfigIsNotSet = errors.New("configuration is not set")
	// ErrAddressRequired is returned when a mandatory address is missing.
	ErrAddressRequired = errors.New("address must be provided")
	// ErrInvalidValue is returned for out-of-range numeric settings.
	ErrInvalidValue = errors.New("invalid value")
)

// Validator is implemented by every role configuration.
type Validator[T any] interface {
	*T
	// Validate fills defaults and checks the settings.
	Validate() error
}

// Common holds settings shared by every device process.
type Common struct {
	// OverseerAddress is the Overseer's TCP address.
	OverseerAddress string `yaml:"overseer_addr,omitempty"`
	// TwinAddress is where the physical-twin gRPC shim listens. Empty disables it.
	TwinAddress string `yaml:"twin_addr,omitempty"`
	// Timeout bounds dials and single request/response exchanges.
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// LogLevel overrides the process log level when set.
	LogLevel string `yaml:"log_level,omitempty"`
}

// Load reads the YAML file at path into a new T and validates it.
func Load[T any, P Validator[T]](path string) (*T, error) {
	if path == "" {
		return nil, fmt.Errorf("settings path: %w", ErrConfigIsNotSet)
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := new(T)
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := P(cfg).Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save validates cfg and writes it to path.
func Save(path string, cfg interface{ Validate() error }) error {
	if cfg == nil {
		return ErrConfigIsNotSet
	}

	if path == "" {
		return fmt.Errorf("settings path: %w", ErrConfigIsNotSet)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// validate checks the shared block. Devices that announce themselves need
// the Overseer address.
func (c *Common) validate(needOverseer bool) error {
	if c.OverseerAddress == "" && needOverseer {
		return fmt.Errorf("overseer_addr: %w", ErrAddressRequired)
	}

	if c.OverseerAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", c.OverseerAddress); err != nil {
			return fmt.Errorf("invalid overseer_addr: %w", err)
		}
	}

	if c.TwinAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", c.TwinAddress); err != nil {
			return fmt.Errorf("invalid twin_addr: %w", err)
		}
	}

	if c.LogLevel != "" {
		if _, ok := logger.ParseLogLevel(c.LogLevel); !ok {
			return fmt.Errorf("log_level %q: %w", c.LogLevel, ErrInvalidValue)
		}
	}

	// Set default timeout if not specified
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}

	return nil
}

// validateEndpoint checks a mandatory IPv4 addr:port that travels inside
// messages or datagrams.
func validateEndpoint(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s: %w", name, ErrAddressRequired)
	}

	if _, err := protocol.ParseEndpoint(value); err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}

	return nil
}

// defaultDuration sets *d to def when it is not positive.
func defaultDuration(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}

// defaultInt sets *n to def when it is not positive.
func defaultInt(n *int, def int) {
	if *n <= 0 {
		*n = def
	}
}
