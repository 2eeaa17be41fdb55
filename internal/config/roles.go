package config

import (
	"fmt"
	"time"

	"github.com/oshokin/building-safety/internal/domain/door"
	"github.com/oshokin/building-safety/internal/protocol"
)

// Defaults applied by Validate.
const (
	DefaultMinDetections       = 3
	DefaultDetectionPeriod     = 5 * time.Second
	DefaultDetectionCapacity   = 50
	DefaultRegistryCapacity    = 100
	DefaultPathCapacity        = protocol.DefaultPathCapacity
	DefaultMaxConditionWait    = time.Second
	DefaultMaxUpdateWait       = time.Second
	DefaultInboxCapacity       = 64
	DefaultResendDelay         = time.Second
	DefaultDoorOpenDuration    = 2 * time.Second
	DefaultDatagramResendDelay = 500 * time.Millisecond
	DefaultEventsName          = "building"
)

// Door configures a door controller.
type Door struct {
	Common `yaml:",inline"`

	// ID identifies the door to the Overseer.
	ID int `yaml:"id"`
	// ListenAddress is the IPv4 TCP address accepting commands.
	ListenAddress string `yaml:"listen_addr"`
	// Mode is FAIL_SAFE or FAIL_SECURE.
	Mode door.Mode `yaml:"mode"`
	// ReadTimeout bounds reading a command from an accepted connection. Zero waits forever.
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty"`
	// ActuatorDelay, when set, completes transitions in-process after the delay.
	ActuatorDelay time.Duration `yaml:"actuator_delay,omitempty"`
}

// Validate fills defaults and checks the settings.
func (c *Door) Validate() error {
	if err := c.Common.validate(true); err != nil {
		return err
	}

	if c.ID < 0 {
		return fmt.Errorf("id %d: %w", c.ID, ErrInvalidValue)
	}

	if err := validateEndpoint("listen_addr", c.ListenAddress); err != nil {
		return err
	}

	mode, err := door.ParseMode(string(c.Mode))
	if err != nil {
		return fmt.Errorf("invalid mode: %w", err)
	}

	c.Mode = mode

	if c.ReadTimeout < 0 || c.ActuatorDelay < 0 {
		return fmt.Errorf("negative duration: %w", ErrInvalidValue)
	}

	return nil
}

// CardReader configures a card reader.
type CardReader struct {
	Common `yaml:",inline"`

	// ID identifies the reader to the Overseer.
	ID int `yaml:"id"`
}

// Validate fills defaults and checks the settings.
func (c *CardReader) Validate() error {
	if err := c.Common.validate(true); err != nil {
		return err
	}

	if c.ID < 0 {
		return fmt.Errorf("id %d: %w", c.ID, ErrInvalidValue)
	}

	return nil
}

// FireAlarm configures the fire alarm unit.
type FireAlarm struct {
	Common `yaml:",inline"`

	// ListenAddress is the IPv4 UDP address receiving datagrams.
	ListenAddress string `yaml:"listen_addr"`
	// Threshold is the temperature at or above which a reading counts as a detection.
	Threshold float32 `yaml:"temperature_threshold"`
	// MinDetections within DetectionPeriod trigger the alarm.
	MinDetections int `yaml:"min_detections,omitempty"`
	// DetectionPeriod is the trailing debounce window.
	DetectionPeriod time.Duration `yaml:"detection_period,omitempty"`
	// DetectionCapacity bounds the detection window.
	DetectionCapacity int `yaml:"detection_capacity,omitempty"`
	// RegistryCapacity bounds the door registry.
	RegistryCapacity int `yaml:"registry_capacity,omitempty"`
}

// Validate fills defaults and checks the settings.
func (c *FireAlarm) Validate() error {
	if err := c.Common.validate(true); err != nil {
		return err
	}

	if err := validateEndpoint("listen_addr", c.ListenAddress); err != nil {
		return err
	}

	defaultInt(&c.MinDetections, DefaultMinDetections)
	defaultDuration(&c.DetectionPeriod, DefaultDetectionPeriod)
	defaultInt(&c.DetectionCapacity, DefaultDetectionCapacity)
	defaultInt(&c.RegistryCapacity, DefaultRegistryCapacity)

	if c.MinDetections > c.DetectionCapacity {
		return fmt.Errorf("min_detections %d above detection_capacity %d: %w",
			c.MinDetections, c.DetectionCapacity, ErrInvalidValue)
	}

	return nil
}

// TempSensor configures a temperature sensor gossip node.
type TempSensor struct {
	Common `yaml:",inline"`

	// ID is stamped as the origin of readings this sensor originates.
	ID uint16 `yaml:"id"`
	// ListenAddress is the sensor's own IPv4 UDP endpoint.
	ListenAddress string `yaml:"listen_addr"`
	// Receivers are the statically configured gossip peers.
	Receivers []string `yaml:"receivers"`
	// InitialTemperature seeds the cell.
	InitialTemperature float32 `yaml:"initial_temperature,omitempty"`
	// PathCapacity bounds the hop list carried by each reading.
	PathCapacity int `yaml:"path_capacity,omitempty"`
	// MaxConditionWait bounds a single wait for a temperature change.
	MaxConditionWait time.Duration `yaml:"max_condition_wait,omitempty"`
	// MaxUpdateWait is the keepalive interval.
	MaxUpdateWait time.Duration `yaml:"max_update_wait,omitempty"`
	// InboxCapacity bounds datagrams buffered between reads and processing.
	InboxCapacity int `yaml:"inbox_capacity,omitempty"`
}

// Validate fills defaults and checks the settings.
func (c *TempSensor) Validate() error {
	if err := c.Common.validate(false); err != nil {
		return err
	}

	if err := validateEndpoint("listen_addr", c.ListenAddress); err != nil {
		return err
	}

	for i, r := range c.Receivers {
		if err := validateEndpoint(fmt.Sprintf("receivers[%d]", i), r); err != nil {
			return err
		}
	}

	defaultInt(&c.PathCapacity, DefaultPathCapacity)
	defaultDuration(&c.MaxConditionWait, DefaultMaxConditionWait)
	defaultDuration(&c.MaxUpdateWait, DefaultMaxUpdateWait)
	defaultInt(&c.InboxCapacity, DefaultInboxCapacity)

	if c.PathCapacity > protocol.MaxPathCapacity {
		return fmt.Errorf("path_capacity %d above %d: %w", c.PathCapacity, protocol.MaxPathCapacity, ErrInvalidValue)
	}

	return nil
}

// CallPoint configures a manual call point.
type CallPoint struct {
	Common `yaml:",inline"`

	// FireAlarmAddress is the fire alarm unit's UDP endpoint.
	FireAlarmAddress string `yaml:"fire_alarm_addr"`
	// ResendDelay spaces FIRE datagrams while the call point is active.
	ResendDelay time.Duration `yaml:"resend_delay,omitempty"`
}

// Validate fills defaults and checks the settings.
func (c *CallPoint) Validate() error {
	if err := c.Common.validate(false); err != nil {
		return err
	}

	if err := validateEndpoint("fire_alarm_addr", c.FireAlarmAddress); err != nil {
		return err
	}

	defaultDuration(&c.ResendDelay, DefaultResendDelay)

	return nil
}

// Events configures where the Overseer publishes events.
type Events struct {
	// RedisAddress enables Redis pub/sub publishing when set.
	RedisAddress string `yaml:"redis_addr,omitempty"`
	// Name is the building name used in the channel key.
	Name string `yaml:"name,omitempty"`
}

// Overseer configures the central authority.
type Overseer struct {
	Common `yaml:",inline"`

	// ListenAddress is the TCP address devices connect to.
	ListenAddress string `yaml:"listen_addr"`
	// PolicyFile is the YAML authorization store.
	PolicyFile string `yaml:"policy_file"`
	// DoorOpenDuration is how long an authorised door stays open.
	DoorOpenDuration time.Duration `yaml:"door_open_duration,omitempty"`
	// DatagramResendDelay spaces DOOR registrations until DREG arrives.
	DatagramResendDelay time.Duration `yaml:"datagram_resend_delay,omitempty"`
	// Events configures event publishing.
	Events Events `yaml:"events,omitempty"`
}

// Validate fills defaults and checks the settings.
func (c *Overseer) Validate() error {
	if err := c.Common.validate(false); err != nil {
		return err
	}

	if c.ListenAddress == "" {
		return fmt.Errorf("listen_addr: %w", ErrAddressRequired)
	}

	if c.PolicyFile == "" {
		return fmt.Errorf("policy_file: %w", ErrConfigIsNotSet)
	}

	defaultDuration(&c.DoorOpenDuration, DefaultDoorOpenDuration)
	defaultDuration(&c.DatagramResendDelay, DefaultDatagramResendDelay)

	if c.Events.Name == "" {
		c.Events.Name = DefaultEventsName
	}

	return nil
}
