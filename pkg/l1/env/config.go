// Package env loads the configuration shared by the commands.
package env

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/robotalks/lora.go/pkg/l0/comm"
	"github.com/robotalks/lora.go/pkg/l0/port"
)

// Duration is a time.Duration which can be decoded from "3s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return
}

// Config provides the options to open the link and the bridge.
type Config struct {
	// Device is a serial device path or a ws:// URL.
	Device   string   `toml:"device"`
	BaudRate int      `toml:"baud_rate"`
	Origin   string   `toml:"origin"`
	Layout   string   `toml:"layout"`
	Timeout  Duration `toml:"timeout"`
	// DiscardPartial drops incomplete frames instead of waiting for
	// the rest in the next poll.
	DiscardPartial bool `toml:"discard_partial"`

	// MQTTURL specifies the broker, e.g. mqtt://host:1883/lora/
	MQTTURL      string   `toml:"mqtt_url"`
	GatewayID    string   `toml:"gateway_id"`
	PollInterval Duration `toml:"poll_interval"`
}

// Layout names.
const (
	LayoutRich    = "rich"
	LayoutMinimal = "minimal"
)

// Default returns the builtin defaults.
func Default() *Config {
	return &Config{
		BaudRate:     port.DefaultBaudRate,
		Layout:       LayoutRich,
		Timeout:      Duration{comm.DefaultTimeout},
		MQTTURL:      "mqtt://localhost:1883/lora/",
		PollInterval: Duration{50 * time.Millisecond},
	}
}

// FrameLayout returns the codec layout.
func (c *Config) FrameLayout() (comm.Layout, error) {
	switch c.Layout {
	case "", LayoutRich:
		return comm.RichLayout, nil
	case LayoutMinimal:
		return comm.MinimalLayout, nil
	default:
		return comm.Layout{}, fmt.Errorf("unknown layout %q", c.Layout)
	}
}

// Gateway returns GatewayID, or the machine ID if not configured.
func (c *Config) Gateway() string {
	if c.GatewayID != "" {
		return c.GatewayID
	}
	return MachineID()
}

// PortConfig returns the config to open the device.
func (c *Config) PortConfig() *port.Config {
	return &port.Config{Device: c.Device, BaudRate: c.BaudRate, Origin: c.Origin}
}

// LoadFile decodes a TOML file over the current values.
func (c *Config) LoadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load %s: unknown keys %v", path, undecoded)
	}
	return nil
}

// Loader resolves Config from defaults, a TOML file, environment
// variables and flags, the latter taking precedence.
type Loader struct {
	File string

	flagSet *flag.FlagSet
	flags   Config
}

// NewLoader registers the flags in fs.
func NewLoader(fs *flag.FlagSet) *Loader {
	l := &Loader{flagSet: fs}
	fs.StringVar(&l.File, "config", "", "TOML config file ($LORA_CONFIG).")
	fs.StringVar(&l.flags.Device, "device", "", "Serial device or ws:// URL of the LoRa module ($LORA_DEVICE).")
	fs.IntVar(&l.flags.BaudRate, "baud", 0, "Serial baud rate ($LORA_BAUD).")
	fs.StringVar(&l.flags.Layout, "layout", "", "Frame layout: rich or minimal ($LORA_LAYOUT).")
	fs.DurationVar(&l.flags.Timeout.Duration, "timeout", 0, "Reply timeout ($LORA_TIMEOUT).")
	fs.BoolVar(&l.flags.DiscardPartial, "discard-partial", false, "Discard incomplete frames on each poll.")
	fs.StringVar(&l.flags.MQTTURL, "mqtt", "", "MQTT broker URL ($LORA_MQTT_URL).")
	fs.StringVar(&l.flags.GatewayID, "gateway-id", "", "Gateway ID, machine ID by default ($LORA_GATEWAY_ID).")
	fs.DurationVar(&l.flags.PollInterval.Duration, "poll-interval", 0, "Receive poll interval ($LORA_POLL_INTERVAL).")
	return l
}

// Load resolves the Config. It must be called after flags are parsed.
func (l *Loader) Load(getenv func(string) string) (*Config, error) {
	c := Default()
	file := l.File
	if file == "" {
		file = getenv("LORA_CONFIG")
	}
	if file != "" {
		if err := c.LoadFile(file); err != nil {
			return nil, err
		}
	}
	if err := c.applyEnv(getenv); err != nil {
		return nil, err
	}
	l.flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			c.Device = l.flags.Device
		case "baud":
			c.BaudRate = l.flags.BaudRate
		case "layout":
			c.Layout = l.flags.Layout
		case "timeout":
			c.Timeout = l.flags.Timeout
		case "discard-partial":
			c.DiscardPartial = l.flags.DiscardPartial
		case "mqtt":
			c.MQTTURL = l.flags.MQTTURL
		case "gateway-id":
			c.GatewayID = l.flags.GatewayID
		case "poll-interval":
			c.PollInterval = l.flags.PollInterval
		}
	})
	if _, err := c.FrameLayout(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if val := getenv("LORA_DEVICE"); val != "" {
		c.Device = val
	}
	if val := getenv("LORA_BAUD"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid LORA_BAUD: %w", err)
		}
		c.BaudRate = n
	}
	if val := getenv("LORA_LAYOUT"); val != "" {
		c.Layout = val
	}
	if val := getenv("LORA_TIMEOUT"); val != "" {
		if err := c.Timeout.UnmarshalText([]byte(val)); err != nil {
			return fmt.Errorf("invalid LORA_TIMEOUT: %w", err)
		}
	}
	if val := getenv("LORA_MQTT_URL"); val != "" {
		c.MQTTURL = val
	}
	if val := getenv("LORA_GATEWAY_ID"); val != "" {
		c.GatewayID = val
	}
	if val := getenv("LORA_POLL_INTERVAL"); val != "" {
		if err := c.PollInterval.UnmarshalText([]byte(val)); err != nil {
			return fmt.Errorf("invalid LORA_POLL_INTERVAL: %w", err)
		}
	}
	return nil
}

var defaultLoader *Loader

// SetupFlags sets up command line flags.
func SetupFlags() {
	defaultLoader = NewLoader(flag.CommandLine)
}

// Load resolves the Config using command line flags and the process
// environment.
func Load() (*Config, error) {
	if defaultLoader == nil {
		return nil, fmt.Errorf("env.SetupFlags not called")
	}
	return defaultLoader.Load(os.Getenv)
}
