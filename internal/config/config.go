// Package config holds the serve configuration: how to launch the server
// process, which receivers to manage, and the ambient subsystem settings.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	api "github.com/hsharrison/govrpn/internal/api/http"
	"github.com/hsharrison/govrpn/internal/store/sqlite"
	"github.com/hsharrison/govrpn/pkg/server"
	"github.com/hsharrison/govrpn/pkg/vrpn"
)

type Config struct {
	Server    *ServerConfig     `validate:"required"`
	Receivers []*ReceiverConfig `validate:"dive"`
	API       *api.Config
	Store     *sqlite.Config
	Metrics   *MetricsConfig
	Log       *LogConfig
}

type ServerConfig struct {
	Exe      []string
	Args     []string
	Sentinel string
	Timeout  time.Duration
	Sleep    time.Duration `validate:"gte=0"`
	Host     string
	Poll     time.Duration `validate:"gt=0"`

	// Console client used to attach receivers.
	ClientExe    []string `mapstructure:"clientExe"`
	ClientBuffer int      `mapstructure:"clientBuffer"`
}

// Options translates the configuration into local server options.
func (c *ServerConfig) Options() server.LocalOptions {
	return server.LocalOptions{
		Options: server.Options{
			Exe:      c.Exe,
			Args:     c.Args,
			Sentinel: c.Sentinel,
			Timeout:  c.Timeout,
			Sleep:    c.Sleep,
		},
		Host:   c.Host,
		Poll:   c.Poll,
		Dialer: vrpn.PrintDevicesDialer(c.ClientExe, c.ClientBuffer),
	}
}

type ReceiverConfig struct {
	Type         string `validate:"required,oneof=test-tracker test-button test-dial liberty-latus custom"`
	Sensors      int    `validate:"gte=0"`
	Rate         float64
	SpinRate     float64  `mapstructure:"spinRate"`
	DeviceType   string   `mapstructure:"deviceType" validate:"required_if=Type custom"`
	Class        string   `validate:"required_if=Type custom"`
	Args         []string
	ExtraLines   []string `mapstructure:"extraLines"`
	Continuation bool
}

// Receiver builds the receiver this entry describes.
func (c *ReceiverConfig) Receiver() (*vrpn.Receiver, error) {
	switch c.Type {
	case "test-tracker":
		return vrpn.NewTestTracker(c.Sensors, c.Rate), nil
	case "test-button":
		return vrpn.NewTestButton(c.Sensors, c.Rate), nil
	case "test-dial":
		return vrpn.NewTestDial(c.Sensors, c.SpinRate, c.Rate), nil
	case "liberty-latus":
		return vrpn.NewPolhemusLibertyLatus(c.Sensors, c.ExtraLines...), nil
	case "custom":
		class, err := vrpn.ParseClass(c.Class)
		if err != nil {
			return nil, err
		}
		return vrpn.NewReceiver(vrpn.Device{
			Type:         c.DeviceType,
			Class:        class,
			Sensors:      c.Sensors,
			Args:         c.Args,
			ExtraLines:   c.ExtraLines,
			Continuation: c.Continuation,
		}), nil
	default:
		return nil, fmt.Errorf("unrecognized receiver type: %s", c.Type)
	}
}

// BuildReceivers instantiates every configured receiver.
func (c *Config) BuildReceivers() ([]*vrpn.Receiver, error) {
	receivers := make([]*vrpn.Receiver, len(c.Receivers))
	for i, rc := range c.Receivers {
		r, err := rc.Receiver()
		if err != nil {
			return nil, fmt.Errorf("receiver %d: %w", i, err)
		}
		receivers[i] = r
	}

	return receivers, nil
}

type MetricsConfig struct {
	Port int `validate:"gte=0,lte=65535"`
}

type LogConfig struct {
	Level string
}

func Default() *Config {
	return &Config{
		Server: &ServerConfig{
			Host: "localhost",
			Poll: time.Millisecond,
		},
		API: &api.Config{
			Addr:    "0.0.0.0:8120",
			Timeout: 10 * time.Second,
		},
		Store: &sqlite.Config{
			Path:          "govrpn.db",
			BatchSize:     100,
			FlushInterval: time.Second,
		},
		Metrics: &MetricsConfig{
			Port: 9090,
		},
		Log: &LogConfig{
			Level: "info",
		},
	}
}

// Load decodes the configuration from vip over the defaults and validates
// it.
func Load(vip *viper.Viper) (*Config, error) {
	cfg := Default()

	hooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)

	if err := vip.Unmarshal(cfg, viper.DecodeHook(hooks)); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
