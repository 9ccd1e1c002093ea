// Package config holds the connection and sensor settings of the protractor CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/protractor/proximity"
	"github.com/mklimuk/protractor/serial"
)

const (
	AdapterSerial  = "serial"
	AdapterGeneric = "generic"
	AdapterNanoPi  = "nanopi"
	AdapterMCP2221 = "mcp2221"
	AdapterMock    = "mock"
)

type Config struct {
	Adapter string       `yaml:"adapter"`
	Serial  SerialConfig `yaml:"serial"`
	I2C     I2CConfig    `yaml:"i2c"`
	Sensor  SensorConfig `yaml:"sensor"`
}

type SerialConfig struct {
	Port               string `yaml:"port"`
	serial.PortOptions `yaml:",inline"`
}

type I2CConfig struct {
	// Device is the host bus name for the generic adapter, e.g. /dev/i2c-1.
	Device string `yaml:"device"`
	// Bus is the bus number for the nanopi adapter, -1 for the board default.
	Bus      int `yaml:"bus"`
	Address  int `yaml:"address"`
	SpeedKHz int `yaml:"speed_khz"`
	// BridgeIndex picks one of several MCP2221 bridges in enumeration order, -1 when only one is connected.
	BridgeIndex int `yaml:"bridge_index"`
}

type SensorConfig struct {
	Objects int           `yaml:"objects"`
	Timeout time.Duration `yaml:"timeout"`
	Strict  bool          `yaml:"strict"`
}

func Default() Config {
	return Config{
		Adapter: AdapterSerial,
		Serial: SerialConfig{
			Port:        "/dev/ttyUSB0",
			PortOptions: serial.PortOptions{BaudRate: proximity.DefaultBaudRate},
		},
		I2C: I2CConfig{
			Device:      "/dev/i2c-1",
			Bus:         -1,
			Address:     proximity.DefaultAddress,
			SpeedKHz:    100,
			BridgeIndex: -1,
		},
		Sensor: SensorConfig{
			Objects: proximity.DefaultMaxObjects,
			Timeout: 20 * time.Millisecond,
		},
	}
}

// Load reads the YAML file at path on top of the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("could not read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	err = dec.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("could not parse config file %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Write stores cfg as YAML at path.
func Write(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("could not encode config: %w", err)
	}
	err = os.WriteFile(path, data, 0o644)
	if err != nil {
		return fmt.Errorf("could not write config file: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Adapter {
	case AdapterSerial:
		if c.Serial.Port == "" {
			return fmt.Errorf("serial port is required for the %s adapter", c.Adapter)
		}
		if _, err := c.Serial.Normalize(); err != nil {
			return fmt.Errorf("invalid serial settings: %w", err)
		}
	case AdapterGeneric, AdapterNanoPi, AdapterMCP2221, AdapterMock:
	default:
		return fmt.Errorf("unknown adapter %q", c.Adapter)
	}
	if c.I2C.Address < proximity.MinAddress || c.I2C.Address > proximity.MaxAddress {
		return fmt.Errorf("i2c address %#x out of range", c.I2C.Address)
	}
	if c.I2C.BridgeIndex < -1 {
		return fmt.Errorf("bridge index must be -1 or a device index, got %d", c.I2C.BridgeIndex)
	}
	if c.Sensor.Objects < 1 || c.Sensor.Objects > proximity.DefaultMaxObjects {
		return fmt.Errorf("sensor objects must be between 1 and %d, got %d", proximity.DefaultMaxObjects, c.Sensor.Objects)
	}
	if c.Sensor.Timeout <= 0 {
		return fmt.Errorf("sensor timeout must be positive")
	}
	return nil
}

// SensorOptions translates the sensor section into driver options.
func (c Config) SensorOptions() []proximity.Option {
	opts := []proximity.Option{
		proximity.WithMaxObjects(c.Sensor.Objects),
		proximity.WithReadTimeout(c.Sensor.Timeout),
	}
	if c.Sensor.Strict {
		opts = append(opts, proximity.WithStrictValidation())
	}
	return opts
}
