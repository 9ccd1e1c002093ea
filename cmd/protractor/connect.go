package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/protractor"
	"github.com/mklimuk/protractor/adapter"
	"github.com/mklimuk/protractor/config"
	"github.com/mklimuk/protractor/i2c"
	"github.com/mklimuk/protractor/proximity"
	"github.com/mklimuk/protractor/serial"
	"github.com/mklimuk/protractor/snsctx"
)

// demoObjects and demoPaths populate the mock adapter.
var (
	demoObjects = []proximity.Target{{Angle: 64, Visibility: 210}, {Angle: 190, Visibility: 120}}
	demoPaths   = []proximity.Target{{Angle: 128, Visibility: 230}, {Angle: 10, Visibility: 60}}
)

func resolveSettings(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("adapter") {
		cfg.Adapter = c.String("adapter")
	}
	if c.IsSet("port") {
		cfg.Serial.Port = c.String("port")
	}
	if c.IsSet("baud") {
		cfg.Serial.BaudRate = c.Int("baud")
	}
	if c.IsSet("device") {
		cfg.I2C.Device = c.String("device")
	}
	if c.IsSet("bridge-index") {
		cfg.I2C.BridgeIndex = c.Int("bridge-index")
	}
	if c.IsSet("address") {
		addr, err := parseAddress(c.String("address"))
		if err != nil {
			return err
		}
		cfg.I2C.Address = addr
	}
	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	settings = cfg
	return nil
}

// parseAddress accepts decimal, 0x hex and 0o octal notation.
func parseAddress(s string) (int, error) {
	addr, err := strconv.ParseInt(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return int(addr), nil
}

func commandContext(c *cli.Context) context.Context {
	ctx := snsctx.SetVerbose(c.Context, c.Bool("verbose"))
	return snsctx.SetLogger(ctx, slog.Default())
}

// connect opens the transport selected by cfg and attaches a sensor to it.
// The returned closer releases the transport.
func connect(ctx context.Context, cfg config.Config) (*proximity.Protractor, func() error, error) {
	opts := append(cfg.SensorOptions(), proximity.WithLogger(snsctx.Logger(ctx)))
	address := byte(cfg.I2C.Address)
	switch cfg.Adapter {
	case config.AdapterSerial:
		port, err := serial.Open(ctx, cfg.Serial.Port, cfg.Serial.PortOptions)
		if err != nil {
			return nil, nil, err
		}
		sensor := proximity.NewProtractor(opts...)
		sensor.BeginSerial(port)
		return sensor, port.Close, nil
	case config.AdapterGeneric:
		bus, err := i2c.NewGenericBus(ctx, cfg.I2C.Device)
		if err != nil {
			return nil, nil, err
		}
		err = bus.SetSpeed(physic.Frequency(cfg.I2C.SpeedKHz) * physic.KiloHertz)
		if err != nil {
			_ = bus.Close()
			return nil, nil, err
		}
		return beginI2C(ctx, bus, address, bus.Close, opts)
	case config.AdapterNanoPi:
		npi := nanopi.NewNeoAdaptor()
		bus := i2c.NewGobotBus(npi, cfg.I2C.Bus)
		closer := func() error {
			_ = bus.Close()
			return npi.Finalize()
		}
		return beginI2C(ctx, bus, address, closer, opts)
	case config.AdapterMCP2221:
		// a full response must fit into one bridge report
		limit := (adapter.MaxReadLength - 1) / 4
		if cfg.Sensor.Objects > limit {
			snsctx.Logger(ctx).Debug("limiting object count to bridge capacity", "objects", limit)
			opts = append(opts, proximity.WithMaxObjects(limit))
		}
		bridge := adapter.NewMCP2221(adapter.WithDeviceIndex(cfg.I2C.BridgeIndex))
		return beginI2C(ctx, bridge, address, func() error { return nil }, opts)
	case config.AdapterMock:
		dev := proximity.NewMockDevice()
		dev.SetScene(demoObjects, demoPaths)
		sensor := proximity.NewProtractor(opts...)
		sensor.BeginSerial(dev)
		return sensor, func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown adapter %q", cfg.Adapter)
}

func beginI2C(ctx context.Context, bus protractor.I2CBus, address byte, closer func() error, opts []proximity.Option) (*proximity.Protractor, func() error, error) {
	sensor := proximity.NewProtractor(opts...)
	err := sensor.BeginI2C(ctx, bus, address)
	if err != nil {
		_ = closer()
		return nil, nil, err
	}
	return sensor, closer, nil
}
