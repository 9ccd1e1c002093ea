package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/protractor/cmd/protractor/console"
	"github.com/mklimuk/protractor/config"
	"github.com/mklimuk/protractor/proximity"
)

var persistFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:    "yes",
		Aliases: []string{"y"},
		Usage:   "do not ask for confirmation",
	},
	&cli.BoolFlag{
		Name:  "save",
		Usage: "store the new value in the configuration file",
	},
}

var setCmd = cli.Command{
	Name:  "set",
	Usage: "change sensor settings",
	Subcommands: cli.Commands{
		&setScanIntervalCmd,
		&setAddressCmd,
		&setBaudCmd,
		&setLEDCmd,
	},
}

var setScanIntervalCmd = cli.Command{
	Name:      "scan-interval",
	Usage:     "time between sweeps in milliseconds, 0 scans on request only",
	ArgsUsage: "<ms>",
	Action: func(c *cli.Context) error {
		ms, err := intArg(c)
		if err != nil {
			return err
		}
		return withSensor(c, func(ctx context.Context, sensor *proximity.Protractor) error {
			return sensor.SetScanInterval(ctx, ms)
		})
	},
}

var setAddressCmd = cli.Command{
	Name:      "address",
	Usage:     "change the i2c address the sensor answers on",
	ArgsUsage: "<address>",
	Flags:     persistFlags,
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected exactly one argument")
		}
		addr, err := parseAddress(c.Args().First())
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		ok, err := console.Confirm(fmt.Sprintf("the sensor will only answer on address %#x from now on, continue?", addr), c.Bool("yes"))
		if err != nil || !ok {
			return err
		}
		err = withSensor(c, func(ctx context.Context, sensor *proximity.Protractor) error {
			return sensor.SetDeviceAddress(ctx, addr)
		})
		if err != nil {
			return err
		}
		settings.I2C.Address = addr
		return saveSettings(c)
	},
}

var setBaudCmd = cli.Command{
	Name:      "baud",
	Usage:     "change the serial baud rate of the sensor",
	ArgsUsage: "<rate>",
	Flags:     persistFlags,
	Action: func(c *cli.Context) error {
		rate, err := intArg(c)
		if err != nil {
			return err
		}
		ok, err := console.Confirm(fmt.Sprintf("the sensor will only talk at %d baud from now on, continue?", rate), c.Bool("yes"))
		if err != nil || !ok {
			return err
		}
		err = withSensor(c, func(ctx context.Context, sensor *proximity.Protractor) error {
			return sensor.SetBaudRate(ctx, rate)
		})
		if err != nil {
			return err
		}
		settings.Serial.BaudRate = rate
		return saveSettings(c)
	},
}

var setLEDCmd = cli.Command{
	Name:      "led",
	Usage:     "select what the feedback leds follow",
	ArgsUsage: "<object|path|off>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected exactly one argument")
		}
		mode, err := proximity.ParseIndicatorMode(c.Args().First())
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		return withSensor(c, func(ctx context.Context, sensor *proximity.Protractor) error {
			return sensor.SetIndicatorMode(ctx, mode)
		})
	},
}

func intArg(c *cli.Context) (int, error) {
	if c.NArg() != 1 {
		return 0, console.Exit(1, "expected exactly one argument")
	}
	v, err := strconv.Atoi(c.Args().First())
	if err != nil {
		return 0, console.Exit(1, "invalid number %q", c.Args().First())
	}
	return v, nil
}

func withSensor(c *cli.Context, apply func(ctx context.Context, sensor *proximity.Protractor) error) error {
	ctx := commandContext(c)
	// out of range values must not pass silently on the command line
	cfg := settings
	cfg.Sensor.Strict = true
	sensor, closer, err := connect(ctx, cfg)
	if err != nil {
		return console.Exit(1, "could not connect to sensor: %s", console.Red(err))
	}
	defer func() { _ = closer() }()
	err = apply(ctx, sensor)
	if err != nil {
		return console.Exit(1, "%s", console.Red(err))
	}
	console.PInfof(console.PictoPin, "%s %s", c.Command.Name, console.Green("updated"))
	return nil
}

func saveSettings(c *cli.Context) error {
	if !c.Bool("save") {
		console.Infof("update --%s in your configuration to keep talking to the sensor", c.Command.Name)
		return nil
	}
	err := config.Write(c.String("config"), settings)
	if err != nil {
		return console.Exit(1, "%s", console.Red(err))
	}
	console.Infof("configuration saved to %s", c.String("config"))
	return nil
}
