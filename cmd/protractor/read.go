package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/protractor/cmd/protractor/console"
	"github.com/mklimuk/protractor/proximity"
)

var readCmd = cli.Command{
	Name:  "read",
	Usage: "read the objects and open paths in front of the sensor",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:    "count",
			Aliases: []string{"n"},
			Usage:   "number of objects and paths to request (default: all)",
		},
		&cli.BoolFlag{
			Name:  "yaml",
			Usage: "print the reading as yaml",
		},
	},
	Action: func(c *cli.Context) error {
		ctx := commandContext(c)
		sensor, closer, err := connect(ctx, settings)
		if err != nil {
			return console.Exit(1, "could not connect to sensor: %s", console.Red(err))
		}
		defer func() { _ = closer() }()

		count := sensor.MaxObjects()
		if c.IsSet("count") {
			count = c.Int("count")
		}
		res, err := sensor.Read(ctx, count)
		if err != nil && !res.OK() {
			return console.Exit(1, "read failed: %s", console.Red(err))
		}
		if err != nil {
			console.Warnf("read interrupted: %s", err)
		}
		if !res.Complete() {
			console.Warnf("partial response: got %d of %d bytes", res.Received, res.Expected)
		}
		reading := sensor.Reading()
		if c.Bool("yaml") {
			return printYAML(reading)
		}
		console.Print(formatReading(reading, sensor.ObjectCount(), sensor.PathCount()))
		return nil
	},
}

var watchCmd = cli.Command{
	Name:  "watch",
	Usage: "continuously print the most visible object and the most open path",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "interval",
			Usage: "time between readings",
			Value: 100 * time.Millisecond,
		},
		&cli.StringFlag{
			Name:  "metrics",
			Usage: "serve prometheus metrics on this address, e.g. :9120",
		},
	},
	Action: func(c *cli.Context) error {
		ctx, stop := signal.NotifyContext(commandContext(c), os.Interrupt)
		defer stop()
		sensor, closer, err := connect(ctx, settings)
		if err != nil {
			return console.Exit(1, "could not connect to sensor: %s", console.Red(err))
		}
		defer func() { _ = closer() }()

		var metrics *watchMetrics
		if addr := c.String("metrics"); addr != "" {
			reg := prometheus.NewRegistry()
			metrics = newWatchMetrics(reg)
			serveMetrics(ctx, addr, reg)
		}
		ticker := time.NewTicker(c.Duration("interval"))
		defer ticker.Stop()
		for {
			res, err := sensor.Read(ctx, 1)
			if metrics != nil && ctx.Err() == nil {
				metrics.observe(sensor, res, err)
			}
			switch {
			case errors.Is(err, proximity.ErrNoResponse):
				console.Warnf("no response")
			case ctx.Err() != nil:
				return nil
			case err != nil:
				return console.Exit(1, "read failed: %s", console.Red(err))
			default:
				console.Print(formatNearest(sensor))
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	},
}

func formatReading(r proximity.Reading, objects, paths int) string {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "%s objects: %s\n", console.PictoObject, console.White(objects))
	for i, d := range r.Objects {
		_, _ = fmt.Fprintf(&b, "  %2d: %s visibility %d\n", i, console.Cyan(fmt.Sprintf("%3d°", d.Angle)), d.Visibility)
	}
	_, _ = fmt.Fprintf(&b, "%s paths: %s\n", console.PictoPath, console.White(paths))
	for i, d := range r.Paths {
		_, _ = fmt.Fprintf(&b, "  %2d: %s visibility %d\n", i, console.Green(fmt.Sprintf("%3d°", d.Angle)), d.Visibility)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func formatNearest(sensor *proximity.Protractor) string {
	object, path := "-", "-"
	if angle := sensor.MostVisibleObjectAngle(); angle >= 0 {
		object = fmt.Sprintf("%3d° (%d)", angle, sensor.MostVisibleObjectVisibility())
	}
	if angle := sensor.MostOpenPathAngle(); angle >= 0 {
		path = fmt.Sprintf("%3d° (%d)", angle, sensor.MostOpenPathVisibility())
	}
	return fmt.Sprintf("%s %s  %s %s", console.PictoObject, console.Cyan(object), console.PictoPath, console.Green(path))
}

func printYAML(v any) error {
	enc := yaml.NewEncoder(console.Output())
	err := enc.Encode(v)
	if err != nil {
		return console.Exit(1, "encoding error: %s", console.Red(err))
	}
	return enc.Close()
}
