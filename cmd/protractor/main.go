package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/protractor/cmd/protractor/console"
	"github.com/mklimuk/protractor/config"
)

var version string
var commit string
var date string

// settings is resolved from the config file and global flags before any command runs.
var settings = config.Default()

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	err := newApp().Run(args)
	if err != nil {
		var exerr cli.ExitCoder
		if errors.As(err, &exerr) {
			if msg := err.Error(); msg != "" {
				console.Errorf("%s", msg)
			}
			return exerr.ExitCode()
		}
		console.Errorf("%v", err)
		return 1
	}
	return 0
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "protractor"
	app.EnableBashCompletion = true
	app.Version = fmt.Sprintf("%s-%s-%s", version, date, commit)
	app.Usage = "Protractor angle and proximity sensor cli"
	// errors are reported by run instead of exiting from inside the app
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable verbose logging",
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "configuration file",
			Value: "protractor.yaml",
		},
		&cli.StringFlag{
			Name:    "adapter",
			Aliases: []string{"a"},
			Usage:   "serial, generic, nanopi, mcp2221 or mock",
		},
		&cli.StringFlag{
			Name:  "port",
			Usage: "serial port",
		},
		&cli.IntFlag{
			Name:  "baud",
			Usage: "serial baud rate",
		},
		&cli.StringFlag{
			Name:  "device",
			Usage: "i2c bus device for the generic adapter",
		},
		&cli.StringFlag{
			Name:  "address",
			Usage: "i2c address of the sensor, e.g. 0x45",
		},
		&cli.IntFlag{
			Name:  "bridge-index",
			Usage: "MCP2221 bridge to use when more than one is connected",
		},
	}
	app.Before = func(c *cli.Context) error {
		charm := chlog.NewWithOptions(os.Stderr, chlog.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
		})
		charm.SetColorProfile(termenv.TrueColor)
		charm.SetLevel(chlog.InfoLevel)
		if c.Bool("verbose") {
			charm.SetLevel(chlog.DebugLevel)
		}
		slog.SetDefault(slog.New(charm))
		return resolveSettings(c)
	}
	app.Commands = cli.Commands{
		&readCmd,
		&watchCmd,
		&setCmd,
		&serialCmd,
		&usbCmd,
		&mcp2221Cmd,
	}
	return app
}
