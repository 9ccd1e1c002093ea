package main

import (
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/protractor/cmd/protractor/console"
	"github.com/mklimuk/protractor/serial"
)

var serialCmd = cli.Command{
	Name: "serial",
	Subcommands: cli.Commands{
		&serialLsCmd,
	},
}

var serialLsCmd = cli.Command{
	Name:  "ls",
	Usage: "list serial ports",
	Action: func(c *cli.Context) error {
		ports, err := serial.List()
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		if len(ports) == 0 {
			console.PInfof(console.PictoStop, "no serial ports found")
			return nil
		}
		for _, port := range ports {
			marker := " "
			if port == settings.Serial.Port {
				marker = "*"
			}
			console.Printf("%s %s\n", marker, port)
		}
		return nil
	},
}
