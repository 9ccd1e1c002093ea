package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/karalabe/hid"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/protractor/adapter"
	"github.com/mklimuk/protractor/cmd/protractor/console"
)

var usbCmd = cli.Command{
	Name: "usb",
	Subcommands: cli.Commands{
		&usbLsCmd,
		&usbDetectCmd,
	},
}

var usbLsCmd = cli.Command{
	Name:  "ls",
	Usage: "list usb hid devices",
	Action: func(c *cli.Context) error {
		w := tabwriter.NewWriter(console.Output(), 24, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "PATH\tSERIAL\tVENDOR\tPRODUCT ID\tMANUFACTURER\tPRODUCT\n")
		for _, dev := range hid.Enumerate(0, 0) {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%#x\t%#x\t%s\t%s\n",
				dev.Path, dev.Serial, dev.VendorID, dev.ProductID, dev.Manufacturer, dev.Product)
		}
		return w.Flush()
	},
}

var usbDetectCmd = cli.Command{
	Name:  "detect",
	Usage: "list connected i2c bridges",
	Action: func(c *cli.Context) error {
		bridges := adapter.Detect()
		if len(bridges) == 0 {
			console.PInfof(console.PictoStop, "no MCP2221 bridge found")
			return nil
		}
		w := tabwriter.NewWriter(console.Output(), 8, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "INDEX\tPATH\tSERIAL\tDEVICE\n")
		for i, dev := range bridges {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\tMCP2221\n", i, dev.Path, dev.Serial)
		}
		return w.Flush()
	},
}
