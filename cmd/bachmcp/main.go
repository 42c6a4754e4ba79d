package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

const appName = "bachmcp"

var version = "0.0.0"

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      appName,
		Usage:     "Bridge an MCP agent to a Max/MSP notation patch over TCP",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to an extra configuration file, applied after the user and project files",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override log.level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			serveCmd(),
			listenCmd(),
			sendCmd(),
			queryCmd(),
			callCmd(),
		},
	}
}
