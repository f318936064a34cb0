// sidecarctl is a thin operator CLI for poking a running (or spawned)
// speech-recognition sidecar: health checks, device listing, model
// initialization and the recording lifecycle.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var (
	socketPath string
	spawnPath  string
	verbose    bool
)

func main() {
	app := cli.NewApp()
	app.Name = "sidecarctl"
	app.Usage = "control a speech-recognition sidecar over JSON-RPC"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "socket, s",
			Usage:       "unix socket the sidecar listens on",
			Value:       defaultSocketPath(),
			Destination: &socketPath,
		},
		cli.StringFlag{
			Name:        "spawn",
			Usage:       "launch this sidecar binary and talk over its stdio instead of a socket",
			Destination: &spawnPath,
		},
		cli.BoolFlag{
			Name:        "verbose, v",
			Usage:       "log wire-level activity",
			Destination: &verbose,
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "ping",
			Usage:  "check that the sidecar answers",
			Action: ping,
		},
		{
			Name:   "status",
			Usage:  "print the sidecar's status payload",
			Action: status,
		},
		{
			Name:   "devices",
			Usage:  "list capture devices",
			Action: devices,
		},
		{
			Name:  "init",
			Usage: "initialize the model (first run may download, be patient)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "model, m",
					Usage: "model identifier to load",
				},
			},
			Action: initialize,
		},
		{
			Name:  "record",
			Usage: "drive the recording lifecycle",
			Subcommands: []cli.Command{
				{Name: "start", Usage: "start capturing", Action: recordStart},
				{Name: "stop", Usage: "stop capturing and transcribe", Action: recordStop},
				{Name: "cancel", Usage: "discard the in-flight capture", Action: recordCancel},
			},
		},
		{
			Name:   "purge",
			Usage:  "purge the model cache",
			Action: purge,
		},
		{
			Name:   "watch",
			Usage:  "stream notifications and state changes until interrupted",
			Action: watch,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "sidecarctl: %s\n", err.Error())
		os.Exit(1)
	}
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}
	return log
}
