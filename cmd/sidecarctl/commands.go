package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/urfave/cli"

	"github.com/murmurapp/sidecar"
	"github.com/murmurapp/sidecar/state"
)

func defaultSocketPath() string {
	return filepath.Join(os.TempDir(), "murmur-sidecar.sock")
}

// connect builds a client from the global flags: spawn wins over socket.
func connect() (*sidecar.Client, func(), error) {
	log := newLogger()
	if spawnPath != "" {
		client, cmd, err := sidecar.StartProcess(spawnPath, nil, sidecar.WithLogger(log))
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			_ = client.Close()
			_ = cmd.Wait()
		}
		return client, cleanup, nil
	}
	client, err := sidecar.Dial("unix", socketPath, sidecar.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// call runs one method and pretty-prints the raw result.
func call(method string, params interface{}) error {
	client, cleanup, err := connect()
	if err != nil {
		return err
	}
	defer cleanup()
	result, err := client.Call(method, params)
	if err != nil {
		return err
	}
	return printResult(result)
}

func printResult(result json.RawMessage) error {
	var buf interface{}
	if err := json.Unmarshal(result, &buf); err != nil {
		fmt.Println(string(result))
		return nil
	}
	pretty, err := json.MarshalIndent(buf, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	return nil
}

func ping(_ *cli.Context) error {
	return call(sidecar.MethodPing, nil)
}

func status(_ *cli.Context) error {
	return call(sidecar.MethodStatus, nil)
}

func devices(_ *cli.Context) error {
	return call(sidecar.MethodListDevices, nil)
}

type initParams struct {
	Model string `json:"model,omitempty"`
}

func initialize(ctx *cli.Context) error {
	client, cleanup, err := connect()
	if err != nil {
		return err
	}
	defer cleanup()

	machine := state.NewMachine(state.WithLogger(newLogger()))
	driver := sidecar.NewDriver(client, machine, newLogger())
	go driver.Run()

	if err := driver.Initialize(&initParams{Model: ctx.String("model")}); err != nil {
		return err
	}
	fmt.Println("model ready")
	return nil
}

func recordStart(_ *cli.Context) error {
	return call(sidecar.MethodStartRecording, nil)
}

func recordStop(_ *cli.Context) error {
	return call(sidecar.MethodStopRecording, nil)
}

func recordCancel(_ *cli.Context) error {
	return call(sidecar.MethodCancelRecording, nil)
}

func purge(_ *cli.Context) error {
	return call(sidecar.MethodPurgeCache, nil)
}

// watch mirrors every notification and lifecycle change to stdout until
// interrupted or the sidecar goes away.
func watch(_ *cli.Context) error {
	client, cleanup, err := connect()
	if err != nil {
		return err
	}
	defer cleanup()

	machine := state.NewMachine(state.WithLogger(newLogger()))
	driver := sidecar.NewDriver(client, machine, newLogger())
	go driver.Run()

	events := machine.Subscribe(16)
	defer events.Cancel()
	notes := client.Notifications(16)
	defer notes.Cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	for {
		select {
		case n, ok := <-notes.C:
			if !ok {
				return fmt.Errorf("sidecar connection lost")
			}
			fmt.Printf("notify %s %s\n", n.Method, string(n.Params))
		case ev := <-events.C:
			fmt.Printf("state #%d %s enabled=%v", ev.Seq, ev.State, ev.Enabled)
			if ev.ErrorDetail != "" {
				fmt.Printf(" detail=%q", ev.ErrorDetail)
			}
			fmt.Println()
		case <-interrupt:
			return nil
		}
	}
}
