/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"golang.zx2c4.com/edgehop/capture"
	"golang.zx2c4.com/edgehop/config"
	"golang.zx2c4.com/edgehop/conn"
	"golang.zx2c4.com/edgehop/daemon"
	"golang.zx2c4.com/edgehop/emulate"
	"golang.zx2c4.com/edgehop/frontend"
	"golang.zx2c4.com/edgehop/ipc"
)

const (
	ExitSetupSuccess       = 0
	ExitConfigError        = 1
	ExitBindError          = 2
	ExitBackendUnavailable = 3
	ExitSignal             = 130
)

const envForeground = "EDGEHOP_PROCESS_FOREGROUND"

func main() {
	configPath := flag.String("config", "", "path to the config file")
	port := flag.Uint("port", 0, "listen port (overrides the config file)")
	backend := flag.String("backend", "", "capture/emulation backend (overrides the config file)")
	daemonize := flag.Bool("daemon", false, "detach from the terminal")
	flag.Parse()

	if *daemonize && os.Getenv(envForeground) != "1" {
		path, err := os.Executable()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(ExitConfigError)
		}
		cmd := exec.Command(path, os.Args[1:]...)
		cmd.Env = append(os.Environ(), envForeground+"=1")
		if err := cmd.Start(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(ExitConfigError)
		}
		os.Exit(ExitSetupSuccess)
	}

	logLevel := daemon.LogLevel(os.Getenv("LOG_LEVEL"))
	logger := daemon.NewLogger(logLevel, "(edgehop) ")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error.Printf("config: %v", err)
		os.Exit(ExitConfigError)
	}
	if *port != 0 {
		cfg.Port = uint16(*port)
	}
	if *backend != "" {
		cfg.Backend = *backend
	}

	captureBackend, err := capture.New(cfg.Backend, logger.Info)
	if err != nil {
		logger.Error.Printf("%v", err)
		var unavailable *capture.ErrUnavailable
		if errors.As(err, &unavailable) {
			os.Exit(ExitBackendUnavailable)
		}
		os.Exit(ExitConfigError)
	}
	emu, err := emulate.New(cfg.Backend, logger.Info)
	if err != nil {
		logger.Error.Printf("%v", err)
		var unavailable *emulate.ErrUnavailable
		if errors.As(err, &unavailable) {
			os.Exit(ExitBackendUnavailable)
		}
		os.Exit(ExitConfigError)
	}

	dev, err := daemon.NewDaemon(logger, conn.NewStdNetBind(), captureBackend, emu, cfg.Port, cfg.Trusted())
	if err != nil {
		logger.Error.Printf("%v", err)
		os.Exit(ExitConfigError)
	}
	for _, client := range cfg.ClientConfigs() {
		if _, err := addClient(dev, client); err != nil {
			logger.Error.Printf("config: %v", err)
			os.Exit(ExitConfigError)
		}
	}

	if err := dev.Up(); err != nil {
		logger.Error.Printf("bind: %v", err)
		os.Exit(ExitBindError)
	}
	logger.Info.Printf("fingerprint: %s", dev.Fingerprint())
	logger.Info.Printf("press Ctrl+Alt+Shift+Super to release the mouse")

	uapi, err := ipc.Listen()
	if err != nil {
		logger.Error.Printf("control socket: %v", err)
		dev.Close()
		os.Exit(ExitBindError)
	}
	go func() {
		for {
			conn, err := uapi.Accept()
			if err != nil {
				return
			}
			go dev.FrontendHandle(conn)
		}
	}()

	term := make(chan os.Signal, 1)
	signal.Notify(term, syscall.SIGTERM, os.Interrupt)

	exitCode := ExitSetupSuccess
	select {
	case <-term:
		logger.Info.Printf("signal received, shutting down")
		exitCode = ExitSignal
	case <-dev.Wait():
	}

	uapi.Close()
	dev.Close()
	os.Exit(exitCode)
}

// addClient converts a configured client into a daemon peer.
func addClient(dev *daemon.Daemon, client frontend.ClientConfig) (daemon.Handle, error) {
	config, err := daemon.PeerConfigFromClient(client)
	if err != nil {
		return 0, err
	}
	return dev.AddPeer(config)
}
