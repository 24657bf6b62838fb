/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

// Package config loads the daemon's YAML configuration file.
package config

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"golang.zx2c4.com/edgehop/event"
	"golang.zx2c4.com/edgehop/frontend"
)

const DefaultPort = 4242

type Peer struct {
	Hostnames         []string `yaml:"hostnames"`
	IPs               []string `yaml:"ips"`
	Port              uint16   `yaml:"port"`
	Edge              string   `yaml:"edge"`
	ActivateOnStartup bool     `yaml:"activate_on_startup"`
}

type Config struct {
	Port                   uint16   `yaml:"port"`
	Backend                string   `yaml:"backend"`
	AuthorizedFingerprints []string `yaml:"authorized_fingerprints"`
	Peers                  []Peer   `yaml:"peers"`
}

// Load reads and validates the config file at path. A missing file is
// not an error when path is empty; the defaults then apply.
func Load(path string) (*Config, error) {
	config := &Config{Port: DefaultPort, Backend: "auto"}
	if path == "" {
		return config, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Backend == "" {
		config.Backend = "auto"
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

func (c *Config) validate() error {
	for i, p := range c.Peers {
		if len(p.Hostnames) == 0 && len(p.IPs) == 0 {
			return fmt.Errorf("peer %d: no hostnames and no ips", i)
		}
		if !frontend.Edge(p.Edge).Valid() {
			return fmt.Errorf("peer %d: invalid edge %q", i, p.Edge)
		}
		for _, ip := range p.IPs {
			if net.ParseIP(ip) == nil {
				return fmt.Errorf("peer %d: invalid ip %q", i, ip)
			}
		}
	}
	for _, fp := range c.AuthorizedFingerprints {
		if _, err := ParseFingerprint(fp); err != nil {
			return err
		}
	}
	return nil
}

// ClientConfigs converts the configured peers to the shape the daemon
// and frontends share.
func (c *Config) ClientConfigs() []frontend.ClientConfig {
	clients := make([]frontend.ClientConfig, 0, len(c.Peers))
	for _, p := range c.Peers {
		port := p.Port
		if port == 0 {
			port = c.Port
		}
		clients = append(clients, frontend.ClientConfig{
			Hostnames:         p.Hostnames,
			IPs:               p.IPs,
			Port:              port,
			Edge:              frontend.Edge(p.Edge),
			ActivateOnStartup: p.ActivateOnStartup,
		})
	}
	return clients
}

// Trusted returns the pre-authorized peer fingerprints.
func (c *Config) Trusted() []event.Fingerprint {
	fps := make([]event.Fingerprint, 0, len(c.AuthorizedFingerprints))
	for _, s := range c.AuthorizedFingerprints {
		fp, err := ParseFingerprint(s)
		if err != nil {
			continue // validate already rejected these
		}
		fps = append(fps, fp)
	}
	return fps
}

// ParseFingerprint parses a 32 byte fingerprint written as hex, with
// optional colon or space separators.
func ParseFingerprint(s string) (event.Fingerprint, error) {
	var fp event.Fingerprint
	cleaned := strings.NewReplacer(":", "", " ", "").Replace(s)
	raw, err := hex.DecodeString(cleaned)
	if err != nil || len(raw) != len(fp) {
		return fp, fmt.Errorf("invalid fingerprint %q", s)
	}
	copy(fp[:], raw)
	return fp, nil
}
