/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != DefaultPort || cfg.Backend != "auto" {
		t.Fatalf("defaults: %+v", cfg)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
port: 4243
backend: dummy
authorized_fingerprints:
  - "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
peers:
  - hostnames: [workstation.local]
    ips: [10.0.0.2]
    edge: left
    activate_on_startup: true
  - ips: [10.0.0.3]
    port: 5000
    edge: right
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 4243 || cfg.Backend != "dummy" {
		t.Fatalf("loaded %+v", cfg)
	}

	clients := cfg.ClientConfigs()
	if len(clients) != 2 {
		t.Fatalf("got %d clients", len(clients))
	}
	if clients[0].Port != 4243 {
		t.Fatalf("peer without port did not inherit the global port: %d", clients[0].Port)
	}
	if clients[1].Port != 5000 {
		t.Fatalf("per-peer port lost: %d", clients[1].Port)
	}
	if !clients[0].ActivateOnStartup || clients[1].ActivateOnStartup {
		t.Fatal("activate_on_startup mangled")
	}

	trusted := cfg.Trusted()
	if len(trusted) != 1 || trusted[0][0] != 0xAA {
		t.Fatalf("trusted fingerprints: %v", trusted)
	}
}

func TestInvalidConfigs(t *testing.T) {
	cases := map[string]string{
		"missing address": `
peers:
  - edge: left
`,
		"bad edge": `
peers:
  - ips: [10.0.0.2]
    edge: diagonal
`,
		"bad ip": `
peers:
  - ips: [256.1.2.3]
    edge: left
`,
		"bad fingerprint": `
authorized_fingerprints: ["zz"]
`,
	}
	for name, content := range cases {
		if _, err := Load(writeConfig(t, content)); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}
}

func TestParseFingerprint(t *testing.T) {
	spaced := strings.Repeat("ab ", 31) + "ab"
	fp, err := ParseFingerprint(spaced)
	if err != nil {
		t.Fatal(err)
	}
	if fp[0] != 0xAB || fp[31] != 0xAB {
		t.Fatalf("parsed %v", fp)
	}
	colons := strings.Repeat("cd:", 31) + "cd"
	if _, err := ParseFingerprint(colons); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseFingerprint("abcd"); err == nil {
		t.Fatal("short fingerprint accepted")
	}
}
