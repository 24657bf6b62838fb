/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package conn

import "testing"

func TestParseEndpoint(t *testing.T) {
	ep, err := ParseEndpoint("10.20.30.40:4242")
	if err != nil {
		t.Fatal(err)
	}
	if ep.DstToString() != "10.20.30.40:4242" {
		t.Fatalf("endpoint = %s", ep.DstToString())
	}
	if ep.DstIP().String() != "10.20.30.40" {
		t.Fatalf("ip = %s", ep.DstIP())
	}

	ep, err = ParseEndpoint("[2607:5300:60:6b0::c05f:543]:2468")
	if err != nil {
		t.Fatal(err)
	}
	if ep.DstToString() != "[2607:5300:60:6b0::c05f:543]:2468" {
		t.Fatalf("endpoint = %s", ep.DstToString())
	}

	for _, bad := range []string{"example.com:4242", "10.0.0.1", ":", ""} {
		if _, err := ParseEndpoint(bad); err == nil {
			t.Errorf("%q parsed", bad)
		}
	}
}
