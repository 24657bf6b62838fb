/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package frontend

import (
	"reflect"
	"strings"
	"testing"
)

func TestRequestLine(t *testing.T) {
	req := Request{
		Type: RequestAddClient,
		Client: &ClientConfig{
			Hostnames:         []string{"workstation.local"},
			IPs:               []string{"10.0.0.2"},
			Port:              4242,
			Edge:              EdgeLeft,
			ActivateOnStartup: true,
		},
	}
	line, err := MarshalRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	if strings.ContainsRune(string(line), '\n') {
		t.Fatal("request line contains a newline")
	}
	back, err := UnmarshalRequest(line)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(req, back) {
		t.Fatalf("round trip: %+v != %+v", back, req)
	}
}

func TestAuthorizeRequest(t *testing.T) {
	line := []byte(`{"type":"AuthorizeFingerprint","handle":3,"accept":true}`)
	req, err := UnmarshalRequest(line)
	if err != nil {
		t.Fatal(err)
	}
	if req.Type != RequestAuthorizeFingerprint || req.Handle != 3 || !req.Accept {
		t.Fatalf("parsed %+v", req)
	}
}

func TestRequestWithoutType(t *testing.T) {
	if _, err := UnmarshalRequest([]byte(`{"handle":1}`)); err == nil {
		t.Fatal("typeless request accepted")
	}
	if _, err := UnmarshalRequest([]byte(`not json`)); err == nil {
		t.Fatal("garbage accepted")
	}
}

func TestStateChangedEvent(t *testing.T) {
	ev := Event{
		Type:      EventStateChanged,
		Handle:    7,
		State:     "active",
		IPs:       []string{"10.0.0.2:4242"},
		Active:    true,
		Resolving: false,
	}
	line, err := MarshalEvent(ev)
	if err != nil {
		t.Fatal(err)
	}
	back, err := UnmarshalEvent(line)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ev, back) {
		t.Fatalf("round trip: %+v != %+v", back, ev)
	}
}

func TestEdgeValidation(t *testing.T) {
	for _, edge := range []Edge{EdgeLeft, EdgeRight, EdgeTop, EdgeBottom} {
		if !edge.Valid() {
			t.Errorf("%s not valid", edge)
		}
	}
	for _, edge := range []Edge{"", "up", "Left", "diagonal"} {
		if edge.Valid() {
			t.Errorf("%q accepted", edge)
		}
	}
}
