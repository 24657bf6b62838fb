/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

// Package frontend defines the control protocol spoken between the
// daemon and its frontends: newline-delimited JSON over a local
// socket. Frontends send Requests; the daemon pushes Events.
package frontend

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// An Edge is the local screen boundary bound to a peer.
type Edge string

const (
	EdgeLeft   Edge = "left"
	EdgeRight  Edge = "right"
	EdgeTop    Edge = "top"
	EdgeBottom Edge = "bottom"
)

func (e Edge) Valid() bool {
	switch e {
	case EdgeLeft, EdgeRight, EdgeTop, EdgeBottom:
		return true
	}
	return false
}

// ClientConfig describes a peer as frontends and the config file see
// it.
type ClientConfig struct {
	Hostnames         []string `json:"hostnames"`
	IPs               []string `json:"ips,omitempty"`
	Port              uint16   `json:"port"`
	Edge              Edge     `json:"edge"`
	ActivateOnStartup bool     `json:"activate_on_startup,omitempty"`
}

type RequestType string

const (
	RequestAddClient            RequestType = "AddClient"
	RequestDelClient            RequestType = "DelClient"
	RequestUpdateClient         RequestType = "UpdateClient"
	RequestActivateClient       RequestType = "ActivateClient"
	RequestDeactivateClient     RequestType = "DeactivateClient"
	RequestAuthorizeFingerprint RequestType = "AuthorizeFingerprint"
	RequestListClients          RequestType = "ListClients"
	// Enumerate is the historical name for ListClients; both are accepted.
	RequestEnumerate RequestType = "Enumerate"
	RequestShutdown  RequestType = "Shutdown"
)

// A Request is one frontend-to-daemon message. Which fields are
// meaningful depends on Type: AddClient uses Client; UpdateClient uses
// Handle and Client; AuthorizeFingerprint uses Handle and Accept; the
// remaining client operations use Handle alone.
type Request struct {
	Type   RequestType   `json:"type"`
	Handle uint64        `json:"handle,omitempty"`
	Client *ClientConfig `json:"client,omitempty"`
	Accept bool          `json:"accept,omitempty"`
}

type EventType string

const (
	EventClientAdded            EventType = "ClientAdded"
	EventClientRemoved          EventType = "ClientRemoved"
	EventClientUpdated          EventType = "ClientUpdated"
	EventStateChanged           EventType = "StateChanged"
	EventAuthorizationRequested EventType = "AuthorizationRequested"
	EventError                  EventType = "Error"
)

// An Event is one daemon-to-frontend message.
type Event struct {
	Type        EventType     `json:"type"`
	Handle      uint64        `json:"handle,omitempty"`
	Client      *ClientConfig `json:"client,omitempty"`
	State       string        `json:"state,omitempty"`
	IPs         []string      `json:"ips,omitempty"`
	Active      bool          `json:"active,omitempty"`
	Resolving   bool          `json:"resolving,omitempty"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Message     string        `json:"message,omitempty"`
}

// MarshalRequest encodes a request as one protocol line, newline
// excluded.
func MarshalRequest(r Request) ([]byte, error) {
	return json.Marshal(r)
}

func UnmarshalRequest(line []byte) (Request, error) {
	var r Request
	if err := json.Unmarshal(line, &r); err != nil {
		return Request{}, fmt.Errorf("malformed request: %w", err)
	}
	if r.Type == "" {
		return Request{}, fmt.Errorf("request without type")
	}
	return r, nil
}

func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}

func UnmarshalEvent(line []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(line, &e); err != nil {
		return Event{}, fmt.Errorf("malformed event: %w", err)
	}
	return e, nil
}
