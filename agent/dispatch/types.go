// Copyright 2024 The ManLab Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dispatch implements AgentDispatcher (C10): a single
// Dispatch entry point that parses a CommandEnvelope's JSON payload
// and routes it by lowercased type, emitting InProgress/Success/
// Failed status updates rather than ever throwing a routing or
// handler error upward. Grounded on cmd/kolet/kolet.go's
// registerTestMap, which builds a cobra command tree keyed by
// test-then-function name; this package replaces that static cobra
// tree with a switch over the lowercased command type inside
// Dispatcher.Dispatch (docker.list/start/stop/restart, system.update).
package dispatch

import (
	"encoding/json"
	"regexp"

	"github.com/google/uuid"
)

// MaxPayloadBytes bounds a CommandEnvelope's JSON payload, per
// spec.md §3 CommandEnvelope.
const MaxPayloadBytes = 32 * 1024

// containerIDPattern validates the "containerId"/"ContainerId" field
// carried by docker.* payloads, per spec.md §3.
var containerIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// CommandEnvelope is the inbound command shape (spec.md §3).
type CommandEnvelope struct {
	CommandID uuid.UUID       `json:"commandId"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// Status is a command's lifecycle state.
type Status string

const (
	StatusInProgress Status = "InProgress"
	StatusSuccess    Status = "Success"
	StatusFailed     Status = "Failed"
)

// StatusUpdate is one status frame emitted over a command's status
// stream (spec.md §6).
type StatusUpdate struct {
	CommandID uuid.UUID       `json:"commandId"`
	Status    Status          `json:"status"`
	Message   string          `json:"message,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// StatusFunc receives each StatusUpdate for a dispatched command, in
// order, ending with exactly one terminal Success or Failed (non-
// streaming commands) or after the streaming executor's own final
// frame (streaming commands; see agent/script, agent/shell).
type StatusFunc func(StatusUpdate)

// ErrPayloadTooLarge describes a payload that exceeds
// MaxPayloadBytes. Dispatch does not return it: it reports an
// oversize payload as a StatusFailed update instead.
type ErrPayloadTooLarge struct{ Size int }

func (e *ErrPayloadTooLarge) Error() string {
	return "dispatch: payload too large"
}

// ErrInvalidContainerID is returned when a docker.* payload's
// containerId doesn't match containerIDPattern.
type ErrInvalidContainerID struct{}

func (ErrInvalidContainerID) Error() string { return "Invalid containerId format." }

// ExtractContainerID reads "containerId" (or "ContainerId") from a
// JSON object payload and validates it against containerIDPattern.
func ExtractContainerID(payload json.RawMessage) (string, error) {
	var fields struct {
		ContainerID  string `json:"containerId"`
		ContainerID2 string `json:"ContainerId"`
	}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return "", ErrInvalidContainerID{}
	}
	id := fields.ContainerID
	if id == "" {
		id = fields.ContainerID2
	}
	if !containerIDPattern.MatchString(id) {
		return "", ErrInvalidContainerID{}
	}
	return id, nil
}
