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

package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/raulshma/manlab/agent/shell"
)

// UpdateRunner is the subset of agent/shell.UpdateExecutor Dispatch
// needs for "system.update": stream status lines, return the final
// exit code. *shell.UpdateExecutor satisfies this directly.
type UpdateRunner interface {
	Run(ctx context.Context, onStatus func(shell.StatusLine)) (exitCode int, err error)
}

// Dispatcher is AgentDispatcher (C10): a single Dispatch entry point
// that parses, routes, and reports on inbound commands without ever
// letting a handler panic or a routing miss escape as an error to the
// caller.
type Dispatcher struct {
	Docker DockerAdapter
	Update UpdateRunner

	log *logrus.Entry
}

// New constructs a Dispatcher. A nil docker reports docker.* commands
// as unavailable; a nil update reports system.update as unavailable.
func New(docker DockerAdapter, update UpdateRunner) *Dispatcher {
	return &Dispatcher{
		Docker: docker,
		Update: update,
		log:    logrus.WithField("component", "dispatch"),
	}
}

// Dispatch routes one CommandEnvelope, emitting status updates to
// onStatus as work progresses. It never panics or returns an error to
// the caller for anything short of onStatus itself panicking —
// routing/validation/handler failures are reported as a terminal
// StatusFailed update instead, per spec.md §4.11/§7.
func (d *Dispatcher) Dispatch(ctx context.Context, commandID uuid.UUID, cmdType string, payload json.RawMessage, onStatus StatusFunc) {
	if onStatus == nil {
		onStatus = func(StatusUpdate) {}
	}

	onStatus(StatusUpdate{
		CommandID: commandID,
		Status:    StatusInProgress,
		Message:   fmt.Sprintf("Executing command: %s", cmdType),
	})

	if len(payload) > MaxPayloadBytes {
		d.fail(commandID, onStatus, "payload exceeds 32 KiB limit")
		return
	}
	if len(payload) > 0 && !json.Valid(payload) {
		d.fail(commandID, onStatus, "payload is not valid JSON")
		return
	}

	switch strings.ToLower(cmdType) {
	case "docker.list":
		d.dockerList(ctx, commandID, onStatus)
	case "docker.start":
		d.dockerAction(ctx, commandID, payload, onStatus, "start", d.docker().Start)
	case "docker.stop":
		d.dockerAction(ctx, commandID, payload, onStatus, "stop", d.docker().Stop)
	case "docker.restart":
		d.dockerAction(ctx, commandID, payload, onStatus, "restart", d.docker().Restart)
	case "system.update":
		d.systemUpdate(ctx, commandID, onStatus)
	default:
		d.fail(commandID, onStatus, fmt.Sprintf("unknown command type %q", cmdType))
	}
}

func (d *Dispatcher) docker() DockerAdapter {
	if d.Docker == nil {
		return NoopDocker{}
	}
	return d.Docker
}

func (d *Dispatcher) dockerList(ctx context.Context, commandID uuid.UUID, onStatus StatusFunc) {
	containers, err := d.docker().List(ctx)
	if err != nil {
		d.failJSON(commandID, onStatus, map[string]string{"error": err.Error()})
		return
	}
	result, _ := json.Marshal(containers)
	onStatus(StatusUpdate{CommandID: commandID, Status: StatusSuccess, Result: result})
}

func (d *Dispatcher) dockerAction(ctx context.Context, commandID uuid.UUID, payload json.RawMessage, onStatus StatusFunc, action string, fn func(context.Context, string) error) {
	containerID, err := ExtractContainerID(payload)
	if err != nil {
		d.failJSON(commandID, onStatus, map[string]string{"error": err.Error()})
		return
	}
	if err := fn(ctx, containerID); err != nil {
		d.failJSON(commandID, onStatus, map[string]string{"error": err.Error(), "containerId": containerID})
		return
	}
	result, _ := json.Marshal(map[string]any{
		"success": true, "containerId": containerID, "action": action,
	})
	onStatus(StatusUpdate{CommandID: commandID, Status: StatusSuccess, Result: result})
}

func (d *Dispatcher) systemUpdate(ctx context.Context, commandID uuid.UUID, onStatus StatusFunc) {
	if d.Update == nil {
		d.fail(commandID, onStatus, "system.update: no updater configured for this host")
		return
	}

	var output strings.Builder
	exitCode, err := d.Update.Run(ctx, func(line shell.StatusLine) {
		output.WriteString(line.Text)
		output.WriteString("\n")
		onStatus(StatusUpdate{CommandID: commandID, Status: StatusInProgress, Message: line.Text})
	})
	if err != nil {
		d.fail(commandID, onStatus, err.Error())
		return
	}

	final := fmt.Sprintf("Exit code: %d\n%s", exitCode, output.String())
	status := StatusSuccess
	if exitCode != 0 {
		status = StatusFailed
	}
	onStatus(StatusUpdate{CommandID: commandID, Status: status, Message: final})
}

func (d *Dispatcher) fail(commandID uuid.UUID, onStatus StatusFunc, reason string) {
	d.log.WithField("command", commandID).Warn(reason)
	onStatus(StatusUpdate{CommandID: commandID, Status: StatusFailed, Message: reason})
}

func (d *Dispatcher) failJSON(commandID uuid.UUID, onStatus StatusFunc, body map[string]string) {
	result, _ := json.Marshal(body)
	onStatus(StatusUpdate{CommandID: commandID, Status: StatusFailed, Message: body["error"], Result: result})
}
