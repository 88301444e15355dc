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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	shellquote "github.com/kballard/go-shellquote"
)

// DockerContainer is one entry of docker.list's result (spec.md §6).
type DockerContainer struct {
	ID      string `json:"id"`
	Names   string `json:"names"`
	Image   string `json:"image"`
	State   string `json:"state"`
	Status  string `json:"status"`
	Created string `json:"created"`
}

// DockerAdapter is the capability seam AgentDispatcher routes
// docker.* commands through — an external collaborator per spec.md
// §1, not a core component, following the same pluggable-interface
// shape as capability.ArpAdapter: a missing or unavailable Docker
// daemon degrades to an error result, never a dispatcher crash.
type DockerAdapter interface {
	List(ctx context.Context) ([]DockerContainer, error)
	Start(ctx context.Context, containerID string) error
	Stop(ctx context.Context, containerID string) error
	Restart(ctx context.Context, containerID string) error
}

// NoopDocker is a DockerAdapter that reports itself unavailable for
// every operation, used when the host has no Docker daemon.
type NoopDocker struct{}

func (NoopDocker) List(context.Context) ([]DockerContainer, error) {
	return nil, fmt.Errorf("docker: unavailable")
}
func (NoopDocker) Start(context.Context, string) error   { return fmt.Errorf("docker: unavailable") }
func (NoopDocker) Stop(context.Context, string) error    { return fmt.Errorf("docker: unavailable") }
func (NoopDocker) Restart(context.Context, string) error { return fmt.Errorf("docker: unavailable") }

// CLIDocker is a DockerAdapter backed by shelling out to the `docker`
// binary, per spec.md §6's "adapters invoking OS tools ... surface
// the tool's exit code and merged stdout/stderr back to the caller".
type CLIDocker struct {
	// Timeout bounds each docker invocation. Zero means 10s.
	Timeout time.Duration
}

func (d CLIDocker) timeout() time.Duration {
	if d.Timeout <= 0 {
		return 10 * time.Second
	}
	return d.Timeout
}

func (d CLIDocker) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, "docker", args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("docker %s: %w: %s", shellquote.Join(args...), err, out.String())
	}
	return out.String(), nil
}

func (d CLIDocker) List(ctx context.Context) ([]DockerContainer, error) {
	out, err := d.run(ctx, "ps", "-a", "--format", `{{json .}}`)
	if err != nil {
		return nil, err
	}
	var containers []DockerContainer
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var row struct {
			ID        string `json:"ID"`
			Names     string `json:"Names"`
			Image     string `json:"Image"`
			State     string `json:"State"`
			Status    string `json:"Status"`
			CreatedAt string `json:"CreatedAt"`
		}
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			continue
		}
		containers = append(containers, DockerContainer{
			ID: row.ID, Names: row.Names, Image: row.Image,
			State: row.State, Status: row.Status, Created: row.CreatedAt,
		})
	}
	return containers, nil
}

func (d CLIDocker) Start(ctx context.Context, containerID string) error {
	_, err := d.run(ctx, "start", containerID)
	return err
}

func (d CLIDocker) Stop(ctx context.Context, containerID string) error {
	_, err := d.run(ctx, "stop", containerID)
	return err
}

func (d CLIDocker) Restart(ctx context.Context, containerID string) error {
	_, err := d.run(ctx, "restart", containerID)
	return err
}
