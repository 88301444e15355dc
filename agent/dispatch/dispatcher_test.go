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
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocker struct {
	restarted string
	failStart bool
}

func (f *fakeDocker) List(context.Context) ([]DockerContainer, error) {
	return []DockerContainer{{ID: "abc123", Names: "web-1", State: "running"}}, nil
}
func (f *fakeDocker) Start(context.Context, string) error { return nil }
func (f *fakeDocker) Stop(context.Context, string) error  { return nil }
func (f *fakeDocker) Restart(ctx context.Context, id string) error {
	f.restarted = id
	return nil
}

func collectStatuses(d *Dispatcher, cmdType string, payload string) []StatusUpdate {
	var updates []StatusUpdate
	d.Dispatch(context.Background(), uuid.New(), cmdType, json.RawMessage(payload), func(u StatusUpdate) {
		updates = append(updates, u)
	})
	return updates
}

func TestDispatchDockerRestartSuccess(t *testing.T) {
	docker := &fakeDocker{}
	d := New(docker, nil)

	updates := collectStatuses(d, "docker.restart", `{"containerId":"web-1"}`)
	require.Len(t, updates, 2)
	assert.Equal(t, StatusInProgress, updates[0].Status)
	assert.Equal(t, StatusSuccess, updates[1].Status)
	assert.Equal(t, "web-1", docker.restarted)

	var result struct {
		Success     bool   `json:"success"`
		ContainerID string `json:"containerId"`
		Action      string `json:"action"`
	}
	require.NoError(t, json.Unmarshal(updates[1].Result, &result))
	assert.True(t, result.Success)
	assert.Equal(t, "web-1", result.ContainerID)
	assert.Equal(t, "restart", result.Action)
}

func TestDispatchDockerRestartInvalidContainerID(t *testing.T) {
	d := New(&fakeDocker{}, nil)
	updates := collectStatuses(d, "docker.restart", `{"containerId":"../etc"}`)
	require.Len(t, updates, 2)
	assert.Equal(t, StatusFailed, updates[1].Status)
	assert.Contains(t, updates[1].Message, "Invalid containerId format.")
}

func TestDispatchUnknownTypeFails(t *testing.T) {
	d := New(nil, nil)
	updates := collectStatuses(d, "bogus.command", `{}`)
	require.Len(t, updates, 2)
	assert.Equal(t, StatusFailed, updates[1].Status)
	assert.Contains(t, updates[1].Message, "unknown command type")
}

func TestDispatchOversizePayloadRejected(t *testing.T) {
	d := New(nil, nil)
	big := `{"containerId":"` + strings.Repeat("a", 40*1024) + `"}`
	updates := collectStatuses(d, "docker.start", big)
	require.Len(t, updates, 2)
	assert.Equal(t, StatusFailed, updates[1].Status)
	assert.Contains(t, updates[1].Message, "32 KiB")
}

func TestDispatchDockerListNoAdapterIsUnavailable(t *testing.T) {
	d := New(nil, nil)
	updates := collectStatuses(d, "docker.list", `{}`)
	require.Len(t, updates, 2)
	assert.Equal(t, StatusFailed, updates[1].Status)
}

func TestExtractContainerIDAcceptsPascalCaseField(t *testing.T) {
	id, err := ExtractContainerID(json.RawMessage(`{"ContainerId":"web-2"}`))
	require.NoError(t, err)
	assert.Equal(t, "web-2", id)
}
