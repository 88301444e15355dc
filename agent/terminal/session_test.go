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

//go:build !windows

package terminal

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerRejectsSecondConcurrentSession(t *testing.T) {
	m := NewManager()
	s1, err := m.Open(0, 0, func(string, bool) {})
	require.NoError(t, err)
	defer s1.Close()

	_, err = m.Open(0, 0, func(string, bool) {})
	require.ErrorIs(t, err, ErrSessionAlreadyOpen{})
}

func TestSessionEchoesInputAndCanBeClosed(t *testing.T) {
	var mu sync.Mutex
	var output strings.Builder
	closedCh := make(chan struct{})

	m := NewManager()
	s, err := m.Open(0, 0, func(chunk string, closed bool) {
		mu.Lock()
		output.WriteString(chunk)
		mu.Unlock()
		if closed {
			close(closedCh)
		}
	})
	require.NoError(t, err)

	require.NoError(t, s.SendInput("echo hello-session\n"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return strings.Contains(output.String(), "hello-session")
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, m.Close(s.ID))
	select {
	case <-closedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not signal closed")
	}
	assert.Equal(t, CloseReasonRequested, s.Reason())
}

func TestSessionClosesOnOutputLimit(t *testing.T) {
	s, err := start(16, 0, func(string, bool) {})
	require.NoError(t, err)

	require.NoError(t, s.SendInput("yes | head -c 4096\n"))

	require.Eventually(t, func() bool {
		return s.Closed()
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, CloseReasonOutputLimit, s.Reason())
}

func TestSessionClosesOnDurationCap(t *testing.T) {
	s, err := start(0, 100*time.Millisecond, func(string, bool) {})
	require.NoError(t, err)
	defer s.Close()

	require.Eventually(t, func() bool {
		return s.Closed()
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, CloseReasonDurationCap, s.Reason())
}
