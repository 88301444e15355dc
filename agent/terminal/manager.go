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

package terminal

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager enforces "at most one non-closed session per agent"
// (spec.md §3 TerminalSessionState): an agent process hosts a single
// Manager, and Open rejects a second concurrent session rather than
// silently replacing the first.
type Manager struct {
	mu      sync.Mutex
	current *Session
}

// NewManager constructs an empty Manager.
func NewManager() *Manager { return &Manager{} }

// Open starts a new shell session if none is currently open.
// MaxBytes/maxDuration of zero use the package defaults.
func (m *Manager) Open(maxBytes int, maxDuration time.Duration, onOutput OutputFunc) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && !m.current.Closed() {
		return nil, ErrSessionAlreadyOpen{}
	}

	s, err := start(maxBytes, maxDuration, onOutput)
	if err != nil {
		return nil, err
	}
	m.current = s
	return s, nil
}

// SendInput forwards text to the named session's stdin.
func (m *Manager) SendInput(id uuid.UUID, text string) error {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()
	if s == nil || s.ID != id {
		return ErrSessionClosed{}
	}
	return s.SendInput(text)
}

// Close ends the named session.
func (m *Manager) Close(id uuid.UUID) error {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()
	if s == nil || s.ID != id {
		return ErrSessionClosed{}
	}
	return s.Close()
}

// Current returns the active session, if any.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.current.Closed() {
		return nil
	}
	return m.current
}
