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
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/coreos/pkg/capnslog"
	"github.com/google/uuid"
)

var plog = capnslog.NewPackageLogger("github.com/raulshma/manlab", "terminal")

// Session is TerminalSessionState: one interactive shell process,
// with a background flusher that drains its combined stdout/stderr
// into onOutput every flushInterval, bounded by MaxOutputBytes and
// MaxDuration.
type Session struct {
	ID          uuid.UUID
	startedAt   time.Time
	maxBytes    int
	maxDuration time.Duration
	onOutput    OutputFunc

	cmd   *exec.Cmd
	stdin io.WriteCloser

	mu        sync.Mutex
	buf       []byte
	bytesSent int
	closed    bool
	reason    CloseReason

	doneOnce sync.Once
	done     chan struct{}
}

// start spawns the OS shell and begins pumping its output. Callers
// should use Manager.Open rather than constructing a Session directly
// so the one-session-per-agent invariant is enforced.
func start(maxBytes int, maxDuration time.Duration, onOutput OutputFunc) (*Session, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxOutputBytes
	}
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}

	cmd := buildShellCommand()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:          uuid.New(),
		startedAt:   time.Now(),
		maxBytes:    maxBytes,
		maxDuration: maxDuration,
		onOutput:    onOutput,
		cmd:         cmd,
		stdin:       stdin,
		done:        make(chan struct{}),
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var pumpWG sync.WaitGroup
	pumpWG.Add(2)
	go s.pump(&pumpWG, stdout)
	go s.pump(&pumpWG, stderr)

	go s.flushLoop()
	go func() {
		timer := time.NewTimer(maxDuration)
		defer timer.Stop()
		select {
		case <-timer.C:
			s.closeWith(CloseReasonDurationCap)
		case <-s.done:
		}
	}()
	go func() {
		pumpWG.Wait()
		_ = cmd.Wait()
		s.closeWith(CloseReasonProcessEnded)
	}()

	return s, nil
}

func (s *Session) pump(wg *sync.WaitGroup, r io.Reader) {
	defer wg.Done()
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			s.mu.Lock()
			s.buf = append(s.buf, chunk[:n]...)
			s.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// flushLoop drains the shared buffer to onOutput every flushInterval,
// truncating to whatever remains of the session's output budget,
// until the session closes.
func (s *Session) flushLoop() {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if exhausted := s.flushOnce(); exhausted {
				s.closeWith(CloseReasonOutputLimit)
				return
			}
		case <-s.done:
			return
		}
	}
}

// flushOnce sends whatever output is pending, clamped to the
// remaining byte budget, and reports whether the budget is now
// exhausted.
func (s *Session) flushOnce() bool {
	s.mu.Lock()
	remaining := s.maxBytes - s.bytesSent
	var chunk []byte
	if remaining > 0 && len(s.buf) > 0 {
		if len(s.buf) > remaining {
			chunk, s.buf = s.buf[:remaining], s.buf[remaining:]
		} else {
			chunk, s.buf = s.buf, nil
		}
		s.bytesSent += len(chunk)
	}
	exhausted := s.bytesSent >= s.maxBytes
	s.mu.Unlock()

	if len(chunk) > 0 && s.onOutput != nil {
		s.onOutput(string(chunk), false)
	}
	return exhausted
}

// SendInput writes text to the shell's stdin.
func (s *Session) SendInput(text string) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed{}
	}
	_, err := io.WriteString(s.stdin, text)
	return err
}

// Close ends the session at the caller's request.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed{}
	}
	s.mu.Unlock()
	s.closeWith(CloseReasonRequested)
	return nil
}

func (s *Session) closeWith(reason CloseReason) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.reason = reason
	s.mu.Unlock()

	s.doneOnce.Do(func() { close(s.done) })
	_ = s.stdin.Close()
	killProcessTree(s.cmd)

	// Final flush so any output produced right up to closure still
	// reaches the caller before the closed signal.
	s.flushOnce()
	if s.onOutput != nil {
		s.onOutput("", true)
	}
	plog.Infof("terminal session %s closed: %s", s.ID, reason)
}

// Reason reports why a closed session ended; zero value before close.
func (s *Session) Reason() CloseReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Closed reports whether the session has ended.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// BytesSent reports how much output has been delivered so far.
func (s *Session) BytesSent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytesSent
}
