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

// Package ratelimit bounds how often a subject (a transport-level
// connection or session identifier) may invoke a given scanner
// operation, and how many concurrent scans it may have in flight.
//
// The concurrent-scan gate is grounded directly on the teacher's
// storage/ratelimit.go, which guards remote storage API calls with a
// single process-wide `chan struct{}` semaphore. Limiter generalizes
// that to one gate per subject (a scan started by one agent
// connection must not starve another's).
//
// Despite the name, the per-operation limit is a fixed window, not a
// true sliding window: each (subject, operation) pair gets one
// counter that resets a full Window after its first hit, evicted via
// TTL. This matches spec.md's explicit acceptance of "fixed 60s window
// via cache TTL" documented as an open question resolution.
package ratelimit

import (
	"sync"
	"time"
)

// Window is the fixed counting window applied to every operation.
const Window = 60 * time.Second

// DefaultLimits mirrors spec.md's per-operation budget, requests per
// Window.
var DefaultLimits = map[string]int{
	"ping":       60,
	"traceroute": 20,
	"portscan":   10,
	"subnet":     5,
	"discovery":  10,
	"speedtest":  5,
	"default":    30,
}

// DefaultMaxConcurrentScans is the number of scans a single subject
// may have in flight simultaneously.
const DefaultMaxConcurrentScans = 1

type windowCounter struct {
	start time.Time
	count int
}

type subjectState struct {
	mu          sync.Mutex
	windows     map[string]*windowCounter
	activeScans int
}

// Limiter is a per-subject, per-operation rate limiter plus a
// per-subject concurrent-scan gate. The zero value is not usable; use
// New.
type Limiter struct {
	limits             map[string]int
	maxConcurrentScans int

	mu       sync.Mutex
	subjects map[string]*subjectState

	now func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLimits overrides the per-operation requests-per-Window budget.
func WithLimits(limits map[string]int) Option {
	return func(l *Limiter) { l.limits = limits }
}

// WithMaxConcurrentScans overrides the per-subject concurrency cap.
func WithMaxConcurrentScans(n int) Option {
	return func(l *Limiter) { l.maxConcurrentScans = n }
}

// withClock overrides the time source, for tests.
func withClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New constructs a Limiter with spec-default limits and a concurrency
// cap of one scan per subject.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		limits:             DefaultLimits,
		maxConcurrentScans: DefaultMaxConcurrentScans,
		subjects:           make(map[string]*subjectState),
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) limitFor(op string) int {
	if n, ok := l.limits[op]; ok {
		return n
	}
	return l.limits["default"]
}

func (l *Limiter) stateFor(subject string) *subjectState {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.subjects[subject]
	if !ok {
		s = &subjectState{windows: make(map[string]*windowCounter)}
		l.subjects[subject] = s
	}
	return s
}

// CheckLimit reports whether subject is currently rate-limited for
// op, and if so how many seconds remain before the window resets. It
// does not itself record a hit; call Record to do that.
func (l *Limiter) CheckLimit(subject, op string) (limited bool, retryAfterSeconds int) {
	s := l.stateFor(subject)
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[op]
	if !ok {
		return false, 0
	}

	now := l.now()
	elapsed := now.Sub(w.start)
	if elapsed >= Window {
		return false, 0
	}

	if w.count >= l.limitFor(op) {
		remaining := Window - elapsed
		secs := int(remaining / time.Second)
		if remaining%time.Second != 0 {
			secs++
		}
		return true, secs
	}
	return false, 0
}

// Record registers one invocation of op by subject, starting a new
// window if the previous one (if any) has expired.
func (l *Limiter) Record(subject, op string) {
	s := l.stateFor(subject)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := l.now()
	w, ok := s.windows[op]
	if !ok || now.Sub(w.start) >= Window {
		w = &windowCounter{start: now}
		s.windows[op] = w
	}
	w.count++
}

// TryStartScan attempts to reserve one of subject's concurrent-scan
// slots, atomically incrementing and rolling back if the cap would be
// exceeded. Callers must pair a successful TryStartScan with EndScan.
func (l *Limiter) TryStartScan(subject string) bool {
	s := l.stateFor(subject)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeScans >= l.maxConcurrentScans {
		return false
	}
	s.activeScans++
	return true
}

// EndScan releases a concurrent-scan slot previously reserved by
// TryStartScan. Calling EndScan without a matching TryStartScan leaves
// activeScans unchanged (never goes negative).
func (l *Limiter) EndScan(subject string) {
	s := l.stateFor(subject)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeScans > 0 {
		s.activeScans--
	}
}

// ActiveScans returns the number of scans subject currently has in
// flight.
func (l *Limiter) ActiveScans(subject string) int {
	s := l.stateFor(subject)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeScans
}

// Cleanup discards all per-operation windows and the concurrency
// counter for subject, e.g. on transport disconnect.
func (l *Limiter) Cleanup(subject string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.subjects, subject)
}
