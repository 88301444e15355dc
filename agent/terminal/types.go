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

// Package terminal implements TerminalSession (C12): a single
// interactive shell process per agent, with output and duration
// budgets, generalized from platform/util.go's Manhole — which
// attaches a local raw-mode console to a *remote* SSH shell — to a
// PTY-less local shell reachable over the agent's own command
// transport instead of SSH.
package terminal

import "time"

// DefaultMaxOutputBytes bounds a session's lifetime output when the
// caller doesn't specify one.
const DefaultMaxOutputBytes = 1 << 20 // 1 MiB

// DefaultMaxDuration bounds a session's wall-clock lifetime when the
// caller doesn't specify one.
const DefaultMaxDuration = 30 * time.Minute

// flushInterval is how often the background flusher drains the
// shared output buffer to the callback, per spec.md §4.13.
const flushInterval = 100 * time.Millisecond

// OutputFunc receives a chunk of terminal output. closed is true on
// the final call for a session, whether closure was caller-initiated
// or budget-triggered.
type OutputFunc func(chunk string, closed bool)

// ErrSessionAlreadyOpen is returned by Open when a non-closed session
// already exists (spec.md §3 TerminalSessionState invariant: at most
// one non-closed session per agent).
type ErrSessionAlreadyOpen struct{}

func (ErrSessionAlreadyOpen) Error() string { return "terminal: a session is already open" }

// ErrSessionClosed is returned by SendInput/Close once a session has
// already ended.
type ErrSessionClosed struct{}

func (ErrSessionClosed) Error() string { return "terminal: session is closed" }

// CloseReason records why a session ended, surfaced for logging and
// status reporting.
type CloseReason string

const (
	CloseReasonRequested    CloseReason = "requested"
	CloseReasonOutputLimit  CloseReason = "output_limit_reached"
	CloseReasonDurationCap  CloseReason = "duration_limit_reached"
	CloseReasonProcessEnded CloseReason = "process_ended"
)
