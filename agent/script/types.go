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

// Package script implements ScriptRunner (C11): a remote script is
// materialized to a host-local temp file, run under a sandboxed
// environment allowlist, and its stdout/stderr are streamed back as
// bounded chunks. Grounded on internal/pkg/bashexec's
// temp-file-plus-Pdeathsig shape, generalized from "bash only" to the
// spec's bash/powershell dispatch and from a single combined
// buffer to a chunked sender with a separate rolling tail.
package script

import (
	"time"

	"github.com/google/uuid"
)

// Shell is the interpreter a Run executes under.
type Shell string

const (
	ShellBash       Shell = "bash"
	ShellPowerShell Shell = "powershell"
)

// Run is a ScriptRun: a script body to materialize and execute.
type Run struct {
	CommandID uuid.UUID
	RunID     uuid.UUID
	ScriptID  uuid.UUID
	Shell     Shell
	Content   string
}

// Default tuning, per spec.md §4.12 and §5.
const (
	// DefaultMaxDuration bounds a script run when the caller doesn't
	// specify ScriptMaxDurationSeconds.
	DefaultMaxDuration = 5 * time.Minute
	// DefaultTailBytes bounds the rolling summary tail kept for the
	// final status report.
	DefaultTailBytes = 16 * 1024
	// ChunkSize is the maximum number of characters forwarded to the
	// output callback in a single OutputFrame.
	ChunkSize = 2048
	// FlushInterval is the cadence ChunkSender flushes a partial
	// chunk even when it hasn't reached ChunkSize.
	FlushInterval = 300 * time.Millisecond
)

// Stream identifies which subprocess stream an OutputFrame carries.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// OutputFrame is the wire shape of a "script.output" status frame
// (spec.md §6).
type OutputFrame struct {
	Kind     string    `json:"kind"`
	RunID    uuid.UUID `json:"runId"`
	ScriptID uuid.UUID `json:"scriptId"`
	Stream   Stream    `json:"stream"`
	Chunk    string    `json:"chunk"`
}

// InfoFrame is the wire shape of the terminal "script.info" status
// frame (spec.md §6).
type InfoFrame struct {
	Kind     string    `json:"kind"`
	RunID    uuid.UUID `json:"runId"`
	ScriptID uuid.UUID `json:"scriptId"`
	Message  string    `json:"message"`
}

// OutputFunc receives one OutputFrame at a time as output is chunked.
type OutputFunc func(OutputFrame)

// InfoFunc receives the single terminal InfoFrame for a run.
type InfoFunc func(InfoFrame)

// Result summarizes a completed run.
type Result struct {
	ExitCode int
	TimedOut bool
	Tail     string
}

// ErrTimeout is returned (wrapped) when a run is killed for exceeding
// its maximum duration.
type ErrTimeout struct {
	RunID    uuid.UUID
	Duration time.Duration
}

func (e *ErrTimeout) Error() string {
	return "script: run " + e.RunID.String() + " timed out after " + e.Duration.String()
}

// ErrUnsupportedShell is returned when Shell has no interpreter
// mapping on the current OS.
type ErrUnsupportedShell struct {
	Shell Shell
	OS    string
}

func (e *ErrUnsupportedShell) Error() string {
	return "script: shell " + string(e.Shell) + " not supported on " + e.OS
}
