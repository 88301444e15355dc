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

package shell

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/raulshma/manlab/network"
	sysexec "github.com/raulshma/manlab/system/exec"
)

// Executor is ShellExecutor: a one-shot bounded command runner.
type Executor struct{}

// New constructs a ShellExecutor.
func New() *Executor { return &Executor{} }

// Run executes command through the OS-appropriate shell, merging
// stdout and stderr into a buffer capped at maxOutputChars (zero means
// DefaultMaxOutputChars), and kills the whole process tree if it
// doesn't exit within timeout (zero means DefaultTimeout).
func (e *Executor) Run(ctx context.Context, command string, maxOutputChars int, timeout time.Duration) (Result, error) {
	if maxOutputChars <= 0 {
		maxOutputChars = DefaultMaxOutputChars
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := buildCommand(runCtx, command)
	out := newBoundedWriter(maxOutputChars)
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return Result{}, err
	}

	waitErr := cmd.Wait()

	if runCtx.Err() == context.DeadlineExceeded {
		killProcessTree(cmd)
		return Result{Output: out.String(), TimedOut: true}, &ErrTimeout{Command: command, Timeout: timeout}
	}

	result := Result{Output: out.String()}
	if waitErr == nil {
		result.ExitCode = 0
		return result, nil
	}

	var exitErr interface{ ExitCode() int }
	if errors.As(waitErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return result, waitErr
}

// RunRemote is Run's remote-exec fallback: it runs command on host
// over SSH through sshAgent instead of a local subprocess, for
// targets ShellExecutor can't spawn a process on directly (a managed
// device, or a host reachable only through a jump box). Output and
// timeout bounds match Run; a command that exceeds timeout is killed
// the same way, just over the SSH session instead of a process group.
func (e *Executor) RunRemote(ctx context.Context, sshAgent *network.SSHAgent, host, command string, maxOutputChars int, timeout time.Duration) (Result, error) {
	if maxOutputChars <= 0 {
		maxOutputChars = DefaultMaxOutputChars
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cmd, err := sysexec.CommandViaSSH(sshAgent, host, command)
	if err != nil {
		return Result{}, err
	}

	type outcome struct {
		out []byte
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		out, runErr := cmd.CombinedOutput()
		done <- outcome{out, runErr}
	}()

	select {
	case o := <-done:
		out := o.out
		if len(out) > maxOutputChars {
			out = out[:maxOutputChars]
		}
		result := Result{Output: string(out)}
		if o.err == nil {
			return result, nil
		}
		var exitErr *ssh.ExitError
		if errors.As(o.err, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		return result, o.err
	case <-time.After(timeout):
		_ = cmd.Kill()
		return Result{TimedOut: true}, &ErrTimeout{Command: command, Timeout: timeout}
	case <-ctx.Done():
		_ = cmd.Kill()
		return Result{}, ctx.Err()
	}
}
