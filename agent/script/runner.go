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

package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/coreos/pkg/capnslog"
)

var plog = capnslog.NewPackageLogger("github.com/raulshma/manlab", "script")

// Runner is ScriptRunner: it materializes a Run's content to a
// host-local temp file and executes it under a sandboxed environment,
// streaming stdout/stderr back in bounded chunks.
type Runner struct {
	// MaxDuration bounds how long a run may execute before its process
	// tree is killed. Zero means DefaultMaxDuration.
	MaxDuration time.Duration
	// TailBytes bounds the rolling summary tail, one buffer shared by
	// stdout and stderr. Zero means DefaultTailBytes.
	TailBytes int
}

// New constructs a Runner with default tuning.
func New() *Runner { return &Runner{} }

// Run materializes run.Content to a temp file, executes it, and
// streams output through onOutput/onInfo until the process exits or
// the run's maximum duration elapses. The temp file is removed on
// every exit path. A non-zero exit code is reported via Result, not
// as an error.
func (r *Runner) Run(ctx context.Context, run Run, onOutput OutputFunc, onInfo InfoFunc) (Result, error) {
	maxDuration := r.MaxDuration
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}

	path, err := writeTempScript(run)
	if err != nil {
		return Result{}, fmt.Errorf("script: writing temp file: %w", err)
	}
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			plog.Warningf("script: failed to remove temp file %s: %v", path, rmErr)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, maxDuration)
	defer cancel()

	cmd, err := buildScriptCommand(runCtx, run.Shell, path)
	if err != nil {
		return Result{}, err
	}
	cmd.Env = sandboxedEnv()

	tail := newTailBuffer(r.TailBytes)
	stdoutSender := newChunkSender(run, StreamStdout, onOutput, tail)
	stderrSender := newChunkSender(run, StreamStderr, onOutput, tail)
	cmd.Stdout = stdoutSender
	cmd.Stderr = stderrSender

	if err := cmd.Start(); err != nil {
		stdoutSender.Close()
		stderrSender.Close()
		return Result{}, fmt.Errorf("script: starting %s: %w", run.Shell, err)
	}

	err = cmd.Wait()

	timedOut := runCtx.Err() == context.DeadlineExceeded
	if timedOut {
		killProcessTree(cmd)
	}

	stdoutSender.Close()
	stderrSender.Close()

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else if !timedOut {
			return Result{Tail: tail.String()}, fmt.Errorf("script: %w", err)
		}
	}
	if timedOut {
		exitCode = -1
	}

	if onInfo != nil {
		onInfo(InfoFrame{
			Kind:     "script.info",
			RunID:    run.RunID,
			ScriptID: run.ScriptID,
			Message:  fmt.Sprintf("Script completed. ExitCode=%d.", exitCode),
		})
	}

	result := Result{ExitCode: exitCode, TimedOut: timedOut, Tail: tail.String()}
	if timedOut {
		return result, &ErrTimeout{RunID: run.RunID, Duration: maxDuration}
	}
	return result, nil
}

func writeTempScript(run Run) (string, error) {
	f, err := os.CreateTemp("", "manlab-script-*"+scriptExtension(run.Shell))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.WriteString(run.Content); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(f.Name(), 0o700); err != nil {
			os.Remove(f.Name())
			return "", err
		}
	}
	return f.Name(), nil
}
