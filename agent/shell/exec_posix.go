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

package shell

import (
	"context"
	"os/exec"
	"syscall"
)

// buildCommand invokes command through a login, non-interactive bash
// shell, the same way cmdrun/bashexec hand commands to /bin/bash, but
// via -lc so the caller's single command string is parsed by bash
// itself rather than split into argv by us.
func buildCommand(ctx context.Context, command string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "/bin/bash", "-lc", command)
	// New process group so killProcessTree can signal the whole tree,
	// not just the direct bash child, mirroring bashexec's use of
	// SysProcAttr to bind child lifecycle to the parent.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}

// killProcessTree signals the command's entire process group.
func killProcessTree(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
