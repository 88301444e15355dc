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

package exec

import (
	"fmt"
	"io"

	"golang.org/x/crypto/ssh"

	"github.com/raulshma/manlab/network"
)

// SSHCmd adapts an *ssh.Session to the Cmd interface so callers that
// already speak in terms of system/exec.Cmd can run a command on a
// remote host instead of spawning a local subprocess, without caring
// which transport they got. It is the remote-exec fallback
// CommandViaSSH constructs; agent/shell's ShellExecutor is the primary
// caller, for targets it can only reach over SSH.
type SSHCmd struct {
	session  *ssh.Session
	cmdLine  string
	closer   func() error
	signaled bool
}

// NewSSHCmd wraps session to run cmdLine (already joined/escaped by
// the caller, e.g. via kballard/go-shellquote) when Start or Run is
// called. closer, if non-nil, is invoked once from Kill to additionally
// tear down the ssh.Client session was opened from; SSHCmd does not
// otherwise own that connection.
func NewSSHCmd(session *ssh.Session, cmdLine string, closer func() error) *SSHCmd {
	return &SSHCmd{session: session, cmdLine: cmdLine, closer: closer}
}

// CommandViaSSH dials host through agent (typically backed by a
// *network.RetryDialer, so a target that's still booting or briefly
// unreachable doesn't fail the first attempt) and opens a session
// ready to run cmdLine. The returned Cmd is not started until
// Run/Start is called, matching Command/CommandContext above.
func CommandViaSSH(agent *network.SSHAgent, host, cmdLine string) (*SSHCmd, error) {
	client, err := agent.NewClient(host)
	if err != nil {
		return nil, fmt.Errorf("exec: dialing %s over ssh: %w", host, err)
	}
	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("exec: opening ssh session on %s: %w", host, err)
	}
	return NewSSHCmd(session, cmdLine, client.Close), nil
}

func (c *SSHCmd) CombinedOutput() ([]byte, error) { return c.session.CombinedOutput(c.cmdLine) }
func (c *SSHCmd) Output() ([]byte, error)         { return c.session.Output(c.cmdLine) }
func (c *SSHCmd) Run() error                      { return c.session.Run(c.cmdLine) }
func (c *SSHCmd) Start() error                    { return c.session.Start(c.cmdLine) }
func (c *SSHCmd) Wait() error                     { return c.session.Wait() }

func (c *SSHCmd) StdinPipe() (io.WriteCloser, error) { return c.session.StdinPipe() }

// StdoutPipe wraps the session's io.Reader in a no-op Closer: unlike
// os/exec, ssh.Session has no separate per-pipe Close, only
// session.Close, which Kill already handles.
func (c *SSHCmd) StdoutPipe() (io.ReadCloser, error) {
	r, err := c.session.StdoutPipe()
	if err != nil {
		return nil, err
	}
	return io.NopCloser(r), nil
}

func (c *SSHCmd) StderrPipe() (io.ReadCloser, error) {
	r, err := c.session.StderrPipe()
	if err != nil {
		return nil, err
	}
	return io.NopCloser(r), nil
}

// Kill sends SIGKILL to the remote process and closes the session
// (and, via closer, the ssh.Client it came from). Unlike ExecCmd,
// there is no local process tree to reach: the remote shell owns its
// own children.
func (c *SSHCmd) Kill() error {
	c.signaled = true
	_ = c.session.Signal(ssh.SIGKILL)
	err := c.session.Close()
	if c.closer != nil {
		if cerr := c.closer(); err == nil {
			err = cerr
		}
	}
	return err
}

// Pid is always 0: the SSH protocol never exposes the remote
// process's PID to the client side of a session.
func (c *SSHCmd) Pid() int { return 0 }

// Signaled reports whether Kill has been called on this command.
func (c *SSHCmd) Signaled() bool { return c.signaled }
