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

// Command manlab-agent is ManLab's agent binary: it hosts the command
// execution substrate (AgentDispatcher, ScriptRunner, TerminalSession,
// ShellExecutor/UpdateExecutor) and exposes each as a cobra
// subcommand that reads its payload from stdin and streams newline-
// delimited JSON status frames to stdout. Grounded on
// cmd/kolet/kolet.go: kolet is invoked once per registered test name
// over SSH by the harness and prints its result; manlab-agent is
// invoked once per command type by whatever owns the transport
// ("hub") connection to the server, an external collaborator per
// spec.md §1.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/raulshma/manlab/agent/dispatch"
	"github.com/raulshma/manlab/agent/script"
	"github.com/raulshma/manlab/agent/shell"
	"github.com/raulshma/manlab/agent/terminal"
	"github.com/raulshma/manlab/network"
)

var (
	log = logrus.WithField("component", "manlab-agent")

	logLevel  string
	useDocker bool
	root      = &cobra.Command{
		Use:          "manlab-agent",
		Short:        "ManLab agent: command execution substrate",
		SilenceUsage: true,
	}
)

func main() {
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logrus.SetLevel(level)
		return nil
	}

	root.AddCommand(dispatchCmd(), scriptCmd(), shellCmd(), shellRemoteCmd(), updateCmd(), terminalCmd())

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

// emitNDJSON writes v to stdout followed by a newline, flushing
// immediately so a supervising hub process can stream frames as they
// arrive rather than waiting for this process to exit.
func emitNDJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(v); err != nil {
		log.Warnf("failed to encode output frame: %v", err)
	}
}

func readAllStdin() (json.RawMessage, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func newDispatcher() *dispatch.Dispatcher {
	var docker dispatch.DockerAdapter = dispatch.NoopDocker{}
	if useDocker {
		docker = dispatch.CLIDocker{}
	}
	return dispatch.New(docker, shell.NewUpdateExecutor())
}

// dispatchCmd routes one CommandEnvelope (type + JSON payload on
// stdin) through AgentDispatcher, the way kolet's registerTestMap
// looks up one registered function by the name given on argv.
func dispatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispatch <type>",
		Short: "Route one command (docker.*, system.update) by type, payload on stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readAllStdin()
			if err != nil {
				return fmt.Errorf("reading payload: %w", err)
			}
			d := newDispatcher()
			d.Dispatch(cmd.Context(), uuid.New(), args[0], payload, func(u dispatch.StatusUpdate) {
				emitNDJSON(u)
			})
			return nil
		},
	}
	cmd.Flags().BoolVar(&useDocker, "docker", false, "shell out to the docker CLI instead of reporting docker.* as unavailable")
	return cmd
}

// scriptCmd materializes stdin to a temp file and runs it under
// ScriptRunner, streaming chunked output frames.
func scriptCmd() *cobra.Command {
	var shellName string
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Run a script (read from stdin) under ScriptRunner",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("reading script body: %w", err)
			}

			run := script.Run{
				CommandID: uuid.New(),
				RunID:     uuid.New(),
				ScriptID:  uuid.New(),
				Shell:     script.Shell(shellName),
				Content:   string(content),
			}

			runner := script.New()
			result, err := runner.Run(cmd.Context(), run,
				func(f script.OutputFrame) { emitNDJSON(f) },
				func(f script.InfoFrame) { emitNDJSON(f) },
			)
			if err != nil {
				log.Warnf("script run finished with error: %v", err)
			}
			emitNDJSON(result)
			return nil
		},
	}
	cmd.Flags().StringVar(&shellName, "shell", string(script.ShellBash), "interpreter: bash or powershell")
	return cmd
}

// shellCmd runs a single bounded one-shot command via ShellExecutor.
func shellCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell <command>",
		Short: "Run one bounded, merged-output command via ShellExecutor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := shell.New().Run(cmd.Context(), args[0], shell.DefaultMaxOutputChars, shell.DefaultTimeout)
			if err != nil {
				log.Warnf("command finished with error: %v", err)
			}
			emitNDJSON(result)
			return nil
		},
	}
	return cmd
}

// shellRemoteCmd runs a single bounded one-shot command on a remote
// host over SSH, the fallback ShellExecutor offers for targets it
// can't spawn a local subprocess on. The SSH client dials through a
// RetryDialer so a target that's still booting or briefly
// unreachable doesn't fail the connection on the first attempt.
func shellRemoteCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "shell-remote <host> <command>",
		Short: "Run one bounded command on a remote host over SSH",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sshAgent, err := network.NewSSHAgent(network.NewRetryDialer())
			if err != nil {
				return fmt.Errorf("preparing ssh agent: %w", err)
			}
			if user != "" {
				sshAgent.User = user
			}
			result, err := shell.New().RunRemote(cmd.Context(), sshAgent, args[0], args[1], shell.DefaultMaxOutputChars, shell.DefaultTimeout)
			if err != nil {
				log.Warnf("remote command finished with error: %v", err)
			}
			emitNDJSON(result)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", `SSH user (defaults to "core")`)
	return cmd
}

// updateCmd dispatches system.update directly, without going through
// AgentDispatcher's routing layer, for direct invocation/testing.
func updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Run the host's native package manager update, streaming output",
		RunE: func(cmd *cobra.Command, args []string) error {
			exitCode, err := shell.NewUpdateExecutor().Run(cmd.Context(), func(line shell.StatusLine) {
				emitNDJSON(line)
			})
			if err != nil {
				return err
			}
			log.Infof("update exited with code %d", exitCode)
			return nil
		},
	}
}

// terminalCmd opens one interactive TerminalSession and attaches this
// process's own console to it via AttachLocal, the local-process
// counterpart of platform/util.go's Manhole.
func terminalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "terminal",
		Short: "Open an interactive shell session on the local terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := terminal.NewManager()
			s, err := mgr.Open(0, 0, func(chunk string, closed bool) {
				if chunk != "" {
					fmt.Fprint(os.Stdout, chunk)
				}
			})
			if err != nil {
				return err
			}
			return terminal.AttachLocal(s, os.Stdout)
		},
	}
}
