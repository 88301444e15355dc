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
	"bufio"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// AttachLocal connects the operator's own console to session,
// printing output as it streams in and forwarding each entered line
// as input. It is the local, PTY-less counterpart of
// platform/util.go's Manhole, which instead raw-modes the operator's
// terminal over an SSH session to a remote Machine; here the shell is
// already local to the agent process, so AttachLocal only needs to
// arbitrate between a local reader goroutine and the session's own
// output callback. If stdin isn't a terminal, AttachLocal returns
// immediately with a nil error, matching Manhole's behavior.
func AttachLocal(s *Session, out io.Writer) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("terminal: entering raw mode: %w", err)
	}
	defer func() { _ = term.Restore(fd, state) }()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Split(bufio.ScanRunes)
	inputDone := make(chan struct{})
	go func() {
		defer close(inputDone)
		for scanner.Scan() {
			if err := s.SendInput(scanner.Text()); err != nil {
				return
			}
		}
	}()

	<-s.done
	fmt.Fprintf(out, "\r\nsession closed: %s\r\n", s.Reason())
	return nil
}
