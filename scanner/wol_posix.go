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

package scanner

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// listenBroadcastUDP opens an unbound UDP socket with SO_BROADCAST
// set, so WakeOnLan's WriteTo to a broadcast destination succeeds
// instead of failing with EACCES.
func listenBroadcastUDP() (net.PacketConn, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var setErr error
			if ctrlErr := c.Control(func(fd uintptr) {
				setErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
			}); ctrlErr != nil {
				return ctrlErr
			}
			return setErr
		},
	}
	return lc.ListenPacket(context.Background(), "udp4", "0.0.0.0:0")
}
