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

package scanner

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultWolPort is the UDP port Wake-on-LAN magic packets are
// conventionally broadcast to.
const DefaultWolPort = 9

// DefaultWolBroadcast is used when the caller doesn't supply a
// subnet-specific broadcast address.
const DefaultWolBroadcast = "255.255.255.255"

// WakeOnLan sends a Wake-on-LAN magic packet for the given MAC address
// to broadcast:port. mac may be written as "AA:BB:CC:DD:EE:FF",
// "AA-BB-CC-DD-EE-FF", or "AABB.CCDD.EEFF". If broadcast is empty,
// DefaultWolBroadcast is used; if port is 0, DefaultWolPort is used.
//
// A plain net.Dial'd UDP socket refuses to sendto a broadcast
// destination (EACCES on Linux) unless SO_BROADCAST has been set on
// it first, so the send uses a platform-specific
// listenBroadcastUDP that enables the option before the packet goes
// out.
func (e *Engine) WakeOnLan(mac string, broadcast string, port int) error {
	packet, err := magicPacket(mac)
	if err != nil {
		return err
	}
	if broadcast == "" {
		broadcast = DefaultWolBroadcast
	}
	if port == 0 {
		port = DefaultWolPort
	}

	dst, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(broadcast, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("resolve broadcast address: %w", err)
	}

	conn, err := listenBroadcastUDP()
	if err != nil {
		return fmt.Errorf("open broadcast socket: %w", err)
	}
	defer conn.Close()

	if _, err := conn.WriteTo(packet, dst); err != nil {
		return fmt.Errorf("send magic packet: %w", err)
	}
	return nil
}

// magicPacket builds the 102-byte Wake-on-LAN payload: six 0xFF bytes
// followed by the target MAC repeated sixteen times.
func magicPacket(mac string) ([]byte, error) {
	hw, err := parseMAC(mac)
	if err != nil {
		return nil, err
	}

	packet := make([]byte, 0, 102)
	for i := 0; i < 6; i++ {
		packet = append(packet, 0xFF)
	}
	for i := 0; i < 16; i++ {
		packet = append(packet, hw...)
	}
	return packet, nil
}

// parseMAC accepts colon-, hyphen-, and dot-separated MAC notations.
func parseMAC(mac string) (net.HardwareAddr, error) {
	normalized := mac
	if strings.Contains(mac, ".") && !strings.Contains(mac, ":") && !strings.Contains(mac, "-") {
		hex := strings.ReplaceAll(mac, ".", "")
		if len(hex) != 12 {
			return nil, fmt.Errorf("invalid MAC address %q", mac)
		}
		var parts []string
		for i := 0; i < 12; i += 2 {
			parts = append(parts, hex[i:i+2])
		}
		normalized = strings.Join(parts, ":")
	}

	hw, err := net.ParseMAC(normalized)
	if err != nil {
		return nil, fmt.Errorf("invalid MAC address %q: %w", mac, err)
	}
	if len(hw) != 6 {
		return nil, fmt.Errorf("invalid MAC address %q: expected 6 octets, got %d", mac, len(hw))
	}
	return hw, nil
}
