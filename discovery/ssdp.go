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

package discovery

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"time"
)

// ssdpMulticastAddr is the UPnP SSDP multicast group and port every
// device on the LAN listens on for discovery requests.
const ssdpMulticastAddr = "239.255.255.250:1900"

const ssdpSearchTarget = "ssdp:all"

// scanSSDP broadcasts an M-SEARCH and collects responses until ctx is
// done, de-duplicating by USN.
func (e *Engine) scanSSDP(ctx context.Context, onDevice func(UpnpDevice)) []UpnpDevice {
	addr, err := net.ResolveUDPAddr("udp4", ssdpMulticastAddr)
	if err != nil {
		plog.Warningf("ssdp: resolve multicast addr: %v", err)
		return nil
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		plog.Warningf("ssdp unavailable, skipping scan: %v", err)
		return nil
	}
	defer conn.Close()

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline {
		_ = conn.SetDeadline(deadline)
	}

	search := ssdpSearchRequest()
	if _, err := conn.WriteToUDP([]byte(search), addr); err != nil {
		plog.Warningf("ssdp: send M-SEARCH: %v", err)
		return nil
	}

	var mu sync.Mutex
	seen := make(map[string]bool)
	var devices []UpnpDevice

	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			result := devices
			mu.Unlock()
			return result
		default:
		}

		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			return devices
		}

		dev, ok := parseSSDPResponse(buf[:n], peer)
		if !ok {
			continue
		}

		mu.Lock()
		isNew := !seen[dev.USN]
		if isNew {
			seen[dev.USN] = true
			devices = append(devices, dev)
		}
		mu.Unlock()

		if isNew && onDevice != nil {
			onDevice(dev)
		}
	}
}

func ssdpSearchRequest() string {
	return fmt.Sprintf("M-SEARCH * HTTP/1.1\r\n"+
		"HOST: %s\r\n"+
		"MAN: \"ssdp:discover\"\r\n"+
		"MX: 3\r\n"+
		"ST: %s\r\n\r\n", ssdpMulticastAddr, ssdpSearchTarget)
}

// parseSSDPResponse reads the HTTP-like SSDP response headers off an
// M-SEARCH reply datagram.
func parseSSDPResponse(data []byte, peer *net.UDPAddr) (UpnpDevice, bool) {
	reader := bufio.NewReader(strings.NewReader(string(data)))
	tp := textproto.NewReader(reader)

	statusLine, err := tp.ReadLine()
	if err != nil || !strings.HasPrefix(statusLine, "HTTP/1.1") {
		return UpnpDevice{}, false
	}

	header, err := tp.ReadMIMEHeader()
	if err != nil && len(header) == 0 {
		return UpnpDevice{}, false
	}

	usn := header.Get("USN")
	if usn == "" {
		return UpnpDevice{}, false
	}

	return UpnpDevice{
		USN:          usn,
		SearchTarget: header.Get("ST"),
		Location:     header.Get("LOCATION"),
		Server:       header.Get("SERVER"),
		IPAddress:    peer.IP.String(),
		DiscoveredAt: time.Now(),
	}, true
}
