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

package pcap

import (
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

// CaptureHandle is an open, live capture on one device.
type CaptureHandle interface {
	// Packets returns the channel of arriving packets.
	Packets() <-chan gopacket.Packet
	// SetBPFFilter compiles and installs a capture filter.
	SetBPFFilter(expr string) error
	// Close releases the underlying capture resources.
	Close()
}

// CaptureAdapter is the seam between the engine and whatever native
// capture library is actually linked in. Production binds to
// github.com/google/gopacket/pcap, which itself binds to libpcap; a
// host without that native library produces an error from Devices or
// OpenLive, which the engine turns into a logged-once unavailable
// status rather than a panic.
type CaptureAdapter interface {
	Devices() ([]Device, error)
	OpenLive(device string, snapLen int32, promiscuous bool, timeout time.Duration) (CaptureHandle, error)
}

// gopacketAdapter is the production CaptureAdapter, backed by libpcap
// through gopacket/pcap.
type gopacketAdapter struct{}

// NewGopacketAdapter constructs the production CaptureAdapter.
func NewGopacketAdapter() CaptureAdapter { return gopacketAdapter{} }

func (gopacketAdapter) Devices() ([]Device, error) {
	ifaces, err := pcap.FindAllDevs()
	if err != nil {
		return nil, err
	}
	devices := make([]Device, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs := make([]string, 0, len(iface.Addresses))
		for _, a := range iface.Addresses {
			if a.IP != nil {
				addrs = append(addrs, a.IP.String())
			}
		}
		devices = append(devices, Device{
			Name:        iface.Name,
			Description: iface.Description,
			Addresses:   addrs,
		})
	}
	return devices, nil
}

func (gopacketAdapter) OpenLive(device string, snapLen int32, promiscuous bool, timeout time.Duration) (CaptureHandle, error) {
	handle, err := pcap.OpenLive(device, snapLen, promiscuous, timeout)
	if err != nil {
		return nil, err
	}
	return &gopacketHandle{handle: handle}, nil
}

// gopacketHandle adapts *pcap.Handle to CaptureHandle.
type gopacketHandle struct {
	handle *pcap.Handle
}

func (h *gopacketHandle) Packets() <-chan gopacket.Packet {
	return gopacket.NewPacketSource(h.handle, h.handle.LinkType()).Packets()
}

func (h *gopacketHandle) SetBPFFilter(expr string) error {
	return h.handle.SetBPFFilter(expr)
}

func (h *gopacketHandle) Close() {
	h.handle.Close()
}
