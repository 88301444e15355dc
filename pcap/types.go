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

// Package pcap implements live packet capture: device enumeration,
// a single active capture at a time, Ethernet/IPv4/TCP/UDP/ICMP
// summarization, a bounded ring of recent packets, and a sampled,
// batched broadcast to subscribers. The capture library itself is a
// pluggable CaptureAdapter so the engine degrades to a clear
// "capture unavailable" status instead of crashing on a host missing
// the native libpcap dependency.
package pcap

import "time"

// Device describes one capturable network interface.
type Device struct {
	Name        string
	Description string
	Addresses   []string
}

// Record is PacketCaptureRecord: the summarized shape every captured
// packet is reduced to before buffering and broadcast.
type Record struct {
	ID           uint64    `json:"id"`
	CapturedAtUTC time.Time `json:"capturedAtUtc"`
	Source       string    `json:"source,omitempty"`
	Destination  string    `json:"destination,omitempty"`
	Protocol     string    `json:"protocol,omitempty"`
	Length       int       `json:"length"`
	SPort        *int      `json:"sPort,omitempty"`
	DPort        *int      `json:"dPort,omitempty"`
	SMac         string    `json:"sMac,omitempty"`
	DMac         string    `json:"dMac,omitempty"`
	Info         string    `json:"info,omitempty"`
}

// Options configures a single capture session.
type Options struct {
	Device string
	// SnapLen is the maximum number of bytes to capture per packet.
	// Zero means DefaultSnapLen.
	SnapLen int32
	// Promiscuous puts the interface into promiscuous mode if true.
	Promiscuous bool
	// BPFFilter, if non-empty, is compiled and applied to the handle.
	BPFFilter string
	// BroadcastSampleEvery sends every Nth captured packet to the
	// sampled broadcast channel. Zero or one means every packet.
	BroadcastSampleEvery int
}

func (o Options) withDefaults() Options {
	if o.SnapLen <= 0 {
		o.SnapLen = DefaultSnapLen
	}
	if o.BroadcastSampleEvery <= 0 {
		o.BroadcastSampleEvery = 1
	}
	return o
}

const (
	// DefaultSnapLen is large enough to capture whole frames, payload
	// included, not just the Ethernet through TCP/UDP/ICMP headers.
	DefaultSnapLen = 262144
	// readTimeout is the capture handle's own read timeout, letting
	// the arrival loop notice a Stop without waiting forever on a
	// quiet interface.
	readTimeout = 1 * time.Second
	// DefaultMaxBufferedPackets sizes the capture ring buffer.
	DefaultMaxBufferedPackets = 5000
	// sampledChanCapacity is the bounded, drop-newest channel fed by
	// sampled packet arrivals and drained by the periodic broadcaster.
	sampledChanCapacity = 1000
	// DefaultBroadcastInterval and DefaultBroadcastBatchSize govern
	// the periodic broadcaster.
	DefaultBroadcastInterval  = 250 * time.Millisecond
	DefaultBroadcastBatchSize = 100
)
