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
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHandle is a CaptureHandle test double that replays a fixed set
// of packets and never produces more until Close.
type fakeHandle struct {
	packets chan gopacket.Packet
	closed  chan struct{}
}

func newFakeHandle(n int) *fakeHandle {
	h := &fakeHandle{packets: make(chan gopacket.Packet, n), closed: make(chan struct{})}
	for i := 0; i < n; i++ {
		h.packets <- samplePacket(i)
	}
	return h
}

func samplePacket(i int) gopacket.Packet {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 0, 0, 0, 0, byte(i)},
		DstMAC:       net.HardwareAddr{0, 0, 0, 0, 0, 1},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip4 := &layers.IPv4{
		Version: 4, TTL: 64,
		SrcIP: net.ParseIP("10.0.0.1").To4(), DstIP: net.ParseIP("10.0.0.2").To4(),
		Protocol: layers.IPProtocolUDP,
	}
	udp := &layers.UDP{SrcPort: 1000, DstPort: 2000}
	_ = udp.SetNetworkLayerForChecksum(ip4)
	buf := gopacket.NewSerializeBuffer()
	_ = gopacket.SerializeLayers(buf, gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}, eth, ip4, udp)
	return gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
}

func (h *fakeHandle) Packets() <-chan gopacket.Packet { return h.packets }
func (h *fakeHandle) SetBPFFilter(string) error        { return nil }
func (h *fakeHandle) Close() {
	select {
	case <-h.closed:
	default:
		close(h.closed)
	}
}

type fakeAdapter struct {
	devices    []Device
	devicesErr error
	handle     *fakeHandle
	openErr    error
}

func (a *fakeAdapter) Devices() ([]Device, error) { return a.devices, a.devicesErr }
func (a *fakeAdapter) OpenLive(device string, snapLen int32, promiscuous bool, timeout time.Duration) (CaptureHandle, error) {
	if a.openErr != nil {
		return nil, a.openErr
	}
	return a.handle, nil
}

func TestStartCaptureRejectsConcurrentCapture(t *testing.T) {
	e := New(WithAdapter(&fakeAdapter{handle: newFakeHandle(1)}), WithBroadcastSchedule(10*time.Millisecond, 10))
	require.NoError(t, e.StartCapture(Options{Device: "eth0"}))
	defer e.StopCapture()

	assert.ErrorIs(t, e.StartCapture(Options{Device: "eth0"}), ErrCaptureInProgress)
}

func TestStartCaptureSummarizesIntoBuffer(t *testing.T) {
	e := New(
		WithAdapter(&fakeAdapter{handle: newFakeHandle(5)}),
		WithBroadcastSchedule(10*time.Millisecond, 10),
	)
	require.NoError(t, e.StartCapture(Options{Device: "eth0"}))

	require.Eventually(t, func() bool {
		return e.BufferedCount() == 5
	}, 2*time.Second, 10*time.Millisecond)

	e.StopCapture()
	assert.False(t, e.IsCapturing())
}

func TestDevicesReturnsUnavailableErrorOnNativeFailure(t *testing.T) {
	e := New(WithAdapter(&fakeAdapter{devicesErr: errors.New("libpcap not found")}))
	_, err := e.Devices()
	var unavailable *ErrCaptureUnavailable
	assert.ErrorAs(t, err, &unavailable)
}

func TestSubscribeReceivesBatchedBroadcast(t *testing.T) {
	e := New(
		WithAdapter(&fakeAdapter{handle: newFakeHandle(3)}),
		WithBroadcastSchedule(10*time.Millisecond, 10),
	)
	ch, unsub := e.Subscribe()
	defer unsub()

	require.NoError(t, e.StartCapture(Options{Device: "eth0"}))
	defer e.StopCapture()

	select {
	case batch := <-ch:
		assert.NotEmpty(t, batch)
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive a broadcast batch")
	}
}
