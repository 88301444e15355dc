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
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTCPPacket(t *testing.T, syn, ack bool) gopacket.Packet {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xAA, 0xBB},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip4 := &layers.IPv4{
		Version:  4,
		TTL:      64,
		SrcIP:    net.ParseIP("10.0.0.1").To4(),
		DstIP:    net.ParseIP("10.0.0.2").To4(),
		Protocol: layers.IPProtocolTCP,
	}
	tcp := &layers.TCP{
		SrcPort: 51234,
		DstPort: 443,
		SYN:     syn,
		ACK:     ack,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip4))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip4, tcp))

	return gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
}

func TestSummarizeExtractsTCPFields(t *testing.T) {
	packet := buildTCPPacket(t, true, false)
	rec := summarize(packet, 1, time.Unix(0, 0).UTC())

	assert.Equal(t, "10.0.0.1", rec.Source)
	assert.Equal(t, "10.0.0.2", rec.Destination)
	assert.Equal(t, "TCP", rec.Protocol)
	require.NotNil(t, rec.SPort)
	require.NotNil(t, rec.DPort)
	assert.Equal(t, 51234, *rec.SPort)
	assert.Equal(t, 443, *rec.DPort)
	assert.Equal(t, "SYN", rec.Info)
	assert.Equal(t, "00:11:22:33:44:55", rec.SMac)
}

func TestSummarizeRendersMultipleActiveTCPFlags(t *testing.T) {
	packet := buildTCPPacket(t, true, true)
	rec := summarize(packet, 1, time.Unix(0, 0).UTC())
	assert.Equal(t, "SYN ACK", rec.Info)
}

func TestSummarizeRendersUDPDescriptor(t *testing.T) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip4 := &layers.IPv4{
		Version:  4,
		TTL:      64,
		SrcIP:    net.ParseIP("10.0.0.1").To4(),
		DstIP:    net.ParseIP("10.0.0.2").To4(),
		Protocol: layers.IPProtocolUDP,
	}
	udp := &layers.UDP{SrcPort: 53000, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip4))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip4, udp))
	packet := gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)

	rec := summarize(packet, 1, time.Unix(0, 0).UTC())
	assert.Equal(t, "UDP", rec.Protocol)
	assert.Contains(t, rec.Info, "UDP")
}

func TestTCPFlagsInfoRendersNoFlagsAsEmptyString(t *testing.T) {
	assert.Equal(t, "", tcpFlagsInfo(&layers.TCP{}))
}

func TestTCPFlagsInfoRendersAllFlagsInFixedOrder(t *testing.T) {
	tcp := &layers.TCP{SYN: true, ACK: true, PSH: true, RST: true, FIN: true, URG: true, ECE: true, CWR: true, NS: true}
	assert.Equal(t, "SYN ACK PSH RST FIN URG ECE CWR NS", tcpFlagsInfo(tcp))
}
