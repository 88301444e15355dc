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
	"fmt"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// summarize reduces one captured packet to a Record. Layers the
// packet doesn't have are simply left at their zero value: a
// non-IP packet still yields a Record with Ethernet addresses and
// Length populated.
func summarize(packet gopacket.Packet, id uint64, capturedAt time.Time) Record {
	rec := Record{
		ID:            id,
		CapturedAtUTC: capturedAt,
		Length:        len(packet.Data()),
	}

	if eth, ok := packet.Layer(layers.LayerTypeEthernet).(*layers.Ethernet); ok {
		rec.SMac = eth.SrcMAC.String()
		rec.DMac = eth.DstMAC.String()
	}

	if ip4, ok := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok {
		rec.Source = ip4.SrcIP.String()
		rec.Destination = ip4.DstIP.String()
		rec.Protocol = ip4.Protocol.String()
	}

	switch {
	case packet.Layer(layers.LayerTypeTCP) != nil:
		tcp := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
		rec.Protocol = "TCP"
		sPort, dPort := int(tcp.SrcPort), int(tcp.DstPort)
		rec.SPort, rec.DPort = &sPort, &dPort
		rec.Info = tcpFlagsInfo(tcp)
	case packet.Layer(layers.LayerTypeUDP) != nil:
		udp := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		rec.Protocol = "UDP"
		sPort, dPort := int(udp.SrcPort), int(udp.DstPort)
		rec.SPort, rec.DPort = &sPort, &dPort
		rec.Info = fmt.Sprintf("UDP len=%d", udp.Length)
	case packet.Layer(layers.LayerTypeICMPv4) != nil:
		icmp := packet.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4)
		rec.Protocol = "ICMP"
		rec.Info = icmp.TypeCode.String()
	}

	return rec
}

// tcpFlagsInfo renders the active TCP flags in a fixed order: SYN,
// ACK, PSH, RST, FIN, URG, ECE, CWR, NS.
func tcpFlagsInfo(tcp *layers.TCP) string {
	var flags []string
	if tcp.SYN {
		flags = append(flags, "SYN")
	}
	if tcp.ACK {
		flags = append(flags, "ACK")
	}
	if tcp.PSH {
		flags = append(flags, "PSH")
	}
	if tcp.RST {
		flags = append(flags, "RST")
	}
	if tcp.FIN {
		flags = append(flags, "FIN")
	}
	if tcp.URG {
		flags = append(flags, "URG")
	}
	if tcp.ECE {
		flags = append(flags, "ECE")
	}
	if tcp.CWR {
		flags = append(flags, "CWR")
	}
	if tcp.NS {
		flags = append(flags, "NS")
	}
	if len(flags) == 0 {
		return ""
	}
	return strings.Join(flags, " ")
}
