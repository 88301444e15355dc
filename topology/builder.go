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

package topology

import (
	"fmt"
	"net"
	"strings"

	"github.com/raulshma/manlab/discovery"
	"github.com/raulshma/manlab/scanner"
)

const rootNodeID = "root"
const rootNodeLabel = "Local Network"

// Build composes a SubnetScan host list and a DiscoveryEngine scan
// result into a directed graph: root → subnet (one per /24 derived
// from each host's IP) → host → service. An mDNS or UPnP device whose
// IP doesn't match any scanned host still gets a host node, marked
// DiscoveryOnly, so discovery-only devices are never silently
// dropped.
func Build(hosts []scanner.DiscoveredHost, scan *discovery.DiscoveryScanResult) Graph {
	var g Graph
	g.Nodes = append(g.Nodes, Node{ID: rootNodeID, Type: NodeRoot, Label: rootNodeLabel})

	subnetIDs := make(map[string]bool)
	hostIDs := make(map[string]bool)

	addSubnet := func(ip string) string {
		subnet := subnetOf(ip)
		id := "subnet:" + subnet
		if !subnetIDs[subnet] {
			subnetIDs[subnet] = true
			g.Nodes = append(g.Nodes, Node{ID: id, Type: NodeSubnet, Label: subnet})
			g.Edges = append(g.Edges, Edge{From: rootNodeID, To: id, Label: EdgeContains})
		}
		return id
	}

	addHost := func(ip, label string, discoveryOnly bool) string {
		id := "host:" + ip
		if hostIDs[ip] {
			return id
		}
		hostIDs[ip] = true
		subnetID := addSubnet(ip)
		if label == "" {
			label = ip
		}
		g.Nodes = append(g.Nodes, Node{ID: id, Type: NodeHost, Label: label, IPAddress: ip, DiscoveryOnly: discoveryOnly})
		g.Edges = append(g.Edges, Edge{From: subnetID, To: id, Label: EdgeContains})
		return id
	}

	for _, host := range hosts {
		label := host.Hostname
		if label == "" {
			label = host.IPAddress
		}
		addHost(host.IPAddress, label, false)
	}

	if scan != nil {
		for _, dev := range scan.MdnsDevices {
			var hostID string
			if dev.IPAddress != "" {
				isNew := !hostIDs[dev.IPAddress]
				hostID = addHost(dev.IPAddress, dev.Hostname, isNew)
			}
			svcID := fmt.Sprintf("service:mdns:%s:%s", dev.ServiceType, dev.InstanceName)
			g.Nodes = append(g.Nodes, Node{ID: svcID, Type: NodeService, Label: serviceLabel(dev)})
			if hostID != "" {
				g.Edges = append(g.Edges, Edge{From: hostID, To: svcID, Label: EdgeService})
			}
		}

		for _, dev := range scan.UpnpDevices {
			var hostID string
			if dev.IPAddress != "" {
				isNew := !hostIDs[dev.IPAddress]
				hostID = addHost(dev.IPAddress, dev.Server, isNew)
			}
			svcID := "service:upnp:" + dev.USN
			g.Nodes = append(g.Nodes, Node{ID: svcID, Type: NodeService, Label: dev.SearchTarget})
			if hostID != "" {
				g.Edges = append(g.Edges, Edge{From: hostID, To: svcID, Label: EdgeService})
			}
		}
	}

	return g
}

// Summarize tallies a built Graph's node kinds.
func Summarize(g Graph) Summary {
	var s Summary
	subnets := make(map[string]bool)
	for _, n := range g.Nodes {
		switch n.Type {
		case NodeSubnet:
			subnets[n.ID] = true
		case NodeHost:
			s.Hosts++
			if n.DiscoveryOnly {
				s.DiscoveryOnly++
			}
		case NodeService:
			if strings.HasPrefix(n.ID, "service:mdns:") {
				s.MdnsServices++
			} else if strings.HasPrefix(n.ID, "service:upnp:") {
				s.UpnpDevices++
			}
		}
	}
	s.Subnets = len(subnets)
	return s
}

func serviceLabel(dev discovery.MdnsDevice) string {
	if dev.InstanceName != "" {
		return dev.InstanceName
	}
	return dev.ServiceType
}

// subnetOf derives the /24 label ("10.0.1.0/24" form) an IP belongs to;
// malformed or non-IPv4 addresses fall back to the literal string so
// they still land in a (degenerate) subnet bucket rather than being
// dropped.
func subnetOf(ip string) string {
	parsed := net.ParseIP(ip)
	v4 := parsed.To4()
	if v4 == nil {
		return ip
	}
	return fmt.Sprintf("%d.%d.%d.0/24", v4[0], v4[1], v4[2])
}
