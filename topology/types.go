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

// Package topology composes a SubnetScan sweep with a DiscoveryEngine
// scan into one directed graph: root network, subnets, hosts, and the
// services/devices attached to each host.
package topology

// NodeType distinguishes the four node kinds Build ever produces.
type NodeType string

const (
	NodeRoot    NodeType = "root"
	NodeSubnet  NodeType = "subnet"
	NodeHost    NodeType = "host"
	NodeService NodeType = "service"
)

// EdgeLabel distinguishes containment from service-attachment edges.
type EdgeLabel string

const (
	EdgeContains EdgeLabel = "contains"
	EdgeService  EdgeLabel = "service"
)

// Node is one vertex in the topology graph.
type Node struct {
	ID           string
	Type         NodeType
	Label        string
	IPAddress    string
	DiscoveryOnly bool
}

// Edge is one directed edge in the topology graph.
type Edge struct {
	From  string
	To    string
	Label EdgeLabel
}

// Graph is the composed topology: a root node, every subnet/host/
// service node beneath it, and the edges connecting them.
type Graph struct {
	Nodes []Node
	Edges []Edge
}

// Summary tallies the graph's node kinds for dashboard display.
type Summary struct {
	Subnets         int
	Hosts           int
	DiscoveryOnly   int
	MdnsServices    int
	UpnpDevices     int
}
