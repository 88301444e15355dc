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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raulshma/manlab/discovery"
	"github.com/raulshma/manlab/scanner"
)

func TestBuildCreatesRootSubnetHostChain(t *testing.T) {
	hosts := []scanner.DiscoveredHost{
		{IPAddress: "192.168.1.10", Hostname: "nas.local"},
		{IPAddress: "192.168.1.11"},
	}
	g := Build(hosts, nil)

	var rootCount, subnetCount, hostCount int
	for _, n := range g.Nodes {
		switch n.Type {
		case NodeRoot:
			rootCount++
		case NodeSubnet:
			subnetCount++
			assert.Equal(t, "192.168.1.0/24", n.Label)
		case NodeHost:
			hostCount++
		}
	}
	assert.Equal(t, 1, rootCount)
	assert.Equal(t, 1, subnetCount)
	assert.Equal(t, 2, hostCount)
}

func TestBuildMarksUnmatchedMdnsDeviceAsDiscoveryOnly(t *testing.T) {
	hosts := []scanner.DiscoveredHost{{IPAddress: "192.168.1.10"}}
	scan := &discovery.DiscoveryScanResult{
		MdnsDevices: []discovery.MdnsDevice{
			{ServiceType: "_airplay._tcp", InstanceName: "Bedroom TV", IPAddress: "192.168.1.99"},
		},
	}
	g := Build(hosts, scan)

	var found bool
	for _, n := range g.Nodes {
		if n.Type == NodeHost && n.IPAddress == "192.168.1.99" {
			found = true
			assert.True(t, n.DiscoveryOnly)
		}
	}
	require.True(t, found, "discovery-only host should be added")
}

func TestBuildDoesNotDuplicateHostAlreadyInScanResults(t *testing.T) {
	hosts := []scanner.DiscoveredHost{{IPAddress: "192.168.1.10", Hostname: "printer.local"}}
	scan := &discovery.DiscoveryScanResult{
		MdnsDevices: []discovery.MdnsDevice{
			{ServiceType: "_ipp._tcp", InstanceName: "Printer", IPAddress: "192.168.1.10"},
		},
	}
	g := Build(hosts, scan)

	hostNodes := 0
	for _, n := range g.Nodes {
		if n.Type == NodeHost {
			hostNodes++
			assert.False(t, n.DiscoveryOnly)
		}
	}
	assert.Equal(t, 1, hostNodes)
}

func TestSummarizeCountsEachNodeKind(t *testing.T) {
	hosts := []scanner.DiscoveredHost{
		{IPAddress: "10.0.0.1"},
		{IPAddress: "10.0.1.1"},
	}
	scan := &discovery.DiscoveryScanResult{
		MdnsDevices: []discovery.MdnsDevice{{ServiceType: "_http._tcp", InstanceName: "a", IPAddress: "10.0.0.1"}},
		UpnpDevices: []discovery.UpnpDevice{{USN: "uuid:1", IPAddress: "10.0.2.5"}},
	}
	g := Build(hosts, scan)
	summary := Summarize(g)

	assert.Equal(t, 3, summary.Subnets)
	assert.Equal(t, 3, summary.Hosts)
	assert.Equal(t, 1, summary.DiscoveryOnly)
	assert.Equal(t, 1, summary.MdnsServices)
	assert.Equal(t, 1, summary.UpnpDevices)
}
