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

// Package discovery runs mDNS and SSDP listeners for a fixed window
// and reports every distinct device or service seen, for
// TopologyBuilder to graph alongside SubnetScan's ping sweep.
package discovery

import "time"

// MdnsDevice is one mDNS/DNS-SD service instance observed during a
// scan.
type MdnsDevice struct {
	ServiceType  string
	InstanceName string
	Hostname     string
	IPAddress    string
	Port         int
	TxtRecords   map[string]string
	DiscoveredAt time.Time
}

// Key uniquely identifies a device for de-duplication across repeated
// mDNS announcements.
func (d MdnsDevice) Key() string {
	return d.ServiceType + "|" + d.InstanceName
}

// UpnpDevice is one SSDP-advertised device or service.
type UpnpDevice struct {
	USN          string
	SearchTarget string
	Location     string
	Server       string
	IPAddress    string
	DiscoveredAt time.Time
}

// DiscoveryScanResult aggregates everything seen across one scan
// window.
type DiscoveryScanResult struct {
	MdnsDevices  []MdnsDevice
	UpnpDevices  []UpnpDevice
	StartedAt    time.Time
	DurationMs   int64
	TypesScanned int
}
