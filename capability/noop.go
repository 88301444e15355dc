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

package capability

import "net"

// NoopArp never resolves anything; used on platforms with no neighbor
// table access, or when the caller has opted out of ARP enrichment.
type NoopArp struct{}

func (NoopArp) Lookup(net.IP) (string, bool, error)  { return "", false, nil }
func (NoopArp) Table() (map[string]string, error)    { return map[string]string{}, nil }
func (NoopArp) Add(net.IP, string) error              { return &ErrUnsupported{"arp.noop", "Add"} }
func (NoopArp) Remove(net.IP) error                   { return &ErrUnsupported{"arp.noop", "Remove"} }
func (NoopArp) Flush() error                          { return &ErrUnsupported{"arp.noop", "Flush"} }

// NoopOui never resolves a vendor; used when no OUI database was
// wired in.
type NoopOui struct{}

func (NoopOui) Lookup(string) (string, bool) { return "", false }

// NoopGeo never resolves geo metadata; used when no MMDB reader was
// wired in.
type NoopGeo struct{}

func (NoopGeo) Lookup(net.IP) (GeoInfo, bool, error) { return GeoInfo{}, false, nil }

// NoopWifi reports no WiFi-capable adapters; used on platforms
// without wireless tooling, or headless servers.
type NoopWifi struct{}

func (NoopWifi) ListAdapters() ([]WifiAdapterInfo, error) { return nil, nil }
func (NoopWifi) Scan(string) ([]WifiNetwork, error)       { return nil, nil }
