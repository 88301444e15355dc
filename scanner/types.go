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

// Package scanner implements ManLab's network probing primitives:
// ping, subnet sweep with enrichment, parallel traceroute, port scan,
// DNS lookup/propagation, WHOIS referral chase, Wake-on-LAN, TLS
// certificate inspection, and public-IP discovery.
//
// Every probe reports failure as part of its result's status field
// rather than through an error return; only argument validation
// (malformed CIDR, malformed MAC, empty host) returns an error. This
// mirrors the teacher's update package, where `operation.Run` records
// failures into the result's `Status`/`Error` fields instead of
// propagating them to the caller of the outer update loop.
package scanner

import (
	"net"
	"time"
)

// ProbeStatus enumerates why a probe did or didn't succeed.
type ProbeStatus string

const (
	StatusSuccess    ProbeStatus = "Success"
	StatusTtlExpired ProbeStatus = "TtlExpired"
	StatusTimedOut   ProbeStatus = "TimedOut"
	StatusUnknown    ProbeStatus = "Unknown"
	StatusOtherError ProbeStatus = "OtherError"
)

// PingResult is the outcome of a single ICMP echo probe.
type PingResult struct {
	Address         string
	ResolvedAddress string
	Status          ProbeStatus
	RTT             time.Duration
	TTL             int
	Error           string
}

// DiscoveredHost is one host surfaced by SubnetScan, later enriched
// with reverse-DNS, ARP and OUI data. Immutable after emission:
// enrichment produces a new value, never a mutation visible to an
// already-emitted copy.
type DiscoveredHost struct {
	IPAddress     string
	RoundtripMs   int64
	Hostname      string
	MACAddress    string
	Vendor        string
	DeviceType    string
	DiscoveredAt  time.Time
}

// TracerouteHop is one hop of a traceroute run.
type TracerouteHop struct {
	HopNumber   int
	Address     string
	Hostname    string
	RTT         time.Duration
	Status      ProbeStatus
	CountryCode string
	Country     string
	Region      string
	City        string
	Lat         float64
	Lon         float64
	HasLatLon   bool
	ASN         int
	ISP         string
}

// TracerouteResult wraps the hop list with geolocation-enrichment
// fill-rate metadata.
type TracerouteResult struct {
	Hops               []TracerouteHop
	GeoLookupAvailable bool
	GeoLookupCount     int
}

// PortScanResult is the outcome of scanning a host's TCP ports.
type PortScanResult struct {
	Host         string
	OpenPorts    []int
	ScannedPorts int
	DurationMs   int64
}

// DnsRecordType enumerates the resource record types DnsLookup
// queries.
type DnsRecordType string

const (
	RecordA     DnsRecordType = "A"
	RecordAAAA  DnsRecordType = "AAAA"
	RecordCNAME DnsRecordType = "CNAME"
	RecordMX    DnsRecordType = "MX"
	RecordTXT   DnsRecordType = "TXT"
	RecordNS    DnsRecordType = "NS"
	RecordSOA   DnsRecordType = "SOA"
	RecordPTR   DnsRecordType = "PTR"
	RecordSRV   DnsRecordType = "SRV"
	RecordCAA   DnsRecordType = "CAA"
)

// DefaultLookupTypes is the sequential query order DnsLookup issues.
var DefaultLookupTypes = []DnsRecordType{
	RecordA, RecordAAAA, RecordCNAME, RecordMX, RecordTXT, RecordNS, RecordSOA,
}

// DnsRecord is one resolved resource record.
type DnsRecord struct {
	Name     string
	Type     DnsRecordType
	Value    string
	TTL      *uint32
	Priority *uint16
}

// DnsLookupResult aggregates every record resolved for a name.
type DnsLookupResult struct {
	Name    string
	Records []DnsRecord
}

// DnsPropagationServerResult is one server's answer in a propagation
// check: either Records or Error is populated, never both.
type DnsPropagationServerResult struct {
	Server          string
	RecordType      DnsRecordType
	ResolvedAddress string
	Records         []DnsRecord
	DurationMs      int64
	Error           string
}

// WhoisResult is the final (possibly referral-chased) WHOIS response.
type WhoisResult struct {
	Query        string
	Raw          string
	ReferralPath []string
}

// CertificateInfo describes one certificate in a TLS chain.
type CertificateInfo struct {
	Subject            string
	Issuer              string
	NotBefore           time.Time
	NotAfter            time.Time
	Thumbprint          string
	Serial              string
	SubjectAltNames     []string
	SignatureAlgorithm  string
	PublicKeyAlgorithm  string
	KeySize             int
	IsSelfSigned        bool
}

// CertificateChainResult is the result of InspectCertificate.
type CertificateChainResult struct {
	Host          string
	Chain         []CertificateInfo
	DaysRemaining int
	IsValidNow    bool
}

// PublicIPResult is the outcome of GetPublicIP for both address
// families; a family no provider answered for is left empty.
type PublicIPResult struct {
	IPv4         string
	IPv4Provider string
	IPv6         string
	IPv6Provider string
}

// commonPorts is the built-in list PortScan defaults to when the
// caller supplies none.
var commonPorts = []int{
	21, 22, 23, 25, 53, 80, 110, 135, 139, 143, 443, 445,
	993, 995, 1433, 3306, 3389, 5432, 5900, 8080,
}

// CommonPorts returns a copy of the default 20-port scan list.
func CommonPorts() []int {
	out := make([]int, len(commonPorts))
	copy(out, commonPorts)
	return out
}

// resolveIP returns the first IP net.LookupIP resolves for host, or
// host itself parsed directly if it is already a literal address.
func resolveIP(host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, err
	}
	return ips[0], nil
}
