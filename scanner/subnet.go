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

package scanner

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"
)

// maxSubnetPingWorkers bounds the first-stage ping sweep, per spec.md
// §5.
const maxSubnetPingWorkers = 256

// maxSubnetEnrichWorkers bounds the second-stage hostname/ARP/OUI
// enrichment pool, per spec.md §5.
const maxSubnetEnrichWorkers = 64

// SubnetScan expands cidr and pings every address, streaming each
// responding host to onHost once as soon as the ping succeeds (IP
// address and round-trip time only), and a second time once enrichment
// (reverse DNS, ARP, OUI vendor lookup) completes for it, provided
// enrichment filled in at least one field. The two
// emissions are distinct values — DiscoveredHost is never mutated
// after a call to onHost returns. onHost may be nil, in which case the
// scan still runs to completion and only the final count is reported.
// Cancelling ctx stops issuing new pings and lets in-flight work drain.
func (e *Engine) SubnetScan(ctx context.Context, cidr string, pingTimeout time.Duration, onHost func(DiscoveredHost)) (int, error) {
	ips, err := ExpandCIDR(cidr)
	if err != nil {
		return 0, err
	}
	if pingTimeout <= 0 {
		pingTimeout = time.Second
	}
	if len(ips) == 0 {
		return 0, nil
	}

	pingWorkers := maxSubnetPingWorkers
	if len(ips) < pingWorkers {
		pingWorkers = len(ips)
	}

	basic := make(chan DiscoveredHost, maxSubnetEnrichWorkers)

	var pingWG sync.WaitGroup
	pingSem := make(chan struct{}, pingWorkers)
	for _, ip := range ips {
		ip := ip
		select {
		case <-ctx.Done():
			continue
		default:
		}

		pingWG.Add(1)
		pingSem <- struct{}{}
		go func() {
			defer pingWG.Done()
			defer func() { <-pingSem }()

			select {
			case <-ctx.Done():
				return
			default:
			}

			res := e.Ping(ip.String(), pingTimeout)
			if res.Status != StatusSuccess {
				return
			}

			host := DiscoveredHost{
				IPAddress:    ip.String(),
				RoundtripMs:  res.RTT.Milliseconds(),
				DiscoveredAt: time.Now(),
			}
			select {
			case basic <- host:
			case <-ctx.Done():
			}
		}()
	}

	go func() {
		pingWG.Wait()
		close(basic)
	}()

	var count int
	var enrichWG sync.WaitGroup
	enrichSem := make(chan struct{}, maxSubnetEnrichWorkers)

	for host := range basic {
		host := host
		if onHost != nil {
			onHost(host)
		}
		count++

		enrichWG.Add(1)
		enrichSem <- struct{}{}
		go func() {
			defer enrichWG.Done()
			defer func() { <-enrichSem }()

			enriched := e.enrichHost(host)
			if onHost != nil && enriched != host {
				onHost(enriched)
			}
		}()
	}
	enrichWG.Wait()

	return count, nil
}

// enrichHost fills in the hostname, MAC address, and vendor for a host
// already known to respond to ping. Any lookup that fails or comes up
// empty just leaves its field zero; enrichment never turns a
// discovered host into an error.
func (e *Engine) enrichHost(host DiscoveredHost) DiscoveredHost {
	ip := net.ParseIP(host.IPAddress)
	if ip == nil {
		return host
	}

	if names, err := net.LookupAddr(host.IPAddress); err == nil && len(names) > 0 {
		host.Hostname = strings.TrimSuffix(names[0], ".")
	}

	if mac, ok, err := e.arp.Lookup(ip); err == nil && ok {
		host.MACAddress = mac
		if vendor, vendorOK := e.oui.Lookup(mac); vendorOK {
			host.Vendor = vendor
		}
	}

	return host
}
