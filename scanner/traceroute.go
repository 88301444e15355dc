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
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/raulshma/manlab/lang/worker"
)

// DefaultMaxHops is the default traceroute hop ceiling.
const DefaultMaxHops = 30

// maxTraceBatch bounds how many hop probes are issued in parallel, per
// spec.md §5: min(6, cpu).
func maxTraceBatch() int {
	if n := runtime.NumCPU(); n < 6 {
		return n
	}
	return 6
}

// TraceRoute issues ICMP echo probes with increasing TTL and delivers
// hops to onHop in ascending TTL order, even though probes within a
// batch complete out of order. onHop may be nil. Stops at the first
// Success hop, or any hop whose status isn't
// {Success, TtlExpired, TimedOut}.
func (e *Engine) TraceRoute(ctx context.Context, host string, maxHops int, timeout time.Duration, onHop func(TracerouteHop)) (*TracerouteResult, error) {
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	dest, err := resolveIP(host)
	if err != nil {
		return nil, err
	}

	probeConn, probeErr := icmp.ListenPacket("udp4", "0.0.0.0")
	if probeErr != nil {
		// Unprivileged ICMP sockets require the platform's
		// ping_group_range to include our gid; degrade to an
		// all-Unknown trace rather than failing the caller.
		return &TracerouteResult{Hops: unknownTrace(maxHops)}, nil
	}
	probeConn.Close()

	batch := maxTraceBatch()
	hops := make([]TracerouteHop, maxHops)
	for i := range hops {
		hops[i] = TracerouteHop{HopNumber: i + 1, Status: StatusUnknown}
	}

	stopAt := -1
	var stopMu sync.Mutex

	for batchStart := 1; batchStart <= maxHops; batchStart += batch {
		stopMu.Lock()
		shouldStop := stopAt != -1 && batchStart > stopAt
		stopMu.Unlock()
		if shouldStop {
			break
		}

		batchEnd := batchStart + batch - 1
		if batchEnd > maxHops {
			batchEnd = maxHops
		}

		wg := worker.NewWorkerGroup(ctx, batchEnd-batchStart+1)
		for ttl := batchStart; ttl <= batchEnd; ttl++ {
			ttl := ttl
			wg.Start(func(context.Context) error {
				hop := probeTTL(dest, ttl, timeout)
				hops[ttl-1] = hop
				if hop.Status == StatusSuccess {
					stopMu.Lock()
					if stopAt == -1 || ttl < stopAt {
						stopAt = ttl
					}
					stopMu.Unlock()
				} else if hop.Status != StatusTtlExpired && hop.Status != StatusTimedOut {
					stopMu.Lock()
					if stopAt == -1 || ttl < stopAt {
						stopAt = ttl
					}
					stopMu.Unlock()
				}
				return nil
			})
		}
		_ = wg.Wait()

		select {
		case <-ctx.Done():
			stopAt = batchEnd
		default:
		}
	}

	cut := maxHops
	if stopAt != -1 {
		cut = stopAt
	}
	result := hops[:cut]
	for i := range result {
		if onHop != nil {
			onHop(result[i])
		}
	}

	geoCount := e.enrichHops(result)

	return &TracerouteResult{
		Hops:               result,
		GeoLookupAvailable: e.geo != nil,
		GeoLookupCount:     geoCount,
	}, nil
}

// maxTraceEnrichWorkers bounds the reverse-DNS+geo pool run after
// probing, per spec.md §5: 8 workers.
const maxTraceEnrichWorkers = 8

// enrichHops fills in Hostname/geo fields for every hop that has an
// address, reusing one geo lookup per distinct IP within the trace.
func (e *Engine) enrichHops(hops []TracerouteHop) int {
	var mu sync.Mutex
	geoCache := make(map[string]bool)
	filled := 0

	sem := make(chan struct{}, maxTraceEnrichWorkers)
	var wg sync.WaitGroup
	for i := range hops {
		if hops[i].Address == "" {
			continue
		}
		i := i
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if names, err := net.LookupAddr(hops[i].Address); err == nil && len(names) > 0 {
				hops[i].Hostname = strings.TrimSuffix(names[0], ".")
			}

			ip := net.ParseIP(hops[i].Address)
			if ip == nil {
				return
			}
			mu.Lock()
			_, seen := geoCache[hops[i].Address]
			mu.Unlock()
			if seen {
				return
			}

			info, ok, err := e.geo.Lookup(ip)
			mu.Lock()
			geoCache[hops[i].Address] = true
			mu.Unlock()
			if err != nil || !ok {
				return
			}
			hops[i].CountryCode = info.CountryCode
			hops[i].Country = info.Country
			hops[i].Region = info.Region
			hops[i].City = info.City
			hops[i].Lat = info.Lat
			hops[i].Lon = info.Lon
			hops[i].HasLatLon = info.HasLatLon
			hops[i].ASN = info.ASN
			hops[i].ISP = info.ISP
			mu.Lock()
			filled++
			mu.Unlock()
		}()
	}
	wg.Wait()
	return filled
}

func unknownTrace(maxHops int) []TracerouteHop {
	hops := make([]TracerouteHop, 1)
	hops[0] = TracerouteHop{HopNumber: 1, Status: StatusUnknown}
	return hops
}

// probeTTL sends one ICMP echo with the given TTL and waits for
// either an echo reply (Success, destination reached) or a time
// exceeded message (TtlExpired, an intermediate router). Each probe
// owns its own socket: the kernel demultiplexes replies to it by
// destination port, so concurrent probes in the same batch never
// contend over one connection's TTL or read deadline.
func probeTTL(dest net.IP, ttl int, timeout time.Duration) TracerouteHop {
	hop := TracerouteHop{HopNumber: ttl, Status: StatusTimedOut}

	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err != nil {
		hop.Status = StatusOtherError
		return hop
	}
	defer conn.Close()

	if err := conn.IPv4PacketConn().SetTTL(ttl); err != nil {
		hop.Status = StatusOtherError
		return hop
	}

	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho, Code: 0,
		Body: &icmp.Echo{ID: os.Getpid() & 0xffff, Seq: ttl, Data: []byte("manlab-traceroute")},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		hop.Status = StatusOtherError
		return hop
	}

	started := time.Now()
	_ = conn.SetDeadline(started.Add(timeout))
	if _, err := conn.WriteTo(wb, &net.UDPAddr{IP: dest}); err != nil {
		hop.Status = StatusOtherError
		return hop
	}

	rb := make([]byte, 1500)
	n, peer, err := conn.ReadFrom(rb)
	if err != nil {
		return hop // StatusTimedOut
	}
	hop.RTT = clampRTT(time.Since(started), started)
	if udpAddr, ok := peer.(*net.UDPAddr); ok {
		hop.Address = udpAddr.IP.String()
	}

	rm, err := icmp.ParseMessage(1, rb[:n]) // protocol 1 = ICMP
	if err != nil {
		hop.Status = StatusOtherError
		return hop
	}

	switch rm.Type {
	case ipv4.ICMPTypeTimeExceeded:
		hop.Status = StatusTtlExpired
	case ipv4.ICMPTypeEchoReply:
		hop.Status = StatusSuccess
		hop.Address = dest.String()
	default:
		hop.Status = StatusOtherError
	}
	return hop
}
