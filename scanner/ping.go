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
	"net"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// Ping sends a single ICMP echo to host and waits up to timeout for a
// reply. A failed probe never returns a Go error for ordinary network
// reasons (unreachable, timeout, DNS failure) — the reason is encoded
// in the result's Status, per spec.md §7's "probes report, they don't
// throw" rule. Using an unprivileged (datagram-socket) pinger is the
// default so the engine doesn't require CAP_NET_RAW; deployments that
// need privileged raw-socket ping can still run as root, which the
// same pro-bing.Pinger transparently takes advantage of.
func (e *Engine) Ping(host string, timeout time.Duration) PingResult {
	if timeout <= 0 {
		timeout = time.Second
	}

	resolved, err := resolveIP(host)
	if err != nil {
		return PingResult{Address: host, Status: StatusOtherError, Error: err.Error()}
	}

	pinger, err := probing.NewPinger(resolved.String())
	if err != nil {
		return PingResult{Address: host, ResolvedAddress: resolved.String(), Status: StatusOtherError, Error: err.Error()}
	}
	pinger.SetPrivileged(false)
	pinger.Count = 1
	pinger.Timeout = timeout

	result := PingResult{Address: host, ResolvedAddress: resolved.String(), Status: StatusTimedOut}
	started := time.Now()
	pinger.OnRecv = func(pkt *probing.Packet) {
		result.Status = StatusSuccess
		result.RTT = clampRTT(pkt.Rtt, started)
		result.TTL = pkt.TTL
	}

	if err := pinger.Run(); err != nil {
		if result.Status != StatusSuccess {
			return PingResult{
				Address:         host,
				ResolvedAddress: resolved.String(),
				Status:          classifyPingError(err),
				Error:           err.Error(),
			}
		}
	}

	if result.Status != StatusSuccess {
		result.RTT = time.Since(started)
	}
	return result
}

// clampRTT enforces spec.md §9's "clamp successful probes to ≥1 ms"
// resolution (Open Question 2): some platforms report 0 ms for very
// fast loopback-adjacent hops.
func clampRTT(rtt time.Duration, started time.Time) time.Duration {
	if rtt <= 0 {
		rtt = time.Since(started)
	}
	if rtt < time.Millisecond {
		return time.Millisecond
	}
	return rtt
}

func classifyPingError(err error) ProbeStatus {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return StatusTimedOut
	}
	return StatusOtherError
}
