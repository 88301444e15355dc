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

package speedtest

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/gorilla/websocket"
)

// ndt7Subprotocol is the WebSocket sub-protocol ndt7 servers require.
const ndt7Subprotocol = "net.measurementlab.ndt.v7"

// DefaultDownloadBytes/DefaultUploadBytes bound how much data a phase
// will transfer even if the server never closes the connection.
const (
	DefaultDownloadBytes  = int64(1) << 30 // 1 GiB
	DefaultUploadBytes    = int64(1) << 30
	uploadFrameSize       = 64 * 1024
	maxLatencySamples     = 100
	progressThrottle      = 250 * time.Millisecond
)

// DefaultMaxTestSeconds bounds the upload phase, per spec.
const DefaultMaxTestSeconds = 13 * time.Second

type measurementFrame struct {
	TCPInfo *struct {
		RTT    float64 `json:"RTT"`
		MinRTT float64 `json:"MinRTT"`
	} `json:"TCPInfo,omitempty"`
}

var ndt7Dialer = websocket.Dialer{
	Subprotocols:     []string{ndt7Subprotocol},
	HandshakeTimeout: 10 * time.Second,
}

// runDownload reads from wsURL until downloadBytes have arrived, the
// server closes the connection, or ctx expires, counting binary
// frames toward throughput and parsing text frames for RTT samples.
func runDownload(ctx context.Context, wsURL string, downloadBytes int64, onProgress func(Progress)) (mbps float64, latency LatencyStats, err error) {
	conn, _, err := ndt7Dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return 0, LatencyStats{}, fmt.Errorf("dial download websocket: %w", err)
	}
	defer conn.Close()

	started := time.Now()
	var total int64
	var samples []float64
	lastEmit := started

	for {
		select {
		case <-ctx.Done():
			return finishPhase(PhaseDownload, total, started, samples, onProgress, &lastEmit, true)
		default:
		}

		msgType, data, readErr := conn.ReadMessage()
		if readErr != nil {
			return finishPhase(PhaseDownload, total, started, samples, onProgress, &lastEmit, true)
		}

		switch msgType {
		case websocket.BinaryMessage:
			total += int64(len(data))
		case websocket.TextMessage:
			if rtt, ok := parseMeasurementRTT(data); ok {
				samples = appendBounded(samples, rtt, maxLatencySamples)
			}
		}

		emitThrottled(PhaseDownload, total, downloadBytes, started, samples, onProgress, &lastEmit, false)

		if total >= downloadBytes {
			return finishPhase(PhaseDownload, total, started, samples, onProgress, &lastEmit, true)
		}
	}
}

// runUpload sends random binary frames to wsURL until uploadBytes are
// sent, maxDuration elapses, or ctx expires, while a concurrent
// receive loop drains text measurement frames for RTT samples.
func runUpload(ctx context.Context, wsURL string, uploadBytes int64, maxDuration time.Duration, onProgress func(Progress)) (mbps float64, latency LatencyStats, err error) {
	conn, _, err := ndt7Dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return 0, LatencyStats{}, fmt.Errorf("dial upload websocket: %w", err)
	}
	defer conn.Close()

	uploadCtx, cancel := context.WithTimeout(ctx, maxDuration)
	defer cancel()

	samplesCh := make(chan float64, maxLatencySamples)
	go func() {
		defer close(samplesCh)
		for {
			msgType, data, readErr := conn.ReadMessage()
			if readErr != nil {
				return
			}
			if msgType == websocket.TextMessage {
				if rtt, ok := parseMeasurementRTT(data); ok {
					select {
					case samplesCh <- rtt:
					default:
					}
				}
			}
		}
	}()

	started := time.Now()
	var total int64
	var samples []float64
	lastEmit := started

	frame := make([]byte, uploadFrameSize)
	for {
		select {
		case rtt, ok := <-samplesCh:
			if ok {
				samples = appendBounded(samples, rtt, maxLatencySamples)
			}
		case <-uploadCtx.Done():
			return finishPhase(PhaseUpload, total, started, samples, onProgress, &lastEmit, true)
		default:
		}

		if total >= uploadBytes {
			return finishPhase(PhaseUpload, total, started, samples, onProgress, &lastEmit, true)
		}

		if _, err := rand.Read(frame); err != nil {
			return finishPhase(PhaseUpload, total, started, samples, onProgress, &lastEmit, true)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return finishPhase(PhaseUpload, total, started, samples, onProgress, &lastEmit, true)
		}
		total += int64(len(frame))

		emitThrottled(PhaseUpload, total, uploadBytes, started, samples, onProgress, &lastEmit, false)
	}
}

func parseMeasurementRTT(data []byte) (float64, bool) {
	var frame measurementFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.TCPInfo == nil {
		return 0, false
	}
	if frame.TCPInfo.MinRTT > 0 {
		return frame.TCPInfo.MinRTT / 1000, true // microseconds -> ms
	}
	if frame.TCPInfo.RTT > 0 {
		return frame.TCPInfo.RTT / 1000, true
	}
	return 0, false
}

func appendBounded(samples []float64, v float64, max int) []float64 {
	if len(samples) >= max {
		return samples
	}
	return append(samples, v)
}

func emitThrottled(phase Phase, bytes, target int64, started time.Time, samples []float64, onProgress func(Progress), lastEmit *time.Time, force bool) {
	if onProgress == nil {
		return
	}
	now := time.Now()
	if !force && now.Sub(*lastEmit) < progressThrottle {
		return
	}
	*lastEmit = now

	elapsed := now.Sub(started)
	var mbps float64
	if elapsed > 0 {
		mbps = float64(bytes) * 8 / (elapsed.Seconds() * 1e6)
	}

	p := Progress{
		Phase:            phase,
		Bytes:            bytes,
		Target:           target,
		Mbps:             mbps,
		SamplesCollected: len(samples),
		SamplesTarget:    maxLatencySamples,
		ElapsedMs:        elapsed.Milliseconds(),
	}
	if len(samples) > 0 {
		p.LatencySampleMs = samples[len(samples)-1]
	}
	onProgress(p)
}

func finishPhase(phase Phase, bytes int64, started time.Time, samples []float64, onProgress func(Progress), lastEmit *time.Time, force bool) (float64, LatencyStats, error) {
	emitThrottled(phase, bytes, bytes, started, samples, onProgress, lastEmit, force)
	elapsed := time.Since(started)
	var mbps float64
	if elapsed > 0 {
		mbps = float64(bytes) * 8 / (elapsed.Seconds() * 1e6)
	}
	return mbps, computeLatencyStats(samples), nil
}

func computeLatencyStats(samples []float64) LatencyStats {
	stats := LatencyStats{Samples: len(samples)}
	if len(samples) == 0 {
		return stats
	}

	stats.MinMs = samples[0]
	stats.MaxMs = samples[0]
	var sum float64
	for _, s := range samples {
		if s < stats.MinMs {
			stats.MinMs = s
		}
		if s > stats.MaxMs {
			stats.MaxMs = s
		}
		sum += s
	}
	stats.MeanMs = sum / float64(len(samples))

	var variance float64
	for _, s := range samples {
		d := s - stats.MeanMs
		variance += d * d
	}
	variance /= float64(len(samples))
	stats.JitterMs = math.Sqrt(variance)

	return stats
}
