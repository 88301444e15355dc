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

package pcap

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coreos/pkg/capnslog"

	"github.com/raulshma/manlab/ring"
)

var plog = capnslog.NewPackageLogger("github.com/raulshma/manlab", "pcap")

// ErrCaptureInProgress is returned by StartCapture when a capture is
// already running: the engine permits only one at a time.
var ErrCaptureInProgress = errors.New("pcap: a capture is already in progress")

// ErrCaptureUnavailable wraps a native-library failure (typically a
// missing libpcap) surfaced from the CaptureAdapter.
type ErrCaptureUnavailable struct {
	Cause error
}

func (e *ErrCaptureUnavailable) Error() string {
	return fmt.Sprintf("pcap: capture library unavailable: %v", e.Cause)
}

func (e *ErrCaptureUnavailable) Unwrap() error { return e.Cause }

// Engine is PacketCaptureEngine.
type Engine struct {
	adapter CaptureAdapter
	buf     *ring.Buffer[Record]

	broadcastInterval  time.Duration
	broadcastBatchSize int

	unavailableLogOnce sync.Once

	mu      sync.Mutex
	active  bool
	handle  CaptureHandle
	stopCh  chan struct{}
	doneWg  sync.WaitGroup
	nextID  uint64

	subMu sync.Mutex
	subs  map[int]chan []Record
	nextSub int

	sampled chan Record
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithAdapter overrides the CaptureAdapter; tests use a fake.
func WithAdapter(a CaptureAdapter) EngineOption {
	return func(e *Engine) { e.adapter = a }
}

// WithMaxBufferedPackets overrides the ring buffer capacity.
func WithMaxBufferedPackets(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.buf = ring.New[Record](n)
		}
	}
}

// WithBroadcastSchedule overrides the periodic broadcaster's interval
// and batch size.
func WithBroadcastSchedule(interval time.Duration, batchSize int) EngineOption {
	return func(e *Engine) {
		if interval > 0 {
			e.broadcastInterval = interval
		}
		if batchSize > 0 {
			e.broadcastBatchSize = batchSize
		}
	}
}

// New constructs an Engine bound to the production gopacket/libpcap
// adapter unless overridden with WithAdapter.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		adapter:            NewGopacketAdapter(),
		buf:                ring.New[Record](DefaultMaxBufferedPackets),
		broadcastInterval:  DefaultBroadcastInterval,
		broadcastBatchSize: DefaultBroadcastBatchSize,
		subs:               make(map[int]chan []Record),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Devices enumerates capturable interfaces. A native-library failure
// is logged once per Engine and returned as *ErrCaptureUnavailable
// rather than panicking the caller.
func (e *Engine) Devices() ([]Device, error) {
	devices, err := e.adapter.Devices()
	if err != nil {
		e.logUnavailableOnce(err)
		return nil, &ErrCaptureUnavailable{Cause: err}
	}
	return devices, nil
}

func (e *Engine) logUnavailableOnce(err error) {
	e.unavailableLogOnce.Do(func() {
		plog.Errorf("pcap: capture library unavailable, falling back to unavailable status: %v", err)
	})
}

// StartCapture opens opts.Device and begins summarizing arriving
// packets into the ring buffer and sampled broadcast channel. It
// returns ErrCaptureInProgress if a capture is already running.
func (e *Engine) StartCapture(opts Options) error {
	opts = opts.withDefaults()

	e.mu.Lock()
	if e.active {
		e.mu.Unlock()
		return ErrCaptureInProgress
	}
	e.active = true
	e.mu.Unlock()

	handle, err := e.adapter.OpenLive(opts.Device, opts.SnapLen, opts.Promiscuous, readTimeout)
	if err != nil {
		e.mu.Lock()
		e.active = false
		e.mu.Unlock()
		e.logUnavailableOnce(err)
		return &ErrCaptureUnavailable{Cause: err}
	}

	if opts.BPFFilter != "" {
		if err := handle.SetBPFFilter(opts.BPFFilter); err != nil {
			handle.Close()
			e.mu.Lock()
			e.active = false
			e.mu.Unlock()
			return fmt.Errorf("pcap: invalid BPF filter %q: %w", opts.BPFFilter, err)
		}
	}

	e.mu.Lock()
	e.handle = handle
	e.stopCh = make(chan struct{})
	e.sampled = make(chan Record, sampledChanCapacity)
	stopCh := e.stopCh
	e.mu.Unlock()

	e.doneWg.Add(2)
	go e.captureLoop(handle, stopCh, opts.BroadcastSampleEvery)
	go e.broadcastLoop(stopCh)

	return nil
}

// StopCapture closes the active capture, if any, and waits for its
// goroutines to exit.
func (e *Engine) StopCapture() {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	close(e.stopCh)
	handle := e.handle
	e.mu.Unlock()

	handle.Close()
	e.doneWg.Wait()

	e.mu.Lock()
	e.active = false
	e.handle = nil
	e.mu.Unlock()
}

// IsCapturing reports whether a capture is currently running.
func (e *Engine) IsCapturing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *Engine) captureLoop(handle CaptureHandle, stopCh chan struct{}, sampleEvery int) {
	defer e.doneWg.Done()
	defer close(e.sampled)

	var seen uint64
	for {
		select {
		case <-stopCh:
			return
		case packet, ok := <-handle.Packets():
			if !ok {
				return
			}
			id := atomic.AddUint64(&e.nextID, 1)
			rec := summarize(packet, id, time.Now().UTC())
			e.buf.Add(rec)

			seen++
			if int(seen)%sampleEvery != 0 {
				continue
			}
			select {
			case e.sampled <- rec:
			default:
				// Drop-newest: the sampled channel is full, so this
				// record is skipped rather than blocking capture.
			}
		}
	}
}

// broadcastLoop periodically drains the sampled channel into batches
// of at most broadcastBatchSize and delivers them to subscribers.
func (e *Engine) broadcastLoop(stopCh chan struct{}) {
	defer e.doneWg.Done()

	ticker := time.NewTicker(e.broadcastInterval)
	defer ticker.Stop()

	var pending []Record
	flush := func() {
		if len(pending) == 0 {
			return
		}
		e.broadcast(pending)
		pending = nil
	}

	for {
		select {
		case <-stopCh:
			e.drainSampled(&pending)
			flush()
			return
		case <-ticker.C:
			e.drainSampled(&pending)
			flush()
		case rec, ok := <-e.sampled:
			if !ok {
				flush()
				return
			}
			pending = append(pending, rec)
			if len(pending) >= e.broadcastBatchSize {
				flush()
			}
		}
	}
}

func (e *Engine) drainSampled(pending *[]Record) {
	for {
		select {
		case rec, ok := <-e.sampled:
			if !ok {
				return
			}
			*pending = append(*pending, rec)
		default:
			return
		}
	}
}

func (e *Engine) broadcast(batch []Record) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- batch:
		default:
		}
	}
}

// Subscribe registers a new subscriber for batched packet records.
func (e *Engine) Subscribe() (<-chan []Record, func()) {
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	ch := make(chan []Record, 16)
	e.subs[id] = ch
	e.subMu.Unlock()

	return ch, func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		if c, ok := e.subs[id]; ok {
			close(c)
			delete(e.subs, id)
		}
	}
}

// Recent returns the n most recently buffered records, oldest first.
func (e *Engine) Recent(n int) []Record {
	return e.buf.GetRecent(n)
}

// BufferedCount returns the number of records currently retained.
func (e *Engine) BufferedCount() int {
	return e.buf.Count()
}

// DroppedCount returns how many buffered records have been evicted.
func (e *Engine) DroppedCount() uint64 {
	return e.buf.DroppedCount()
}
