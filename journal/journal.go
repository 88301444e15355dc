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

package journal

import (
	"sync"
	"time"

	"github.com/coreos/pkg/capnslog"
	"github.com/google/uuid"
)

var plog = capnslog.NewPackageLogger("github.com/raulshma/manlab", "journal")

// Journal is the HistoryJournal: a non-blocking Record front-end over
// a bounded queue, drained by a single background consumer that
// commits batches to a Sink. Modeled on network/journal.Recorder's
// goroutine-plus-status-channel shape, generalized from "one journald
// stream" to "many structured entries, dropping the oldest on
// overflow".
type Journal struct {
	sink Sink

	mu      sync.Mutex
	queue   []Entry
	dropped uint64

	enqueued chan struct{}
	done     chan struct{}
	closed   chan struct{}
	closeOnce sync.Once
}

// New constructs a Journal backed by sink and starts its background
// consumer goroutine.
func New(sink Sink) *Journal {
	j := &Journal{
		sink:     sink,
		enqueued: make(chan struct{}, 1),
		done:     make(chan struct{}),
		closed:   make(chan struct{}),
	}
	go j.run()
	return j
}

// Record enqueues a new entry and returns its ID immediately; it
// never blocks on persistence. If the queue is full, the oldest
// queued entry is dropped (spec.md §4.3) and a warning is logged.
func (j *Journal) Record(toolType, target string, input, result any, success bool, durationMs int64, errMsg, subjectID string) uuid.UUID {
	e := NewEntry(toolType, target, input, result, success, durationMs, errMsg, subjectID)

	j.mu.Lock()
	if len(j.queue) >= queueCapacity {
		j.queue = j.queue[1:]
		j.dropped++
		plog.Warningf("history queue full (capacity %d), dropping oldest entry", queueCapacity)
	}
	j.queue = append(j.queue, e)
	j.mu.Unlock()

	select {
	case j.enqueued <- struct{}{}:
	default:
	}

	return e.ID
}

// DroppedCount returns the number of entries dropped because the
// queue was full.
func (j *Journal) DroppedCount() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.dropped
}

func (j *Journal) takeBatch() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.queue) == 0 {
		return nil
	}
	n := drainBatchSize
	if n > len(j.queue) {
		n = len(j.queue)
	}
	batch := make([]Entry, n)
	copy(batch, j.queue[:n])
	j.queue = j.queue[n:]
	return batch
}

func (j *Journal) drainOnce() {
	for {
		batch := j.takeBatch()
		if batch == nil {
			return
		}
		if err := j.sink.InsertBatch(batch); err != nil {
			plog.Errorf("failed to commit history batch of %d entries: %v", len(batch), err)
		}
	}
}

func (j *Journal) run() {
	defer close(j.done)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-j.enqueued:
			j.drainOnce()
		case <-ticker.C:
			j.drainOnce()
		case <-j.closed:
			j.drainOnce()
			return
		}
	}
}

// Close signals the consumer to drain any remaining queued entries
// and stop, waiting up to 5s (spec.md §4.3) for it to finish.
func (j *Journal) Close() {
	j.closeOnce.Do(func() { close(j.closed) })
	select {
	case <-j.done:
	case <-time.After(shutdownDeadline):
		plog.Warningf("history journal shutdown deadline exceeded, %d entries may be lost", len(j.queue))
	}
}

// Query, GetByID, Delete, DeleteOlderThan, and UpdateMetadata pass
// directly through to the sink: once committed, history reads don't
// need to go through the write queue.

func (j *Journal) Query(f Filter) ([]Entry, int, error) { return j.sink.Query(f) }

func (j *Journal) GetByID(id uuid.UUID) (Entry, bool, error) { return j.sink.GetByID(id) }

func (j *Journal) Delete(id uuid.UUID) (bool, error) { return j.sink.Delete(id) }

func (j *Journal) DeleteOlderThan(cutoff time.Time) (int, error) {
	return j.sink.DeleteOlderThan(cutoff)
}

func (j *Journal) UpdateMetadata(id uuid.UUID, tagsJSON *string, notes string) (bool, error) {
	return j.sink.UpdateMetadata(id, tagsJSON, notes)
}
