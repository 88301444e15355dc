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

package script

import (
	"sync"
	"time"
)

// chunkSender accumulates bytes written to it and forwards them to
// onChunk in pieces of at most ChunkSize characters, flushing
// whichever comes first: the buffer filling up, or a FlushInterval
// timer tick. It also mirrors everything written into a bounded tail
// for the final run summary.
type chunkSender struct {
	mu      sync.Mutex
	pending []byte
	tail    *tailBuffer
	stream  Stream
	run     Run
	onChunk OutputFunc

	stop chan struct{}
	done chan struct{}
}

func newChunkSender(run Run, stream Stream, onChunk OutputFunc, tail *tailBuffer) *chunkSender {
	cs := &chunkSender{
		tail:    tail,
		stream:  stream,
		run:     run,
		onChunk: onChunk,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go cs.flushLoop()
	return cs
}

func (cs *chunkSender) flushLoop() {
	defer close(cs.done)
	ticker := time.NewTicker(FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cs.drain()
		case <-cs.stop:
			cs.drain()
			return
		}
	}
}

// Write implements io.Writer for the subprocess output pump. It never
// blocks on delivery to onChunk: bytes are buffered here and the
// flush loop (or the next full-buffer Write) is what actually calls
// onChunk, so a slow status subscriber only delays forwarding, never
// the pump reading from stdout/stderr.
func (cs *chunkSender) Write(p []byte) (int, error) {
	if cs.tail != nil {
		cs.tail.Write(p)
	}
	cs.mu.Lock()
	cs.pending = append(cs.pending, p...)
	full := len(cs.pending) >= ChunkSize
	cs.mu.Unlock()
	if full {
		cs.drain()
	}
	return len(p), nil
}

// drain emits every full-or-partial ChunkSize-sized piece currently
// buffered.
func (cs *chunkSender) drain() {
	for {
		cs.mu.Lock()
		if len(cs.pending) == 0 {
			cs.mu.Unlock()
			return
		}
		var out []byte
		if len(cs.pending) > ChunkSize {
			out, cs.pending = cs.pending[:ChunkSize], cs.pending[ChunkSize:]
		} else {
			out, cs.pending = cs.pending, nil
		}
		cs.mu.Unlock()

		if cs.onChunk != nil {
			cs.onChunk(OutputFrame{
				Kind:     "script.output",
				RunID:    cs.run.RunID,
				ScriptID: cs.run.ScriptID,
				Stream:   cs.stream,
				Chunk:    string(out),
			})
		}
	}
}

// Close performs one final drain and stops the background timer.
func (cs *chunkSender) Close() {
	close(cs.stop)
	<-cs.done
}

// tailBuffer is a rolling, oldest-evict byte buffer used for the
// final run summary (bounded independently of chunkSender's
// in-flight chunking).
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = DefaultTailBytes
	}
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
