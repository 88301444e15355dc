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

// Package journal provides the asynchronous, batched audit log every
// scan and command execution feeds: HistoryJournal from the spec. It
// is grounded on the teacher's network/journal package, which streams
// journald records through a small Recorder/Formatter pair backed by
// a goroutine and a status channel; this package generalizes that
// "non-blocking enqueue, single background drainer" shape to a
// bounded queue of structured entries committed in batches to a
// pluggable Sink (persistence itself is an external collaborator, per
// spec.md §1 Out of scope).
package journal

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	maxToolTypeLen  = 32
	maxTargetLen    = 256
	maxErrorLen     = 2048
	maxNotesLen     = 4096
	maxConnIDLen    = 128
	maxJSONPayload  = 32 * 1024 // 32 KiB
	queueCapacity   = 1000
	drainBatchSize  = 50
	shutdownDeadline = 5 * time.Second
)

// Entry is the persisted record of one tool invocation. Field length
// limits mirror spec.md §3 HistoryEntry.
type Entry struct {
	ID           uuid.UUID `json:"id"`
	TimestampUTC time.Time `json:"timestampUtc"`
	ToolType     string    `json:"toolType"`
	Target       string    `json:"target"`
	InputJSON    *string   `json:"inputJson,omitempty"`
	ResultJSON   *string   `json:"resultJson,omitempty"`
	Success      bool      `json:"success"`
	DurationMs   int64     `json:"durationMs"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	ConnectionID string    `json:"connectionId,omitempty"`
	TagsJSON     *string   `json:"tagsJson,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	UpdatedUTC   time.Time `json:"updatedUtc"`
}

// truncSentinel replaces an oversize JSON payload, per spec.md §3's
// "oversize replaced with sentinel" invariant.
const truncSentinel = `{"_truncated":true}`

// serializationFailedSentinel is emitted when a value cannot be
// marshaled at all.
const serializationFailedSentinel = `{"_error":"serialization_failed"}`

func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// encodeJSONField marshals v (which may be nil) into a field value
// bounded to maxJSONPayload bytes, applying the truncation/failure
// sentinels spec.md §3 and §4.3 require.
func encodeJSONField(v any) *string {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		s := serializationFailedSentinel
		return &s
	}
	if len(b) > maxJSONPayload {
		s := truncSentinel
		return &s
	}
	s := string(b)
	return &s
}

// NewEntry builds an Entry from call parameters the way
// Record(toolType, target, input, result, success, durationMs, error,
// subjectId) in spec.md §4.3 describes. The returned entry's ID is
// assigned here so callers can learn it before the entry is actually
// committed by the background consumer.
func NewEntry(toolType, target string, input, result any, success bool, durationMs int64, errMsg, subjectID string) Entry {
	now := time.Now().UTC()
	return Entry{
		ID:           uuid.New(),
		TimestampUTC: now,
		ToolType:     truncateString(toolType, maxToolTypeLen),
		Target:       truncateString(target, maxTargetLen),
		InputJSON:    encodeJSONField(input),
		ResultJSON:   encodeJSONField(result),
		Success:      success,
		DurationMs:   durationMs,
		ErrorMessage: truncateString(errMsg, maxErrorLen),
		ConnectionID: truncateString(subjectID, maxConnIDLen),
		UpdatedUTC:   now,
	}
}
