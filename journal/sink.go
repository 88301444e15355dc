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
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sink is the persistence layer's seam into the journal. Real
// deployments back it with a database; per spec.md §1 the persistence
// layer/ORM is an external collaborator, so Sink is the only contract
// this package assumes about it.
type Sink interface {
	// InsertBatch commits entries already validated/truncated by
	// the journal. It must not reorder entries within the batch.
	InsertBatch(entries []Entry) error

	// Query returns a page of entries matching filter, the total
	// match count (ignoring paging), and an error.
	Query(filter Filter) ([]Entry, int, error)

	GetByID(id uuid.UUID) (Entry, bool, error)
	Delete(id uuid.UUID) (bool, error)
	DeleteOlderThan(cutoff time.Time) (int, error)
	UpdateMetadata(id uuid.UUID, tagsJSON *string, notes string) (bool, error)
}

// SortField enumerates the columns the query surface can order by.
type SortField string

const (
	SortByTimestamp SortField = "timestamp"
	SortByDuration  SortField = "duration"
	SortByTool      SortField = "tool"
	SortByTarget    SortField = "target"
	SortByStatus    SortField = "status"
)

// Filter describes a paged, sorted query over history entries.
type Filter struct {
	ToolTypes []string
	Success   *bool
	Search    string // substring search over target/tool/error
	From, To  time.Time

	SortBy    SortField
	SortDesc  bool

	Offset int
	Limit  int
}

// MemorySink is a reference in-process Sink implementation, used in
// tests and in deployments that intentionally don't persist history
// beyond the current process lifetime.
type MemorySink struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]Entry
}

// NewMemorySink constructs an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{entries: make(map[uuid.UUID]Entry)}
}

func (s *MemorySink) InsertBatch(entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.entries[e.ID] = e
	}
	return nil
}

func (s *MemorySink) GetByID(id uuid.UUID) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok, nil
}

func (s *MemorySink) Delete(id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return false, nil
	}
	delete(s.entries, id)
	return true, nil
}

func (s *MemorySink) DeleteOlderThan(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.entries {
		if e.TimestampUTC.Before(cutoff) {
			delete(s.entries, id)
			n++
		}
	}
	return n, nil
}

func (s *MemorySink) UpdateMetadata(id uuid.UUID, tagsJSON *string, notes string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return false, nil
	}
	e.TagsJSON = tagsJSON
	e.Notes = truncateString(notes, maxNotesLen)
	e.UpdatedUTC = time.Now().UTC()
	s.entries[id] = e
	return true, nil
}

func (s *MemorySink) Query(f Filter) ([]Entry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if !matches(e, f) {
			continue
		}
		matched = append(matched, e)
	}

	sortEntries(matched, f.SortBy, f.SortDesc)

	total := len(matched)
	offset := f.Offset
	if offset > total {
		offset = total
	}
	end := total
	if f.Limit > 0 && offset+f.Limit < end {
		end = offset + f.Limit
	}
	return matched[offset:end], total, nil
}

func matches(e Entry, f Filter) bool {
	if len(f.ToolTypes) > 0 {
		found := false
		for _, t := range f.ToolTypes {
			if t == e.ToolType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Success != nil && *f.Success != e.Success {
		return false
	}
	if !f.From.IsZero() && e.TimestampUTC.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.TimestampUTC.After(f.To) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		haystack := strings.ToLower(e.Target + " " + e.ToolType + " " + e.ErrorMessage)
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}

func sortEntries(entries []Entry, by SortField, desc bool) {
	less := func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch by {
		case SortByDuration:
			return a.DurationMs < b.DurationMs
		case SortByTool:
			return a.ToolType < b.ToolType
		case SortByTarget:
			return a.Target < b.Target
		case SortByStatus:
			return !a.Success && b.Success
		default: // SortByTimestamp
			return a.TimestampUTC.Before(b.TimestampUTC)
		}
	}
	if desc {
		base := less
		less = func(i, j int) bool { return base(j, i) }
	}
	sort.SliceStable(entries, less)
}
