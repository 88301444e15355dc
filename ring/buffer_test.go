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

package ring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferBasic(t *testing.T) {
	b := New[int](3)
	assert.Equal(t, 3, b.Capacity())
	assert.False(t, b.Add(1))
	assert.False(t, b.Add(2))
	assert.Equal(t, []int{1, 2}, b.GetRecent(10))
}

func TestBufferEvictsOldest(t *testing.T) {
	b := New[int](3)
	for i := 1; i <= 5; i++ {
		b.Add(i)
	}
	require.Equal(t, 3, b.Count())
	assert.Equal(t, []int{3, 4, 5}, b.GetRecent(10))
	assert.EqualValues(t, 2, b.DroppedCount())
}

func TestBufferGetRecentN(t *testing.T) {
	b := New[int](5)
	for i := 1; i <= 5; i++ {
		b.Add(i)
	}
	assert.Equal(t, []int{4, 5}, b.GetRecent(2))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, b.GetRecent(100))
	assert.Nil(t, b.GetRecent(0))
}

func TestBufferResetClearsDropCounter(t *testing.T) {
	b := New[int](2)
	b.Add(1)
	b.Add(2)
	b.Add(3)
	require.EqualValues(t, 1, b.DroppedCount())
	b.Reset()
	assert.Equal(t, 0, b.Count())
	assert.EqualValues(t, 0, b.DroppedCount())
	assert.Nil(t, b.GetRecent(5))
}

func TestBufferClearKeepsDropCounter(t *testing.T) {
	b := New[int](2)
	b.Add(1)
	b.Add(2)
	b.Add(3)
	b.Clear()
	assert.Equal(t, 0, b.Count())
	assert.EqualValues(t, 1, b.DroppedCount())
}

// TestBufferInvariant exercises the universally-quantified invariant:
// for any sequence of Adds, GetRecent(n) returns at most
// min(capacity, n, totalAdds) items, the most recent, in order; and
// DroppedCount == max(0, totalAdds-capacity) until Reset.
func TestBufferInvariant(t *testing.T) {
	const capacity = 7
	b := New[int](capacity)
	total := 0
	for i := 0; i < 50; i++ {
		total++
		b.Add(i)

		want := total
		if want > capacity {
			want = capacity
		}
		assert.Equal(t, want, b.Count())

		wantDropped := total - capacity
		if wantDropped < 0 {
			wantDropped = 0
		}
		assert.EqualValues(t, wantDropped, b.DroppedCount())

		recent := b.GetRecent(1000)
		assert.LessOrEqual(t, len(recent), capacity)
		for j, v := range recent {
			if j > 0 {
				assert.Equal(t, recent[j-1]+1, v)
			}
		}
	}
}

func TestBufferConcurrentAdd(t *testing.T) {
	b := New[int](100)
	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b.Add(base*100 + i)
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, 100, b.Count())
}
