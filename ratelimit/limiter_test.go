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

package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckLimitUnderBudget(t *testing.T) {
	l := New(WithLimits(map[string]int{"ping": 2, "default": 30}))
	l.Record("sub1", "ping")
	limited, retry := l.CheckLimit("sub1", "ping")
	assert.False(t, limited)
	assert.Zero(t, retry)
}

func TestCheckLimitOverBudget(t *testing.T) {
	clock := time.Now()
	l := New(
		WithLimits(map[string]int{"ping": 2, "default": 30}),
		withClock(func() time.Time { return clock }),
	)
	l.Record("sub1", "ping")
	l.Record("sub1", "ping")
	limited, retry := l.CheckLimit("sub1", "ping")
	require.True(t, limited)
	assert.Equal(t, 60, retry)

	clock = clock.Add(61 * time.Second)
	limited, _ = l.CheckLimit("sub1", "ping")
	assert.False(t, limited, "window should have expired")
}

func TestUnknownOperationUsesDefault(t *testing.T) {
	l := New(WithLimits(map[string]int{"default": 1}))
	l.Record("sub1", "whois")
	limited, _ := l.CheckLimit("sub1", "whois")
	assert.True(t, limited)
}

func TestSubjectsAreIsolated(t *testing.T) {
	l := New(WithLimits(map[string]int{"ping": 1, "default": 30}))
	l.Record("sub1", "ping")
	limitedA, _ := l.CheckLimit("sub1", "ping")
	limitedB, _ := l.CheckLimit("sub2", "ping")
	assert.True(t, limitedA)
	assert.False(t, limitedB)
}

func TestTryStartScanEnforcesConcurrencyCap(t *testing.T) {
	l := New(WithMaxConcurrentScans(1))
	assert.True(t, l.TryStartScan("sub1"))
	assert.False(t, l.TryStartScan("sub1"), "second concurrent scan should be rejected")
	l.EndScan("sub1")
	assert.True(t, l.TryStartScan("sub1"), "slot should be freed after EndScan")
}

func TestEndScanNeverGoesNegative(t *testing.T) {
	l := New()
	l.EndScan("sub1")
	assert.Equal(t, 0, l.ActiveScans("sub1"))
}

func TestCleanupRemovesSubjectState(t *testing.T) {
	l := New(WithLimits(map[string]int{"ping": 1, "default": 30}))
	l.Record("sub1", "ping")
	l.TryStartScan("sub1")
	l.Cleanup("sub1")

	limited, _ := l.CheckLimit("sub1", "ping")
	assert.False(t, limited, "cleanup should drop recorded windows")
	assert.Equal(t, 0, l.ActiveScans("sub1"))
}
