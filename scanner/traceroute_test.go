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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaxTraceBatchNeverExceedsSix(t *testing.T) {
	assert.LessOrEqual(t, maxTraceBatch(), 6)
	assert.GreaterOrEqual(t, maxTraceBatch(), 1)
}

func TestUnknownTraceIsSingleUnresolvedHop(t *testing.T) {
	hops := unknownTrace(30)
	require.Len(t, hops, 1)
	assert.Equal(t, 1, hops[0].HopNumber)
}

// TestTraceRouteHopNumbersAreContiguous exercises TraceRoute end to
// end. Environments without CAP_NET_RAW/ping_group_range access
// degrade to an unknownTrace rather than erroring (see TraceRoute's
// icmp.ListenPacket probe), so this only asserts the invariant that
// holds either way: hop numbers form a gap-free prefix starting at 1.
func TestTraceRouteHopNumbersAreContiguous(t *testing.T) {
	e := New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := e.TraceRoute(ctx, "127.0.0.1", 4, 200*time.Millisecond, nil)
	require.NoError(t, err)
	require.NotEmpty(t, result.Hops)
	for i, h := range result.Hops {
		assert.Equal(t, i+1, h.HopNumber)
	}
}

func TestTraceRouteAtMostOneSuccessAndItIsLast(t *testing.T) {
	e := New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := e.TraceRoute(ctx, "127.0.0.1", 4, 200*time.Millisecond, nil)
	require.NoError(t, err)

	successCount := 0
	for i, h := range result.Hops {
		if h.Status == StatusSuccess {
			successCount++
			assert.Equal(t, len(result.Hops)-1, i, "success hop must be last")
		}
	}
	assert.LessOrEqual(t, successCount, 1)
}
