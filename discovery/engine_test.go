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

package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestScanCompletesWithinDeadline exercises the full mDNS+SSDP scan
// path end to end. Sandboxes without multicast access simply see zero
// devices from each source; the only invariant checked here is that
// Scan always returns within its configured window rather than
// hanging on unavailable multicast sockets.
func TestScanCompletesWithinDeadline(t *testing.T) {
	e := New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := e.Scan(ctx, ScanOptions{ScanDuration: 300 * time.Millisecond, MdnsTypes: []string{"_http._tcp"}})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, 1, result.TypesScanned)
}
