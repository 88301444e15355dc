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
	"sync"
	"time"

	"github.com/coreos/pkg/capnslog"
)

var plog = capnslog.NewPackageLogger("github.com/raulshma/manlab", "discovery")

// DefaultScanDuration is how long Scan listens when the caller passes
// a zero duration.
const DefaultScanDuration = 5 * time.Second

// Engine is DiscoveryEngine: it owns no state between scans, mirroring
// ScannerEngine's "construct one, call methods" shape.
type Engine struct{}

// New constructs a DiscoveryEngine.
func New() *Engine { return &Engine{} }

// OnMdnsDevice and OnUpnpDevice, if non-nil, fire once per newly seen
// device as soon as Scan observes it, for streaming UIs.
type ScanOptions struct {
	ScanDuration time.Duration
	MdnsTypes    []string
	OnMdnsDevice func(MdnsDevice)
	OnUpnpDevice func(UpnpDevice)
}

// Scan runs mDNS and SSDP discovery concurrently for opts.ScanDuration
// (DefaultScanDuration if zero), de-duplicating devices by their
// natural key, and returns everything observed.
func (e *Engine) Scan(ctx context.Context, opts ScanOptions) (*DiscoveryScanResult, error) {
	duration := opts.ScanDuration
	if duration <= 0 {
		duration = DefaultScanDuration
	}
	types := opts.MdnsTypes
	if len(types) == 0 {
		types = AllTypes()
	}

	scanCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	started := time.Now()

	var wg sync.WaitGroup
	var mdnsDevices []MdnsDevice
	var upnpDevices []UpnpDevice

	wg.Add(2)
	go func() {
		defer wg.Done()
		mdnsDevices = e.scanMDNS(scanCtx, types, opts.OnMdnsDevice)
	}()
	go func() {
		defer wg.Done()
		upnpDevices = e.scanSSDP(scanCtx, opts.OnUpnpDevice)
	}()
	wg.Wait()

	return &DiscoveryScanResult{
		MdnsDevices:  mdnsDevices,
		UpnpDevices:  upnpDevices,
		StartedAt:    started,
		DurationMs:   time.Since(started).Milliseconds(),
		TypesScanned: len(types),
	}, nil
}
