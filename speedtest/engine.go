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

package speedtest

import (
	"context"
	"net/http"
	"time"
)

// Engine is SpeedTestEngine: a holder for the shared HTTP client and
// client-identification metadata every run needs.
type Engine struct {
	httpClient      *http.Client
	locateBase      string
	meta            ClientMetadata
	maxTestDuration time.Duration
	downloadBytes   int64
	uploadBytes     int64
}

// Option configures an Engine.
type Option func(*Engine)

func WithHTTPClient(c *http.Client) Option { return func(e *Engine) { e.httpClient = c } }
func WithLocateBase(base string) Option    { return func(e *Engine) { e.locateBase = base } }
func WithClientMetadata(m ClientMetadata) Option {
	return func(e *Engine) { e.meta = m }
}

// WithMaxTestDuration overrides the upload phase's time ceiling
// (DefaultMaxTestSeconds otherwise); primarily useful for tests.
func WithMaxTestDuration(d time.Duration) Option {
	return func(e *Engine) { e.maxTestDuration = d }
}

// WithByteTargets overrides the download/upload byte ceilings used
// when the server never closes the connection on its own; primarily
// useful for tests.
func WithByteTargets(downloadBytes, uploadBytes int64) Option {
	return func(e *Engine) {
		e.downloadBytes = downloadBytes
		e.uploadBytes = uploadBytes
	}
}

// New constructs an Engine pointed at the production M-Lab locate
// service by default.
func New(opts ...Option) *Engine {
	e := &Engine{
		httpClient:      &http.Client{Timeout: 15 * time.Second},
		locateBase:      DefaultLocateBase,
		maxTestDuration: DefaultMaxTestSeconds,
		downloadBytes:   DefaultDownloadBytes,
		uploadBytes:     DefaultUploadBytes,
		meta: ClientMetadata{
			ClientName:           "manlab",
			ClientLibraryName:    "manlab-speedtest",
			ClientLibraryVersion: "1.0",
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run discovers a nearby ndt7 server and runs download then upload,
// reporting progress through onProgress (throttled to one update per
// 250ms per phase, plus a forced final update). If neither phase
// collected a latency sample the whole Run fails: without any RTT
// sample the result's latency fields are meaningless. One phase with
// zero samples does not fail the Run on its own.
func (e *Engine) Run(ctx context.Context, onProgress func(Progress)) Result {
	started := time.Now()
	result := Result{StartedAt: started}

	located, err := Locate(ctx, e.httpClient, e.locateBase, e.meta)
	if err != nil {
		result.Error = err.Error()
		result.DurationMs = time.Since(started).Milliseconds()
		return result
	}
	result.Machine = located.Machine

	downloadMbps, downloadLatency, err := runDownload(ctx, located.DownloadURL, e.downloadBytes, onProgress)
	if err != nil {
		result.Error = err.Error()
		result.DurationMs = time.Since(started).Milliseconds()
		return result
	}
	result.DownloadMbps = downloadMbps
	result.DownloadLatency = downloadLatency

	uploadMbps, uploadLatency, err := runUpload(ctx, located.UploadURL, e.uploadBytes, e.maxTestDuration, onProgress)
	if err != nil {
		result.Error = err.Error()
		result.DurationMs = time.Since(started).Milliseconds()
		return result
	}
	result.UploadMbps = uploadMbps
	result.UploadLatency = uploadLatency

	if downloadLatency.Samples == 0 && uploadLatency.Samples == 0 {
		result.Error = "Latency samples unavailable for this run"
		result.DurationMs = time.Since(started).Milliseconds()
		return result
	}

	result.Success = true
	result.DurationMs = time.Since(started).Milliseconds()
	return result
}
