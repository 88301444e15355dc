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

// Package speedtest runs M-Lab ndt7 download/upload measurements:
// discover a nearby server via the M-Lab locate service, then drive
// the ndt7 WebSocket sub-protocol to measure throughput and latency.
package speedtest

import "time"

// Phase identifies which half of the test a Progress update describes.
type Phase string

const (
	PhaseDownload Phase = "download"
	PhaseUpload   Phase = "upload"
)

// ClientMetadata is appended as query parameters to both the download
// and upload URLs, identifying this client to the M-Lab server.
type ClientMetadata struct {
	ClientName           string
	ClientVersion        string
	ClientLibraryName    string
	ClientLibraryVersion string
}

// LocateResult is the pair of WebSocket URLs selected from the M-Lab
// locate service response.
type LocateResult struct {
	Machine      string
	DownloadURL  string
	UploadURL    string
}

// Progress is one throttled update emitted during Run.
type Progress struct {
	Phase            Phase
	Bytes            int64
	Target           int64
	Mbps             float64
	LatencySampleMs  float64
	SamplesCollected int
	SamplesTarget    int
	ElapsedMs        int64
}

// LatencyStats summarizes the RTT samples collected from ndt7
// measurement frames during a phase.
type LatencyStats struct {
	MinMs    float64
	MaxMs    float64
	MeanMs   float64
	JitterMs float64
	Samples  int
}

// Result is the outcome of a full download+upload Run.
type Result struct {
	Success         bool
	Error           string
	Machine         string
	DownloadMbps    float64
	UploadMbps      float64
	DownloadLatency LatencyStats
	UploadLatency   LatencyStats
	StartedAt       time.Time
	DurationMs      int64
}
