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
	"net/http"
	"time"

	"github.com/raulshma/manlab/capability"
)

// Engine is ScannerEngine: a holder for the shared HTTP client and
// capability adapters every probe method needs, and nothing more —
// per spec.md §9's "no process-wide mutable state" note, callers
// construct one Engine (or several, for tests) rather than reaching
// for package-level globals.
type Engine struct {
	httpClient *http.Client
	arp        capability.ArpAdapter
	oui        capability.OuiAdapter
	geo        capability.GeoAdapter
}

// Option configures an Engine.
type Option func(*Engine)

func WithHTTPClient(c *http.Client) Option { return func(e *Engine) { e.httpClient = c } }
func WithArp(a capability.ArpAdapter) Option { return func(e *Engine) { e.arp = a } }
func WithOui(o capability.OuiAdapter) Option { return func(e *Engine) { e.oui = o } }
func WithGeo(g capability.GeoAdapter) Option { return func(e *Engine) { e.geo = g } }

// New constructs an Engine with a 10s-timeout default HTTP client and
// no-op capability adapters; callers wire real adapters via Options.
func New(opts ...Option) *Engine {
	e := &Engine{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		arp:        capability.NoopArp{},
		oui:        capability.NoopOui{},
		geo:        capability.NoopGeo{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
