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

package capability

import (
	"bufio"
	"io"
	"strings"
	"sync"

	"github.com/coreos/pkg/capnslog"
)

var plog = capnslog.NewPackageLogger("github.com/raulshma/manlab", "capability")

// FileOui is an OuiAdapter backed by an in-memory table loaded from a
// Wireshark-style "manuf" text file (lines of "XX:XX:XX<tab>Vendor",
// '#' comments ignored). Parsing the OUI database itself is out of
// scope (spec.md §1); this type only owns the lookup table shape and
// the line-oriented load, grounded on util.LogFrom's
// bufio.Scanner-over-io.Reader pattern.
type FileOui struct {
	mu    sync.RWMutex
	table map[string]string
}

// NewFileOui constructs an empty table. Call Load to populate it.
func NewFileOui() *FileOui {
	return &FileOui{table: make(map[string]string)}
}

// Load replaces the adapter's table with entries parsed from r.
// Malformed lines are skipped; a parse error on one line doesn't
// abort the rest of the file.
func (o *FileOui) Load(r io.Reader) error {
	table := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			parts = strings.SplitN(line, " ", 2)
		}
		if len(parts) != 2 {
			continue
		}
		prefix := normalizeOuiPrefix(parts[0])
		vendor := strings.TrimSpace(parts[1])
		if prefix == "" || vendor == "" {
			continue
		}
		table[prefix] = vendor
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	o.mu.Lock()
	o.table = table
	o.mu.Unlock()
	plog.Infof("loaded %d OUI entries", len(table))
	return nil
}

func (o *FileOui) Lookup(mac string) (string, bool) {
	prefix := normalizeOuiPrefix(mac)
	if prefix == "" {
		return "", false
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.table[prefix]
	return v, ok
}

// normalizeOuiPrefix extracts the first three octets of a MAC address
// (or manuf-file prefix) as uppercase "XX:XX:XX", tolerant of both
// ':' and '-' separators.
func normalizeOuiPrefix(s string) string {
	s = strings.ToUpper(strings.NewReplacer("-", ":").Replace(strings.TrimSpace(s)))
	parts := strings.Split(s, ":")
	if len(parts) < 3 {
		return ""
	}
	for _, p := range parts[:3] {
		if len(p) != 2 {
			return ""
		}
	}
	return strings.Join(parts[:3], ":")
}
