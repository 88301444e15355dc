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
	"net"

	"github.com/oschwald/geoip2-golang"
)

// MmdbGeo resolves IP addresses against a MaxMind-format database
// (City + ASN editions merged into one lookup), via the same reader
// library used for IP enrichment elsewhere in the retrieval pack
// (geoip2-golang/maxminddb-golang). Reading and distributing the
// database file itself is out of scope (spec.md §1); this adapter
// only owns the open-handle-and-query seam.
type MmdbGeo struct {
	city *geoip2.Reader
	asn  *geoip2.Reader
}

// OpenMmdbGeo opens a City-edition MMDB at cityPath and, optionally
// (if asnPath is non-empty), an ASN-edition MMDB for ISP/AS
// enrichment. Either reader may be nil if unavailable; Lookup degrades
// gracefully, filling only the fields its open readers can answer.
func OpenMmdbGeo(cityPath, asnPath string) (*MmdbGeo, error) {
	g := &MmdbGeo{}
	if cityPath != "" {
		r, err := geoip2.Open(cityPath)
		if err != nil {
			return nil, err
		}
		g.city = r
	}
	if asnPath != "" {
		r, err := geoip2.Open(asnPath)
		if err != nil {
			return nil, err
		}
		g.asn = r
	}
	return g, nil
}

// Close releases the underlying MMDB file handles.
func (g *MmdbGeo) Close() error {
	var firstErr error
	if g.city != nil {
		firstErr = g.city.Close()
	}
	if g.asn != nil {
		if err := g.asn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (g *MmdbGeo) Lookup(ip net.IP) (GeoInfo, bool, error) {
	var info GeoInfo
	found := false

	if g.city != nil {
		rec, err := g.city.City(ip)
		if err != nil {
			return GeoInfo{}, false, err
		}
		if rec.Country.IsoCode != "" {
			found = true
			info.CountryCode = rec.Country.IsoCode
			info.Country = rec.Country.Names["en"]
			if len(rec.Subdivisions) > 0 {
				info.Region = rec.Subdivisions[0].Names["en"]
			}
			info.City = rec.City.Names["en"]
			info.Lat = rec.Location.Latitude
			info.Lon = rec.Location.Longitude
			info.HasLatLon = rec.Location.Latitude != 0 || rec.Location.Longitude != 0
		}
	}

	if g.asn != nil {
		rec, err := g.asn.ASN(ip)
		if err != nil {
			return GeoInfo{}, false, err
		}
		if rec.AutonomousSystemNumber != 0 {
			found = true
			info.ASN = int(rec.AutonomousSystemNumber)
			info.ISP = rec.AutonomousSystemOrganization
		}
	}

	return info, found, nil
}
