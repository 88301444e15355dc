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
	"encoding/json"
	"io"
	"net"
	"strings"
)

// ipProvider is one external service GetPublicIP can query for this
// host's egress address, plus how to pull the address out of its
// response body.
type ipProvider struct {
	name    string
	url     string
	extract func([]byte) string
}

func plainTextExtract(body []byte) string {
	return strings.TrimSpace(string(body))
}

func jsonIPFieldExtract(body []byte) string {
	var v struct {
		IP string `json:"ip"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return ""
	}
	return v.IP
}

var ipv4Providers = []ipProvider{
	{name: "ipify", url: "https://api.ipify.org", extract: plainTextExtract},
	{name: "ifconfig.co", url: "https://ifconfig.co/ip", extract: plainTextExtract},
	{name: "ipinfo.io", url: "https://ipinfo.io/json", extract: jsonIPFieldExtract},
}

var ipv6Providers = []ipProvider{
	{name: "ipify", url: "https://api64.ipify.org", extract: plainTextExtract},
	{name: "icanhazip", url: "https://ipv6.icanhazip.com", extract: plainTextExtract},
}

// GetPublicIP probes IPv4 and IPv6 provider lists independently,
// returning the first provider that answers for each family.
// Providers are tried in order; a provider that times out or returns
// an unparseable body is skipped rather than failing the whole call.
func (e *Engine) GetPublicIP() PublicIPResult {
	var result PublicIPResult

	if ip, provider, ok := e.queryProviders(ipv4Providers); ok {
		result.IPv4 = ip
		result.IPv4Provider = provider
	}
	if ip, provider, ok := e.queryProviders(ipv6Providers); ok {
		result.IPv6 = ip
		result.IPv6Provider = provider
	}
	return result
}

func (e *Engine) queryProviders(providers []ipProvider) (ip string, provider string, ok bool) {
	for _, p := range providers {
		resp, err := e.httpClient.Get(p.url)
		if err != nil {
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			continue
		}
		candidate := p.extract(body)
		parsed := net.ParseIP(candidate)
		if parsed == nil {
			continue
		}
		return parsed.String(), p.name, true
	}
	return "", "", false
}
