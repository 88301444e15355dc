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
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

var dnsTypeCodes = map[DnsRecordType]uint16{
	RecordA:     dns.TypeA,
	RecordAAAA:  dns.TypeAAAA,
	RecordCNAME: dns.TypeCNAME,
	RecordMX:    dns.TypeMX,
	RecordTXT:   dns.TypeTXT,
	RecordNS:    dns.TypeNS,
	RecordSOA:   dns.TypeSOA,
	RecordPTR:   dns.TypePTR,
	RecordSRV:   dns.TypeSRV,
	RecordCAA:   dns.TypeCAA,
}

// systemResolverAddr returns the first nameserver from the host's
// resolv.conf-equivalent, falling back to a public resolver if none
// can be read (e.g. non-POSIX hosts).
func systemResolverAddr() string {
	if cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil && len(cfg.Servers) > 0 {
		return net.JoinHostPort(cfg.Servers[0], cfg.Port)
	}
	return "1.1.1.1:53"
}

// queryOne issues a single query of type t for name against server,
// with the given timeout. retries controls how many additional
// attempts are made on timeout.
func queryOne(name string, t DnsRecordType, server string, timeout time.Duration, retries int) (*dns.Msg, time.Duration, error) {
	code, ok := dnsTypeCodes[t]
	if !ok {
		return nil, 0, fmt.Errorf("unsupported record type %q", t)
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), code)
	m.RecursionDesired = true

	c := &dns.Client{Timeout: timeout}

	var lastErr error
	var started time.Time
	for attempt := 0; attempt <= retries; attempt++ {
		started = time.Now()
		resp, _, err := c.Exchange(m, server)
		if err == nil {
			return resp, time.Since(started), nil
		}
		lastErr = err
	}
	return nil, time.Since(started), lastErr
}

func recordsFromMsg(name string, t DnsRecordType, msg *dns.Msg) []DnsRecord {
	var out []DnsRecord
	for _, rr := range msg.Answer {
		rec := DnsRecord{Name: name, Type: t}
		ttl := rr.Header().Ttl
		rec.TTL = &ttl
		switch v := rr.(type) {
		case *dns.A:
			rec.Value = v.A.String()
		case *dns.AAAA:
			rec.Value = v.AAAA.String()
		case *dns.CNAME:
			rec.Value = strings.TrimSuffix(v.Target, ".")
		case *dns.MX:
			rec.Value = strings.TrimSuffix(v.Mx, ".")
			pref := v.Preference
			rec.Priority = &pref
		case *dns.TXT:
			rec.Value = strings.Join(v.Txt, "")
		case *dns.NS:
			rec.Value = strings.TrimSuffix(v.Ns, ".")
		case *dns.SOA:
			rec.Value = fmt.Sprintf("%s %s %d %d %d %d %d",
				strings.TrimSuffix(v.Ns, "."), strings.TrimSuffix(v.Mbox, "."),
				v.Serial, v.Refresh, v.Retry, v.Expire, v.Minttl)
		case *dns.PTR:
			rec.Value = strings.TrimSuffix(v.Ptr, ".")
		case *dns.SRV:
			rec.Value = fmt.Sprintf("%s:%d", strings.TrimSuffix(v.Target, "."), v.Port)
			pref := v.Priority
			rec.Priority = &pref
		case *dns.CAA:
			rec.Value = fmt.Sprintf("%d %s %q", v.Flag, v.Tag, v.Value)
		default:
			continue
		}
		out = append(out, rec)
	}
	return out
}

func dedupRecords(records []DnsRecord) []DnsRecord {
	type key struct {
		t     DnsRecordType
		name  string
		value string
		prio  uint16
	}
	seen := make(map[key]bool)
	out := make([]DnsRecord, 0, len(records))
	for _, r := range records {
		var prio uint16
		if r.Priority != nil {
			prio = *r.Priority
		}
		k := key{r.Type, r.Name, r.Value, prio}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

// DnsLookup resolves name against the host's configured resolver,
// querying record types sequentially (A, AAAA, CNAME, MX, TXT, NS,
// SOA), with a 5s timeout and one retry per query. If includeReverse
// is set, PTR lookups are additionally performed for every resolved
// A/AAAA value (or for name itself, if it parses as an IP).
func (e *Engine) DnsLookup(name string, includeReverse bool) (DnsLookupResult, error) {
	server := systemResolverAddr()
	var all []DnsRecord

	for _, t := range DefaultLookupTypes {
		resp, _, err := queryOne(name, t, server, 5*time.Second, 1)
		if err != nil || resp == nil {
			continue
		}
		all = append(all, recordsFromMsg(name, t, resp)...)
	}

	if includeReverse {
		targets := reverseTargets(name, all)
		for _, ip := range targets {
			arpa, err := dns.ReverseAddr(ip)
			if err != nil {
				continue
			}
			resp, _, err := queryOne(strings.TrimSuffix(arpa, "."), RecordPTR, server, 5*time.Second, 1)
			if err != nil || resp == nil {
				continue
			}
			all = append(all, recordsFromMsg(ip, RecordPTR, resp)...)
		}
	}

	return DnsLookupResult{Name: name, Records: dedupRecords(all)}, nil
}

func reverseTargets(name string, records []DnsRecord) []string {
	if ip := net.ParseIP(name); ip != nil {
		return []string{name}
	}
	var out []string
	for _, r := range records {
		if r.Type == RecordA || r.Type == RecordAAAA {
			out = append(out, r.Value)
		}
	}
	return out
}

// DnsPropagationCheck queries every (server, recordType) pair in
// parallel against a non-caching direct exchange (bypassing any local
// resolver cache), so results reflect what each server itself would
// answer right now.
func (e *Engine) DnsPropagationCheck(name string, servers []string, types []DnsRecordType) []DnsPropagationServerResult {
	if len(types) == 0 {
		types = []DnsRecordType{RecordA}
	}

	results := make([]DnsPropagationServerResult, len(servers)*len(types))
	var wg sync.WaitGroup
	i := 0
	for _, server := range servers {
		for _, t := range types {
			idx := i
			server, t := server, t
			i++
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[idx] = propagationQuery(name, server, t)
			}()
		}
	}
	wg.Wait()
	return results
}

func propagationQuery(name, server string, t DnsRecordType) DnsPropagationServerResult {
	addr := server
	if _, _, err := net.SplitHostPort(server); err != nil {
		addr = net.JoinHostPort(server, "53")
	}

	resp, dur, err := queryOne(name, t, addr, 5*time.Second, 0)
	result := DnsPropagationServerResult{
		Server:     server,
		RecordType: t,
		DurationMs: dur.Milliseconds(),
	}
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Records = recordsFromMsg(name, t, resp)
	if len(result.Records) > 0 {
		result.ResolvedAddress = result.Records[0].Value
	}
	return result
}
