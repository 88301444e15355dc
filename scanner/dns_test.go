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
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupRecordsDropsExactDuplicates(t *testing.T) {
	recs := []DnsRecord{
		{Name: "example.com", Type: RecordA, Value: "1.2.3.4"},
		{Name: "example.com", Type: RecordA, Value: "1.2.3.4"},
		{Name: "example.com", Type: RecordA, Value: "5.6.7.8"},
	}
	out := dedupRecords(recs)
	assert.Len(t, out, 2)
}

func TestDedupRecordsKeepsDistinctPriority(t *testing.T) {
	p1, p2 := uint16(10), uint16(20)
	recs := []DnsRecord{
		{Name: "example.com", Type: RecordMX, Value: "mx1.example.com", Priority: &p1},
		{Name: "example.com", Type: RecordMX, Value: "mx1.example.com", Priority: &p2},
	}
	out := dedupRecords(recs)
	assert.Len(t, out, 2)
}

func TestRecordsFromMsgParsesA(t *testing.T) {
	msg := new(dns.Msg)
	rr, err := dns.NewRR("example.com. 300 IN A 93.184.216.34")
	require.NoError(t, err)
	msg.Answer = []dns.RR{rr}

	recs := recordsFromMsg("example.com", RecordA, msg)
	require.Len(t, recs, 1)
	assert.Equal(t, "93.184.216.34", recs[0].Value)
	require.NotNil(t, recs[0].TTL)
	assert.Equal(t, uint32(300), *recs[0].TTL)
}

func TestRecordsFromMsgParsesMxWithPriority(t *testing.T) {
	msg := new(dns.Msg)
	rr, err := dns.NewRR("example.com. 300 IN MX 10 mail.example.com.")
	require.NoError(t, err)
	msg.Answer = []dns.RR{rr}

	recs := recordsFromMsg("example.com", RecordMX, msg)
	require.Len(t, recs, 1)
	assert.Equal(t, "mail.example.com", recs[0].Value)
	require.NotNil(t, recs[0].Priority)
	assert.Equal(t, uint16(10), *recs[0].Priority)
}

func TestReverseTargetsUsesIPLiteralDirectly(t *testing.T) {
	targets := reverseTargets("8.8.8.8", nil)
	assert.Equal(t, []string{"8.8.8.8"}, targets)
}

func TestReverseTargetsCollectsResolvedAddresses(t *testing.T) {
	records := []DnsRecord{
		{Type: RecordA, Value: "1.2.3.4"},
		{Type: RecordTXT, Value: "unrelated"},
		{Type: RecordAAAA, Value: "::1"},
	}
	targets := reverseTargets("example.com", records)
	assert.ElementsMatch(t, []string{"1.2.3.4", "::1"}, targets)
}
