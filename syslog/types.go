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

// Package syslog implements a UDP syslog receiver accepting both
// RFC 5424 and RFC 3164 framed messages, retaining the most recent
// messages in a bounded ring and fanning every accepted message out
// to subscribers.
package syslog

import "time"

// Message is SyslogMessage: the parsed (or best-effort unparsed)
// record kept in the ring and delivered to subscribers. Facility and
// Severity are nil when PRI could not be determined.
type Message struct {
	ID           uint64    `json:"id"`
	ReceivedAtUTC time.Time `json:"receivedAtUtc"`
	Facility     *int      `json:"facility,omitempty"`
	Severity     *int      `json:"severity,omitempty"`
	Host         string    `json:"host,omitempty"`
	AppName      string    `json:"appName,omitempty"`
	ProcID       string    `json:"procId,omitempty"`
	MsgID        string    `json:"msgId,omitempty"`
	Message      string    `json:"message"`
	Raw          string    `json:"raw"`
	SourceIP     string    `json:"sourceIp"`
	SourcePort   int       `json:"sourcePort"`
}

const (
	unparsedSentinel     = "[syslog unparsed]"
	regexTimeoutSentinel = "[syslog regex_timeout]"
	truncatedMarker      = "[truncated]"
)
