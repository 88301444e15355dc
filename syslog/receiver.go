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

package syslog

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/coreos/pkg/capnslog"

	"github.com/raulshma/manlab/network/neterror"
	"github.com/raulshma/manlab/ring"
)

var plog = capnslog.NewPackageLogger("github.com/raulshma/manlab", "syslog")

const (
	// DefaultPort is the standard syslog UDP port.
	DefaultPort = 514
	// DefaultMaxPayloadBytes clamps a single datagram before parsing.
	DefaultMaxPayloadBytes = 8192
	// DefaultMaxBufferedMessages sizes the receiver's ring buffer.
	DefaultMaxBufferedMessages = 2000
	// udpReadBufferBytes is sized comfortably above any realistic
	// syslog datagram; oversized reads are clamped by MaxPayloadBytes
	// after the fact, not by truncating the socket read itself.
	udpReadBufferBytes = 65535
)

// Config configures a Receiver.
type Config struct {
	// Port is the UDP port to listen on. Zero means DefaultPort.
	Port int
	// MaxPayloadBytes clamps a datagram's decoded text before
	// parsing; zero means DefaultMaxPayloadBytes.
	MaxPayloadBytes int
	// MaxBufferedMessages sizes the ring buffer; zero means
	// DefaultMaxBufferedMessages.
	MaxBufferedMessages int
}

func (c Config) withDefaults() Config {
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if c.MaxPayloadBytes <= 0 {
		c.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if c.MaxBufferedMessages <= 0 {
		c.MaxBufferedMessages = DefaultMaxBufferedMessages
	}
	return c
}

// Receiver is SyslogReceiver: a UDP listener that parses every
// datagram into a Message, retains the most recent ones in a ring
// buffer, and broadcasts each accepted Message to subscribers.
type Receiver struct {
	cfg    Config
	conn   *net.UDPConn
	buf    *ring.Buffer[Message]
	hub    *hub
	nextID uint64

	mu       sync.Mutex
	stopped  bool
	wg       sync.WaitGroup
	received uint64
}

// New constructs a Receiver. It does not start listening until Start
// is called.
func New(cfg Config) *Receiver {
	cfg = cfg.withDefaults()
	return &Receiver{
		cfg: cfg,
		buf: ring.New[Message](cfg.MaxBufferedMessages),
		hub: newHub(),
	}
}

// Start binds the UDP socket and begins the receive loop in a
// background goroutine.
func (r *Receiver) Start() error {
	addr := &net.UDPAddr{Port: r.cfg.Port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("syslog: listen on port %d: %w", r.cfg.Port, err)
	}
	r.conn = conn

	r.wg.Add(1)
	go r.loop()
	return nil
}

// Stop closes the socket, waits for the receive loop to exit, and
// closes every subscriber channel.
func (r *Receiver) Stop() error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	r.mu.Unlock()

	err := r.conn.Close()
	r.wg.Wait()
	r.hub.closeAll()
	return err
}

// loop reads datagrams until the socket is closed, decoding, parsing,
// buffering, and broadcasting each one. Per-datagram errors are
// logged and do not stop the loop: this is a long-running ingestion
// path and one malformed sender must not take down the receiver.
func (r *Receiver) loop() {
	defer r.wg.Done()

	readBuf := make([]byte, udpReadBufferBytes)
	for {
		n, peer, err := r.conn.ReadFromUDP(readBuf)
		if err != nil {
			if neterror.IsClosed(err) {
				return
			}
			r.mu.Lock()
			stopped := r.stopped
			r.mu.Unlock()
			if stopped {
				return
			}
			plog.Errorf("syslog: read error: %v", err)
			continue
		}

		msg := r.ingest(readBuf[:n], peer)
		r.buf.Add(msg)
		r.hub.Broadcast(msg)
	}
}

// ingest decodes, clamps, parses, and assigns an ID to one datagram.
func (r *Receiver) ingest(payload []byte, peer *net.UDPAddr) Message {
	atomic.AddUint64(&r.received, 1)

	text := string(payload)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}

	raw := text
	truncated := false
	if len(raw) > r.cfg.MaxPayloadBytes {
		raw = raw[:r.cfg.MaxPayloadBytes] + truncatedMarker
		truncated = true
	}

	parseInput := text
	if truncated {
		parseInput = text[:r.cfg.MaxPayloadBytes]
	}
	result := parseMessage(parseInput)

	return Message{
		ID:            atomic.AddUint64(&r.nextID, 1),
		ReceivedAtUTC: time.Now().UTC(),
		Facility:      result.facility,
		Severity:      result.severity,
		Host:          result.host,
		AppName:       result.appName,
		ProcID:        result.procID,
		MsgID:         result.msgID,
		Message:       result.message,
		Raw:           raw,
		SourceIP:      peer.IP.String(),
		SourcePort:    peer.Port,
	}
}

// Subscribe registers a new subscriber. The caller must eventually
// call the returned unsubscribe function, or Stop.
func (r *Receiver) Subscribe() (<-chan Message, func()) {
	ch, id := r.hub.Subscribe()
	return ch, func() { r.hub.Unsubscribe(id) }
}

// Recent returns the n most recently buffered messages, oldest first.
func (r *Receiver) Recent(n int) []Message {
	return r.buf.GetRecent(n)
}

// BufferedCount returns the number of messages currently retained.
func (r *Receiver) BufferedCount() int {
	return r.buf.Count()
}

// DroppedCount returns how many buffered messages have been evicted.
func (r *Receiver) DroppedCount() uint64 {
	return r.buf.DroppedCount()
}

// ReceivedCount returns the total number of datagrams ingested since
// Start, including ones later dropped from the buffer.
func (r *Receiver) ReceivedCount() uint64 {
	return atomic.LoadUint64(&r.received)
}

// Addr returns the bound local address. It is nil before Start.
func (r *Receiver) Addr() net.Addr {
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}
