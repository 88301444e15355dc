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
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestReceiver(t *testing.T, cfg Config) *Receiver {
	t.Helper()
	cfg.Port = 0 // let the OS pick a free port
	r := New(cfg)
	require.NoError(t, r.Start())
	t.Cleanup(func() { _ = r.Stop() })
	return r
}

func sendDatagram(t *testing.T, addr net.Addr, payload string) {
	t.Helper()
	conn, err := net.Dial("udp", addr.String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte(payload))
	require.NoError(t, err)
}

func TestReceiverParsesAndBuffersRFC5424Message(t *testing.T) {
	r := startTestReceiver(t, Config{})
	ch, unsub := r.Subscribe()
	defer unsub()

	sendDatagram(t, r.Addr(), `<34>1 2024-01-01T12:00:00Z host1 app1 1234 MSG1 hello world`)

	select {
	case msg := <-ch:
		require.NotNil(t, msg.Facility)
		require.NotNil(t, msg.Severity)
		assert.Equal(t, 4, *msg.Facility)
		assert.Equal(t, 2, *msg.Severity)
		assert.Equal(t, "host1", msg.Host)
		assert.Equal(t, "app1", msg.AppName)
		assert.Equal(t, "hello world", msg.Message)
		assert.Equal(t, uint64(1), msg.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive broadcast message")
	}

	assert.Equal(t, 1, r.BufferedCount())
}

func TestReceiverAssignsStrictlyIncreasingIDs(t *testing.T) {
	r := startTestReceiver(t, Config{})
	ch, unsub := r.Subscribe()
	defer unsub()

	for i := 0; i < 3; i++ {
		sendDatagram(t, r.Addr(), "<13>Jan  1 12:00:00 host cron: tick")
	}

	var ids []uint64
	for i := 0; i < 3; i++ {
		select {
		case msg := <-ch:
			ids = append(ids, msg.ID)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for message")
		}
	}
	require.Len(t, ids, 3)
	assert.Equal(t, []uint64{1, 2, 3}, ids)
}

func TestReceiverClampsOversizedPayload(t *testing.T) {
	r := startTestReceiver(t, Config{MaxPayloadBytes: 16})
	ch, unsub := r.Subscribe()
	defer unsub()

	sendDatagram(t, r.Addr(), strings.Repeat("x", 64))

	select {
	case msg := <-ch:
		assert.True(t, strings.HasSuffix(msg.Raw, truncatedMarker))
		assert.True(t, len(msg.Raw) < 64)
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive message")
	}
}

func TestReceiverFallsBackToUnparsedSentinelForGarbage(t *testing.T) {
	r := startTestReceiver(t, Config{})
	ch, unsub := r.Subscribe()
	defer unsub()

	sendDatagram(t, r.Addr(), "totally not syslog")

	select {
	case msg := <-ch:
		assert.Nil(t, msg.Facility)
		assert.Equal(t, unparsedSentinel, msg.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive message")
	}
}

func TestReceiverStopClosesSubscriberChannels(t *testing.T) {
	r := New(Config{Port: 0})
	require.NoError(t, r.Start())
	ch, _ := r.Subscribe()

	require.NoError(t, r.Stop())

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel was never closed")
	}
}
