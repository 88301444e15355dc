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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastsToAllSubscribers(t *testing.T) {
	h := newHub()
	chA, _ := h.Subscribe()
	chB, _ := h.Subscribe()

	h.Broadcast(Message{ID: 1, Message: "hello"})

	select {
	case m := <-chA:
		assert.Equal(t, uint64(1), m.ID)
	case <-time.After(time.Second):
		t.Fatal("subscriber A never received broadcast")
	}
	select {
	case m := <-chB:
		assert.Equal(t, uint64(1), m.ID)
	case <-time.After(time.Second):
		t.Fatal("subscriber B never received broadcast")
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := newHub()
	ch, id := h.Subscribe()
	h.Unsubscribe(id)

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after Unsubscribe")
}

func TestHubBroadcastSkipsFullSubscriberWithoutBlocking(t *testing.T) {
	h := newHub()
	ch, _ := h.Subscribe()

	for i := 0; i < subscriberChanCapacity+5; i++ {
		h.Broadcast(Message{ID: uint64(i)})
	}

	require.Len(t, ch, subscriberChanCapacity)
}

func TestHubCloseAllClosesEverySubscriber(t *testing.T) {
	h := newHub()
	chA, _ := h.Subscribe()
	chB, _ := h.Subscribe()

	h.closeAll()

	_, okA := <-chA
	_, okB := <-chB
	assert.False(t, okA)
	assert.False(t, okB)
}
