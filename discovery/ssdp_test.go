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

package discovery

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSSDPResponseExtractsHeaders(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\n" +
		"CACHE-CONTROL: max-age=1800\r\n" +
		"ST: upnp:rootdevice\r\n" +
		"USN: uuid:abc-123::upnp:rootdevice\r\n" +
		"LOCATION: http://192.168.1.5:1900/desc.xml\r\n" +
		"SERVER: Linux/1.0 UPnP/1.0 Router/1.0\r\n\r\n"

	peer := &net.UDPAddr{IP: net.ParseIP("192.168.1.5"), Port: 1900}
	dev, ok := parseSSDPResponse([]byte(raw), peer)
	require.True(t, ok)
	assert.Equal(t, "uuid:abc-123::upnp:rootdevice", dev.USN)
	assert.Equal(t, "upnp:rootdevice", dev.SearchTarget)
	assert.Equal(t, "http://192.168.1.5:1900/desc.xml", dev.Location)
	assert.Equal(t, "192.168.1.5", dev.IPAddress)
}

func TestParseSSDPResponseRejectsMissingUSN(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nST: upnp:rootdevice\r\n\r\n"
	peer := &net.UDPAddr{IP: net.ParseIP("192.168.1.5"), Port: 1900}
	_, ok := parseSSDPResponse([]byte(raw), peer)
	assert.False(t, ok)
}

func TestParseSSDPResponseRejectsNonHTTPStatusLine(t *testing.T) {
	raw := "NOTIFY * HTTP/1.1\r\nUSN: uuid:abc\r\n\r\n"
	peer := &net.UDPAddr{IP: net.ParseIP("192.168.1.5"), Port: 1900}
	_, ok := parseSSDPResponse([]byte(raw), peer)
	assert.False(t, ok)
}

func TestSSDPSearchRequestIsWellFormed(t *testing.T) {
	req := ssdpSearchRequest()
	assert.Contains(t, req, "M-SEARCH * HTTP/1.1")
	assert.Contains(t, req, "MAN: \"ssdp:discover\"")
	assert.Contains(t, req, ssdpMulticastAddr)
}
