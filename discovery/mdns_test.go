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

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
)

func TestSplitTxtRecordParsesKeyValue(t *testing.T) {
	key, value := splitTxtRecord("model=ManLab-1")
	assert.Equal(t, "model", key)
	assert.Equal(t, "ManLab-1", value)
}

func TestSplitTxtRecordHandlesFlagOnlyEntry(t *testing.T) {
	key, value := splitTxtRecord("secure")
	assert.Equal(t, "secure", key)
	assert.Equal(t, "", value)
}

func TestMdnsDeviceFromEntryPrefersIPv4(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: "Living Room"},
		HostName:      "livingroom.local.",
		Port:          8009,
		AddrIPv4:      []net.IP{net.ParseIP("192.168.1.50")},
		AddrIPv6:      []net.IP{net.ParseIP("fe80::1")},
		Text:          []string{"id=abc123", "rm=1"},
	}

	dev := mdnsDeviceFromEntry("_googlecast._tcp", entry)
	assert.Equal(t, "192.168.1.50", dev.IPAddress)
	assert.Equal(t, "Living Room", dev.InstanceName)
	assert.Equal(t, "abc123", dev.TxtRecords["id"])
}

func TestMdnsDeviceKeyDedupesOnTypeAndInstance(t *testing.T) {
	a := MdnsDevice{ServiceType: "_http._tcp", InstanceName: "Printer"}
	b := MdnsDevice{ServiceType: "_http._tcp", InstanceName: "Printer"}
	c := MdnsDevice{ServiceType: "_ipp._tcp", InstanceName: "Printer"}
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}
