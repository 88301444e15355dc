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

//go:build linux

package capability

import (
	"net"
	"testing"
)

var (
	_ ArpAdapter  = LinuxArp{}
	_ WifiAdapter = LinuxWifi{}
)

func TestNetlinkFamilySelection(t *testing.T) {
	if netlinkFamily(net.ParseIP("10.0.0.1")) == netlinkFamily(net.ParseIP("::1")) {
		t.Fatal("expected distinct netlink families for v4 and v6 addresses")
	}
}
