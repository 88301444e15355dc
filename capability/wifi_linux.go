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
	"bufio"
	"strconv"
	"strings"

	"github.com/vishvananda/netlink"

	"github.com/raulshma/manlab/system/exec"
)

// LinuxWifi enumerates wireless interfaces via netlink (the same
// library backing LinuxArp) and scans for nearby networks by shelling
// out to `iw`, in the spirit of the teacher's system/exec.Cmd
// abstraction over os/exec. `iw` itself remains an external
// collaborator: if it isn't installed, Scan degrades to an empty
// result rather than failing the caller.
type LinuxWifi struct{}

func NewLinuxWifi() *LinuxWifi { return &LinuxWifi{} }

func (LinuxWifi) ListAdapters() ([]WifiAdapterInfo, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, err
	}
	var out []WifiAdapterInfo
	for _, l := range links {
		if l.Type() != "device" || (!strings.HasPrefix(l.Attrs().Name, "wlan") && !strings.HasPrefix(l.Attrs().Name, "wlp")) {
			continue
		}
		out = append(out, WifiAdapterInfo{
			Name: l.Attrs().Name,
			MAC:  l.Attrs().HardwareAddr.String(),
		})
	}
	return out, nil
}

func (LinuxWifi) Scan(adapterName string) ([]WifiNetwork, error) {
	cmd := exec.Command("iw", "dev", adapterName, "scan")
	out, err := cmd.CombinedOutput()
	if err != nil {
		if exec.IsCmdNotFound(err) {
			plog.Warningf("iw not installed, wifi scan on %s degraded to empty result", adapterName)
			return nil, nil
		}
		return nil, err
	}
	return parseIwScan(out), nil
}

// parseIwScan extracts SSID/signal/channel/security from `iw scan`'s
// plain-text output. Tolerant of missing fields: a BSS block with no
// recognized SSID line is simply dropped.
func parseIwScan(out []byte) []WifiNetwork {
	var networks []WifiNetwork
	var cur *WifiNetwork

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "BSS "):
			if cur != nil && cur.SSID != "" {
				networks = append(networks, *cur)
			}
			fields := strings.Fields(line)
			bssid := strings.TrimSuffix(fields[1], "(on")
			cur = &WifiNetwork{BSSID: bssid}
		case cur == nil:
			continue
		case strings.HasPrefix(line, "SSID:"):
			cur.SSID = strings.TrimSpace(strings.TrimPrefix(line, "SSID:"))
		case strings.HasPrefix(line, "signal:"):
			f := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(line, "signal:"), "dBm"))
			if v, err := strconv.ParseFloat(f, 64); err == nil {
				cur.SignalDBm = int(v)
			}
		case strings.HasPrefix(line, "DS Parameter set: channel"):
			if v, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "DS Parameter set: channel"))); err == nil {
				cur.Channel = v
			}
		case strings.Contains(line, "WPA") || strings.Contains(line, "RSN"):
			cur.Security = "WPA"
		}
	}
	if cur != nil && cur.SSID != "" {
		networks = append(networks, *cur)
	}
	return networks
}
