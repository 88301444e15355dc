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

	"github.com/vishvananda/netlink"
)

// LinuxArp resolves and mutates the kernel neighbor table via
// netlink, the same library the teacher's platform/local package uses
// to set up bridge taps and links (platform/local/cluster.go).
// Scanning covers every link on the host's default network namespace;
// ManLab agents are expected to run in the host namespace rather than
// a container's.
type LinuxArp struct{}

// NewLinuxArp returns an ArpAdapter backed by the Linux neighbor
// table.
func NewLinuxArp() *LinuxArp { return &LinuxArp{} }

func (LinuxArp) Lookup(ip net.IP) (string, bool, error) {
	neighs, err := netlink.NeighList(0, netlinkFamily(ip))
	if err != nil {
		return "", false, err
	}
	for _, n := range neighs {
		if n.IP.Equal(ip) && n.HardwareAddr != nil {
			return n.HardwareAddr.String(), true, nil
		}
	}
	return "", false, nil
}

func (LinuxArp) Table() (map[string]string, error) {
	out := make(map[string]string)
	for _, family := range []int{netlink.FAMILY_V4, netlink.FAMILY_V6} {
		neighs, err := netlink.NeighList(0, family)
		if err != nil {
			continue
		}
		for _, n := range neighs {
			if n.IP == nil || n.HardwareAddr == nil {
				continue
			}
			out[n.IP.String()] = n.HardwareAddr.String()
		}
	}
	return out, nil
}

func (LinuxArp) Add(ip net.IP, mac string) error {
	hw, err := net.ParseMAC(mac)
	if err != nil {
		return err
	}
	link, err := defaultLink()
	if err != nil {
		return err
	}
	n := &netlink.Neigh{
		LinkIndex:    link.Attrs().Index,
		State:        netlink.NUD_PERMANENT,
		IP:           ip,
		HardwareAddr: hw,
		Family:       netlinkFamily(ip),
	}
	return netlink.NeighSet(n)
}

func (LinuxArp) Remove(ip net.IP) error {
	link, err := defaultLink()
	if err != nil {
		return err
	}
	n := &netlink.Neigh{
		LinkIndex: link.Attrs().Index,
		IP:        ip,
		Family:    netlinkFamily(ip),
	}
	return netlink.NeighDel(n)
}

func (LinuxArp) Flush() error {
	neighs, err := netlink.NeighList(0, netlink.FAMILY_V4)
	if err != nil {
		return err
	}
	for _, n := range neighs {
		if n.State&netlink.NUD_PERMANENT != 0 {
			continue
		}
		_ = netlink.NeighDel(&n)
	}
	return nil
}

func netlinkFamily(ip net.IP) int {
	if ip.To4() != nil {
		return netlink.FAMILY_V4
	}
	return netlink.FAMILY_V6
}

func defaultLink() (netlink.Link, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		if l.Attrs().Name != "lo" && l.Attrs().Flags&net.FlagUp != 0 {
			return l, nil
		}
	}
	if len(links) > 0 {
		return links[0], nil
	}
	return nil, &ErrUnsupported{"arp.linux", "no network links found"}
}
