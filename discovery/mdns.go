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
	"context"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

// maxMdnsBrowseWorkers bounds how many service types are browsed in
// parallel; browsing all ~110 catalog entries one at a time would make
// the scan window meaningless.
const maxMdnsBrowseWorkers = 16

// scanMDNS browses every service type in types concurrently until ctx
// is done, de-duplicating devices by (serviceType, instanceName).
func (e *Engine) scanMDNS(ctx context.Context, types []string, onDevice func(MdnsDevice)) []MdnsDevice {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		plog.Warningf("mdns resolver unavailable, skipping scan: %v", err)
		return nil
	}

	var mu sync.Mutex
	seen := make(map[string]bool)
	var devices []MdnsDevice

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxMdnsBrowseWorkers)
	for _, svcType := range types {
		svcType := svcType
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			entries := make(chan *zeroconf.ServiceEntry, 16)
			browseDone := make(chan struct{})
			go func() {
				defer close(browseDone)
				for entry := range entries {
					dev := mdnsDeviceFromEntry(svcType, entry)
					mu.Lock()
					isNew := !seen[dev.Key()]
					if isNew {
						seen[dev.Key()] = true
						devices = append(devices, dev)
					}
					mu.Unlock()
					if isNew && onDevice != nil {
						onDevice(dev)
					}
				}
			}()

			if err := resolver.Browse(ctx, svcType, "local.", entries); err != nil {
				plog.Debugf("mdns browse %s failed: %v", svcType, err)
				return
			}
			<-ctx.Done()
			<-browseDone
		}()
	}
	wg.Wait()

	return devices
}

func mdnsDeviceFromEntry(svcType string, entry *zeroconf.ServiceEntry) MdnsDevice {
	dev := MdnsDevice{
		ServiceType:  svcType,
		InstanceName: entry.Instance,
		Hostname:     entry.HostName,
		Port:         entry.Port,
		DiscoveredAt: time.Now(),
	}
	if len(entry.AddrIPv4) > 0 {
		dev.IPAddress = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		dev.IPAddress = entry.AddrIPv6[0].String()
	}
	if len(entry.Text) > 0 {
		dev.TxtRecords = make(map[string]string, len(entry.Text))
		for _, kv := range entry.Text {
			key, value := splitTxtRecord(kv)
			dev.TxtRecords[key] = value
		}
	}
	return dev
}

func splitTxtRecord(kv string) (string, string) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:]
		}
	}
	return kv, ""
}
