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

package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandCIDRSlash30ExcludesNetworkAndBroadcast(t *testing.T) {
	ips, err := ExpandCIDR("192.168.1.0/30")
	require.NoError(t, err)
	require.Len(t, ips, 2)
	assert.Equal(t, "192.168.1.1", ips[0].String())
	assert.Equal(t, "192.168.1.2", ips[1].String())
}

func TestExpandCIDRSlash24Has254Hosts(t *testing.T) {
	ips, err := ExpandCIDR("10.0.0.0/24")
	require.NoError(t, err)
	assert.Len(t, ips, 254)
	assert.Equal(t, "10.0.0.1", ips[0].String())
	assert.Equal(t, "10.0.0.254", ips[len(ips)-1].String())
}

func TestExpandCIDRSlash23IncludesAllAddresses(t *testing.T) {
	ips, err := ExpandCIDR("10.0.0.0/23")
	require.NoError(t, err)
	assert.Len(t, ips, 512)
	assert.Equal(t, "10.0.0.0", ips[0].String())
	assert.Equal(t, "10.0.1.255", ips[len(ips)-1].String())
}

func TestExpandCIDRRejectsOversizeRange(t *testing.T) {
	_, err := ExpandCIDR("10.0.0.0/15")
	assert.Error(t, err)
}

func TestExpandCIDRAllowsExactly65536(t *testing.T) {
	ips, err := ExpandCIDR("10.0.0.0/16")
	require.NoError(t, err)
	assert.Len(t, ips, 65536)
}

func TestExpandCIDRRejectsMalformed(t *testing.T) {
	_, err := ExpandCIDR("not-a-cidr")
	assert.Error(t, err)
}

func TestExpandCIDRRejectsIPv6(t *testing.T) {
	_, err := ExpandCIDR("2001:db8::/64")
	assert.Error(t, err)
}
