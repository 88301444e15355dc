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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllTypesCombinesCommonAndExtended(t *testing.T) {
	all := AllTypes()
	assert.Len(t, all, len(CommonTypes)+len(ExtendedTypes))
	assert.GreaterOrEqual(t, len(all), 80, "catalog should approximate the ~90 well-known service types")
}

func TestCatalogEntriesAreWellFormedServiceTypes(t *testing.T) {
	for _, svcType := range AllTypes() {
		assert.True(t, strings.HasPrefix(svcType, "_"), "service type %q should start with underscore", svcType)
		assert.True(t, strings.HasSuffix(svcType, "._tcp") || strings.HasSuffix(svcType, "._udp"),
			"service type %q should end in ._tcp or ._udp", svcType)
	}
}

func TestCatalogHasNoDuplicates(t *testing.T) {
	seen := make(map[string]bool)
	for _, svcType := range AllTypes() {
		assert.False(t, seen[svcType], "duplicate service type %q", svcType)
		seen[svcType] = true
	}
}
