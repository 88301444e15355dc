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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryProvidersSkipsUnreachableAndUsesNextProvider(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("203.0.113.7"))
	}))
	defer good.Close()

	e := New()
	providers := []ipProvider{
		{name: "dead", url: "http://127.0.0.1:1", extract: plainTextExtract},
		{name: "good", url: good.URL, extract: plainTextExtract},
	}

	ip, provider, ok := e.queryProviders(providers)
	require.True(t, ok)
	assert.Equal(t, "203.0.113.7", ip)
	assert.Equal(t, "good", provider)
}

func TestQueryProvidersSkipsUnparseableBody(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not-an-ip"))
	}))
	defer bad.Close()

	e := New()
	_, _, ok := e.queryProviders([]ipProvider{{name: "bad", url: bad.URL, extract: plainTextExtract}})
	assert.False(t, ok)
}

func TestJSONIPFieldExtract(t *testing.T) {
	assert.Equal(t, "198.51.100.9", jsonIPFieldExtract([]byte(`{"ip":"198.51.100.9"}`)))
	assert.Equal(t, "", jsonIPFieldExtract([]byte("not json")))
}
