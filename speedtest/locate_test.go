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

package speedtest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocateSelectsDownloadAndUploadURLs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"machine":"mlab1-lga01","urls":{
			"wss:///ndt/v7/download": "wss://mlab1-lga01.example.com/ndt/v7/download",
			"wss:///ndt/v7/upload": "wss://mlab1-lga01.example.com/ndt/v7/upload"
		}}]}`))
	}))
	defer server.Close()

	result, err := Locate(context.Background(), server.Client(), server.URL, ClientMetadata{ClientName: "manlab"})
	require.NoError(t, err)
	assert.Equal(t, "mlab1-lga01", result.Machine)
	assert.Contains(t, result.DownloadURL, "/ndt/v7/download")
	assert.Contains(t, result.DownloadURL, "client_name=manlab")
	assert.Contains(t, result.UploadURL, "/ndt/v7/upload")
}

func TestLocateReportsNoCapacityOn204(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	_, err := Locate(context.Background(), server.Client(), server.URL, ClientMetadata{})
	assert.ErrorContains(t, err, "no capacity")
}

func TestLocateReportsNoCapacityOnEmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	_, err := Locate(context.Background(), server.Client(), server.URL, ClientMetadata{})
	assert.ErrorContains(t, err, "no capacity")
}
