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
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DefaultLocateBase is the production M-Lab locate service.
const DefaultLocateBase = "https://locate.measurementlab.net"

const (
	defaultServiceName = "ndt"
	defaultServiceType = "ndt7"
)

type locateResponse struct {
	Results []struct {
		Machine string              `json:"machine"`
		URLs    map[string]string   `json:"urls"`
	} `json:"results"`
}

// Locate queries locateBase for a nearby ndt7 server and returns the
// download/upload WebSocket URLs, with client metadata appended as
// query parameters to both. A 204 No Content response (or an empty
// result set) surfaces as an error describing "no capacity".
func Locate(ctx context.Context, httpClient *http.Client, locateBase string, meta ClientMetadata) (LocateResult, error) {
	if locateBase == "" {
		locateBase = DefaultLocateBase
	}

	reqURL := fmt.Sprintf("%s/v2/nearest/%s/%s", strings.TrimRight(locateBase, "/"), defaultServiceName, defaultServiceType)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return LocateResult{}, fmt.Errorf("build locate request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return LocateResult{}, fmt.Errorf("query locate service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return LocateResult{}, fmt.Errorf("locate service reports no capacity")
	}
	if resp.StatusCode != http.StatusOK {
		return LocateResult{}, fmt.Errorf("locate service returned status %d", resp.StatusCode)
	}

	var parsed locateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return LocateResult{}, fmt.Errorf("decode locate response: %w", err)
	}
	if len(parsed.Results) == 0 {
		return LocateResult{}, fmt.Errorf("locate service reports no capacity")
	}

	first := parsed.Results[0]
	downloadURL, err := selectAndAnnotate(first.URLs, "/ndt/v7/download", meta)
	if err != nil {
		return LocateResult{}, err
	}
	uploadURL, err := selectAndAnnotate(first.URLs, "/ndt/v7/upload", meta)
	if err != nil {
		return LocateResult{}, err
	}

	return LocateResult{Machine: first.Machine, DownloadURL: downloadURL, UploadURL: uploadURL}, nil
}

// selectAndAnnotate finds the URL whose path contains pathSubstr and
// appends client-identification query parameters to it.
func selectAndAnnotate(urls map[string]string, pathSubstr string, meta ClientMetadata) (string, error) {
	for _, raw := range urls {
		if !strings.Contains(raw, pathSubstr) {
			continue
		}
		parsed, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("parse locate URL %q: %w", raw, err)
		}
		q := parsed.Query()
		if meta.ClientName != "" {
			q.Set("client_name", meta.ClientName)
		}
		if meta.ClientVersion != "" {
			q.Set("client_version", meta.ClientVersion)
		}
		if meta.ClientLibraryName != "" {
			q.Set("client_library_name", meta.ClientLibraryName)
		}
		if meta.ClientLibraryVersion != "" {
			q.Set("client_library_version", meta.ClientLibraryVersion)
		}
		parsed.RawQuery = q.Encode()
		return parsed.String(), nil
	}
	return "", fmt.Errorf("no URL found containing %q", pathSubstr)
}
