// Copyright 2025 Justin P Barnett
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

package llm

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
)

// newStreamingClient builds an HTTP client suitable for long-lived streaming
// responses. No client-level timeout; stream lifetime is bounded by the
// request context.
func newStreamingClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       6 * time.Minute,
			ResponseHeaderTimeout: 60 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}
}

// apiErrorEnvelope matches the error body shape shared by OpenAI-compatible
// APIs and, loosely, the other providers.
type apiErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// readAPIError turns a non-200 provider response into an error carrying the
// provider's own message where one can be extracted.
func readAPIError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxEventSize))

	var envelope apiErrorEnvelope
	if err := sonic.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return fmt.Errorf("%s returned %d: %s", provider, resp.StatusCode, envelope.Error.Message)
	}
	if len(body) > 0 {
		return fmt.Errorf("%s returned %d: %s", provider, resp.StatusCode, string(body))
	}
	return fmt.Errorf("%s returned %d", provider, resp.StatusCode)
}
