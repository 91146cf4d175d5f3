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

package assistant

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/justinpbarnett/portfolio-chat/pkg/assistant/lib/llm"
)

// ErrorResponse is the JSON body for every non-200 chat response.
type ErrorResponse struct {
	Error        string        `json:"error"`
	Provider     string        `json:"provider,omitempty"`
	RequiresAuth bool          `json:"requiresAuth,omitempty"`
	Details      *ErrorDetails `json:"details,omitempty"`
}

// ErrorDetails carries diagnostic information. Only populated in dev mode.
type ErrorDetails struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

const (
	maxDetailMessageLen = 500
	maxDetailStackLen   = 2048
)

// classifyError maps an upstream failure to an HTTP status and caller-facing
// message by inspecting the error text for known substrings. The provider is
// captured before the pipeline runs, so classification never re-reads the
// request.
func classifyError(err error, provider string, devMode bool) (int, ErrorResponse) {
	var dispatchErr *llm.DispatchError
	if errors.As(err, &dispatchErr) {
		provider = dispatchErr.Provider
	}
	if provider == "" {
		provider = "unknown"
	}

	lower := strings.ToLower(err.Error())

	status := http.StatusInternalServerError
	message := err.Error()

	switch {
	case strings.Contains(lower, "api key"):
		status = http.StatusInternalServerError
		message = fmt.Sprintf("Invalid or missing API key for %s. Check the server configuration.", provider)
	case strings.Contains(lower, "rate limit"), strings.Contains(lower, "quota"):
		status = http.StatusTooManyRequests
		message = fmt.Sprintf("The %s API rate limit has been reached. Please try again later.", provider)
	case strings.Contains(lower, "not found"), strings.Contains(lower, "invalid model"):
		status = http.StatusNotFound
		message = fmt.Sprintf("The requested model was not found by %s.", provider)
	}

	if hint := providerHint(provider, lower); hint != "" {
		message += " " + hint
	}

	resp := ErrorResponse{Error: message, Provider: provider}
	if devMode {
		detail := err.Error()
		if len(detail) > maxDetailMessageLen {
			detail = detail[:maxDetailMessageLen]
		}
		name := fmt.Sprintf("%T", err)
		if unwrapped := errors.Unwrap(err); unwrapped != nil {
			name = fmt.Sprintf("%T", unwrapped)
		}
		stack := string(debug.Stack())
		if len(stack) > maxDetailStackLen {
			stack = stack[:maxDetailStackLen]
		}
		resp.Details = &ErrorDetails{
			Name:    name,
			Message: detail,
			Stack:   stack,
		}
	}
	return status, resp
}

// providerHint appends provider-specific guidance for failure modes each
// provider is known to report in its own vocabulary.
func providerHint(provider, lowerMsg string) string {
	switch provider {
	case "anthropic":
		switch {
		case strings.Contains(lowerMsg, "overloaded"):
			return "Anthropic is currently overloaded; retrying shortly usually succeeds."
		case strings.Contains(lowerMsg, "permission"):
			return "The configured Anthropic key may not have access to this model."
		}
	case "google":
		if strings.Contains(lowerMsg, "safety") || strings.Contains(lowerMsg, "blocked") {
			return "Google blocked the response under its content policy."
		}
	case "openai", "grok":
		if strings.Contains(lowerMsg, "content_policy") || strings.Contains(lowerMsg, "content policy") {
			return "The request was rejected by the provider's content policy."
		}
	}
	return ""
}
