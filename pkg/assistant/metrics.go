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

import "github.com/prometheus/client_golang/prometheus"

var (
	chatRequestOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "assistant",
			Name:      "chat_request_ops_total",
			Help:      "The total number of chat requests dispatched.",
		},
		[]string{"provider", "model"},
	)
	chatDeniedOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "assistant",
			Name:      "chat_denied_ops_total",
			Help:      "The total number of chat requests denied before dispatch.",
		},
		[]string{"reason"},
	)
	tokenStreamOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "assistant",
			Name:      "token_stream_ops_total",
			Help:      "The total number of tokens streamed to clients.",
		},
		[]string{"provider"},
	)
	retrievalMatchOps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "assistant",
			Name:      "retrieval_match_ops_total",
			Help:      "The total number of knowledge matches retrieved.",
		},
	)

	promptTokens = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "portfolio",
			Subsystem: "assistant",
			Name:      "prompt_tokens",
			Help:      "Token count of assembled system prompts.",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 8),
		},
	)
	contextDroppedOps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "assistant",
			Name:      "context_dropped_ops_total",
			Help:      "The total number of knowledge matches dropped to fit the context token budget.",
		},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "portfolio",
			Subsystem: "assistant",
			Name:      "request_duration_seconds",
			Help:      "Time taken to process a request.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "status"},
	)
)

func init() {
	prometheus.MustRegister(chatRequestOps)
	prometheus.MustRegister(chatDeniedOps)
	prometheus.MustRegister(tokenStreamOps)
	prometheus.MustRegister(retrievalMatchOps)
	prometheus.MustRegister(promptTokens)
	prometheus.MustRegister(contextDroppedOps)
	prometheus.MustRegister(requestDuration)
}

// RecordChatRequest increments the dispatched-request counter
func RecordChatRequest(provider, model string) {
	chatRequestOps.WithLabelValues(provider, model).Inc()
}

// RecordChatDenial increments the pre-dispatch denial counter
func RecordChatDenial(reason string) {
	chatDeniedOps.WithLabelValues(reason).Inc()
}

// RecordTokensStreamed records the number of tokens forwarded to a client
func RecordTokensStreamed(provider string, count int) {
	tokenStreamOps.WithLabelValues(provider).Add(float64(count))
}

// RecordRetrievalMatches records the number of knowledge matches retrieved
func RecordRetrievalMatches(count int) {
	retrievalMatchOps.Add(float64(count))
}

// RecordPromptTokens records the token count of an assembled system prompt
func RecordPromptTokens(count int) {
	promptTokens.Observe(float64(count))
}

// RecordContextDropped records matches dropped to fit the context token budget
func RecordContextDropped(count int) {
	contextDroppedOps.Add(float64(count))
}

// RecordRequestDuration records how long a request took
func RecordRequestDuration(endpoint, status string, seconds float64) {
	requestDuration.WithLabelValues(endpoint, status).Observe(seconds)
}
