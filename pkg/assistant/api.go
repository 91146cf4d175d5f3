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
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic/decoder"
	"github.com/bytedance/sonic/encoder"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justinpbarnett/portfolio-chat/pkg/assistant/lib/llm"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Messages        []llm.Message `json:"messages"`
	Model           string        `json:"model,omitempty"`
	IsAuthenticated bool          `json:"isAuthenticated,omitempty"`
}

// ModelsResponse is the body of GET /api/models.
type ModelsResponse struct {
	Models  []ModelCatalogEntry `json:"models"`
	Default string              `json:"default"`
}

// callerIdentity extracts the rate limit bucket key from the request. Only
// the first hop of X-Forwarded-For counts; absent headers bucket together
// under a sentinel.
func callerIdentity(r *http.Request) string {
	fwd := r.Header.Get("X-Forwarded-For")
	if fwd == "" {
		return "unknown"
	}
	first, _, _ := strings.Cut(fwd, ",")
	first = strings.TrimSpace(first)
	if first == "" {
		return "unknown"
	}
	return first
}

func (n *Node) writeError(w http.ResponseWriter, status int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := encoder.NewStreamEncoder(w).Encode(resp); err != nil {
		n.logger.Error("encoding error response", zap.Error(err))
	}
}

// handleApiChat runs the full chat lifecycle: throttle, resolve the model,
// gate, embed, retrieve, assemble the grounding prompt, dispatch, and stream
// tokens back in provider order.
func (n *Node) handleApiChat(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()

	start := time.Now()
	status := http.StatusOK
	defer func() {
		RecordRequestDuration("chat", strconv.Itoa(status), time.Since(start).Seconds())
	}()

	fail := func(s int, resp ErrorResponse) {
		status = s
		n.writeError(w, s, resp)
	}

	callerID := callerIdentity(r)
	logger := n.logger.With(zap.String("request_id", uuid.NewString()))

	var req ChatRequest
	if err := decoder.NewStreamDecoder(r.Body).Decode(&req); err != nil {
		fail(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("decoding request: %v", err)})
		return
	}

	if decision := n.limiter.Check(callerID); !decision.Allowed {
		fail(http.StatusTooManyRequests, ErrorResponse{Error: decision.Reason})
		return
	}

	token := req.Model
	if token == "" {
		token = DefaultModelToken
	}

	// Captured up front so the error path never re-reads the request body.
	provider, model, err := ParseModelToken(token)
	if err != nil {
		RecordChatDenial("invalid_model_token")
		fail(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if entry, ok := n.catalog.Lookup(provider, model); ok && !entry.Authorized(req.IsAuthenticated) {
		RecordChatDenial("auth_required")
		fail(http.StatusUnauthorized, ErrorResponse{
			Error:        fmt.Sprintf("Authentication required to use %s", entry.Token()),
			RequiresAuth: true,
		})
		return
	}

	// Unknown providers fall back to the default backend here, so the
	// provider name is final from this point on.
	backend, resolvedModel := n.dispatcher.Resolve(provider, model)
	provider = backend.Name()

	if !n.dispatcher.HasCredential(provider) {
		fail(http.StatusInternalServerError, ErrorResponse{
			Error:    fmt.Sprintf("No API key configured for provider %s", provider),
			Provider: provider,
		})
		return
	}

	question := llm.LastUserContent(req.Messages)
	if question == "" {
		fail(http.StatusBadRequest, ErrorResponse{Error: "request contains no messages"})
		return
	}

	ctx := r.Context()

	vector, err := n.embedder.Embed(ctx, question)
	if err != nil {
		logger.Error("embedding failed", zap.Error(err), zap.String("caller", callerID))
		s, resp := classifyError(err, provider, n.devMode)
		fail(s, resp)
		return
	}

	matches, err := n.store.Search(ctx, vector, n.similarityThreshold, n.matchLimit)
	if err != nil {
		logger.Error("knowledge retrieval failed", zap.Error(err), zap.String("caller", callerID))
		s, resp := classifyError(err, provider, n.devMode)
		fail(s, resp)
		return
	}
	RecordRetrievalMatches(len(matches))
	logger.Debug("retrieved knowledge matches",
		zap.Int("count", len(matches)),
		zap.String("caller", callerID))

	messages := make([]llm.Message, 0, len(req.Messages)+1)
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: n.prompts.SystemPrompt(matches),
	})
	messages = append(messages, req.Messages...)

	tokens, errc, err := n.dispatcher.Dispatch(ctx, provider, llm.Request{
		Model:       resolvedModel,
		Messages:    messages,
		Temperature: n.temperature,
		MaxTokens:   n.maxTokens,
	})
	if err != nil {
		logger.Error("dispatch failed",
			zap.Error(err),
			zap.String("provider", provider),
			zap.String("model", resolvedModel))
		s, resp := classifyError(err, provider, n.devMode)
		fail(s, resp)
		return
	}
	RecordChatRequest(provider, resolvedModel)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	streamed := 0
	for delta := range tokens {
		if _, err := w.Write([]byte(delta.Text)); err != nil {
			logger.Debug("client went away mid-stream", zap.Error(err))
			break
		}
		if flusher != nil {
			flusher.Flush()
		}
		streamed++
	}
	RecordTokensStreamed(provider, streamed)

	// A failure after streaming began cannot change the status line; the
	// truncated stream is the client's failure signal.
	if err := <-errc; err != nil {
		logger.Error("stream ended with error",
			zap.Error(err),
			zap.String("provider", provider),
			zap.Int("tokens_streamed", streamed))
		return
	}

	logger.Info("chat completed",
		zap.String("provider", provider),
		zap.String("model", resolvedModel),
		zap.Int("tokens_streamed", streamed),
		zap.Duration("duration", time.Since(start)))
}

// handleApiModels serves the model catalog so clients gate model choices
// against the same list the server enforces.
func (n *Node) handleApiModels(w http.ResponseWriter, r *http.Request) {
	resp := ModelsResponse{
		Models:  n.catalog.Entries(),
		Default: DefaultModelToken,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := encoder.NewStreamEncoder(w).Encode(resp); err != nil {
		n.logger.Error("encoding response", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
