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

// Package assistant implements the retrieval-augmented chat service behind
// the portfolio website. A chat request is throttled, gated against the model
// catalog, grounded with facts retrieved from the knowledge corpus, and
// answered by streaming tokens from the selected model provider.
package assistant

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/justinpbarnett/portfolio-chat/pkg/assistant/lib/knowledge"
	"github.com/justinpbarnett/portfolio-chat/pkg/assistant/lib/llm"
)

// Pipeline defaults matching the production deployment.
const (
	DefaultTemperature         = 0.7
	DefaultMaxTokens           = 500
	DefaultSimilarityThreshold = 0.2
	DefaultMatchLimit          = 15

	// DefaultRequestTimeout bounds each embedding and vector store call.
	DefaultRequestTimeout = 60 * time.Second
)

// Config holds everything needed to run the chat service.
type Config struct {
	ApiUrl  string
	DevMode bool

	OpenAIKey    string
	AnthropicKey string
	GoogleKey    string
	GrokKey      string

	SupabaseURL string
	SupabaseKey string

	EmbeddingModel string

	Temperature         float32
	MaxTokens           int
	SimilarityThreshold float64
	MatchLimit          int
	ContextTokenBudget  int
	RequestTimeout      time.Duration

	RateLimit RateLimitConfig
}

func (c *Config) applyDefaults() {
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.SimilarityThreshold == 0 {
		c.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if c.MatchLimit == 0 {
		c.MatchLimit = DefaultMatchLimit
	}
	if c.ContextTokenBudget == 0 {
		c.ContextTokenBudget = DefaultContextTokenBudget
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
}

// Node wires the chat pipeline together.
type Node struct {
	logger *zap.Logger

	limiter    *RateLimiter
	catalog    *Catalog
	prompts    *PromptBuilder
	embedder   knowledge.Embedder
	store      knowledge.Store
	dispatcher *llm.Dispatcher

	devMode             bool
	temperature         float32
	maxTokens           int
	similarityThreshold float64
	matchLimit          int
}

// NodeParams carries the pipeline dependencies for NewNode. All fields are
// required except DevMode and the tunables, which default per Config.
type NodeParams struct {
	Logger     *zap.Logger
	Limiter    *RateLimiter
	Catalog    *Catalog
	Prompts    *PromptBuilder
	Embedder   knowledge.Embedder
	Store      knowledge.Store
	Dispatcher *llm.Dispatcher

	DevMode             bool
	Temperature         float32
	MaxTokens           int
	SimilarityThreshold float64
	MatchLimit          int
}

// NewNode assembles a chat node from explicit dependencies.
func NewNode(p NodeParams) *Node {
	cfg := Config{
		Temperature:         p.Temperature,
		MaxTokens:           p.MaxTokens,
		SimilarityThreshold: p.SimilarityThreshold,
		MatchLimit:          p.MatchLimit,
	}
	cfg.applyDefaults()

	return &Node{
		logger:              p.Logger,
		limiter:             p.Limiter,
		catalog:             p.Catalog,
		prompts:             p.Prompts,
		embedder:            p.Embedder,
		store:               p.Store,
		dispatcher:          p.Dispatcher,
		devMode:             p.DevMode,
		temperature:         cfg.Temperature,
		maxTokens:           cfg.MaxTokens,
		similarityThreshold: cfg.SimilarityThreshold,
		matchLimit:          cfg.MatchLimit,
	}
}

// Handler returns the node's HTTP routes mounted on a fresh mux.
func (n *Node) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", n.handleHealthz)
	mux.HandleFunc("GET /readyz", n.handleReadyz)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/chat", n.handleApiChat)
	mux.HandleFunc("GET /api/models", n.handleApiModels)

	return corsMiddleware(mux)
}

// corsMiddleware adds permissive CORS headers for the chat API
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, Accept, Origin")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// DefaultShutdownTimeout is the default time to wait for graceful shutdown
const DefaultShutdownTimeout = 30 * time.Second

// RunServer builds the pipeline from config and serves it until ctx is
// cancelled. If readyC is non-nil, it is closed when the server is accepting
// requests.
func RunServer(ctx context.Context, zl *zap.Logger, config Config, readyC chan struct{}) {
	zl = zl.Named("assistant")
	config.applyDefaults()
	zl.Info("Starting chat assistant node", zap.String("api_url", config.ApiUrl))

	u, err := url.Parse(config.ApiUrl)
	if err != nil {
		zl.Fatal("Invalid API URL", zap.String("url", config.ApiUrl), zap.Error(err))
	}

	embedder, err := knowledge.NewOpenAIEmbedder(knowledge.EmbedderConfig{
		APIKey:  config.OpenAIKey,
		Model:   config.EmbeddingModel,
		Timeout: config.RequestTimeout,
	}, zl.Named("embedder"))
	if err != nil {
		zl.Fatal("Failed to initialize embedder", zap.Error(err))
	}
	cachedEmbedder := knowledge.NewCachedEmbedder(embedder, zl.Named("embedding-cache"))
	defer cachedEmbedder.Close()

	var store knowledge.Store
	if config.SupabaseURL != "" {
		supabase, err := knowledge.NewSupabaseStore(knowledge.SupabaseConfig{
			URL:     config.SupabaseURL,
			APIKey:  config.SupabaseKey,
			Timeout: config.RequestTimeout,
		}, zl.Named("store"))
		if err != nil {
			zl.Fatal("Failed to initialize vector store", zap.Error(err))
		}
		store = supabase
	} else {
		zl.Warn("No vector store configured, answers will be ungrounded")
		store = knowledge.NewMemoryStore()
	}

	prompts, err := NewPromptBuilder(config.ContextTokenBudget, zl.Named("prompts"))
	if err != nil {
		zl.Fatal("Failed to initialize prompt builder", zap.Error(err))
	}

	limiter := NewRateLimiter(config.RateLimit, zl.Named("ratelimit"))
	defer limiter.Close()

	dispatcher := llm.NewDispatcher(llm.Credentials{
		OpenAI:    config.OpenAIKey,
		Anthropic: config.AnthropicKey,
		Google:    config.GoogleKey,
		Grok:      config.GrokKey,
	}, zl.Named("dispatch"))

	node := NewNode(NodeParams{
		Logger:              zl,
		Limiter:             limiter,
		Catalog:             NewCatalog(),
		Prompts:             prompts,
		Embedder:            cachedEmbedder,
		Store:               store,
		Dispatcher:          dispatcher,
		DevMode:             config.DevMode,
		Temperature:         config.Temperature,
		MaxTokens:           config.MaxTokens,
		SimilarityThreshold: config.SimilarityThreshold,
		MatchLimit:          config.MatchLimit,
	})

	srv := &http.Server{
		Addr:        u.Host,
		Handler:     node.Handler(),
		ReadTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		zl.Info("Chat assistant api server starting", zap.String("address", config.ApiUrl))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Signal readiness after server starts
	if readyC != nil {
		close(readyC)
	}

	// Wait for context cancellation or server error
	select {
	case err := <-serverErr:
		if err != nil {
			zl.Fatal("HTTP server error", zap.Error(err))
		}
	case <-ctx.Done():
		zl.Info("Shutdown signal received, starting graceful shutdown...")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections
	srv.SetKeepAlivesEnabled(false)

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("Graceful shutdown failed, forcing close",
			zap.Error(err),
			zap.Duration("timeout", DefaultShutdownTimeout))
		_ = srv.Close()
	} else {
		zl.Info("Graceful shutdown completed successfully")
	}

	zl.Info("HTTP server stopped")
}
