// Copyright 2025 Justin P Barnett
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/justinpbarnett/portfolio-chat/pkg/assistant"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the chat assistant server",
	Long:  `Start the HTTP server for the retrieval-augmented chat API.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("api-url", "http://0.0.0.0:4210", "address the API server listens on")
	runCmd.Flags().Bool("dev", false, "development mode (error details in responses)")
	runCmd.Flags().Float32("temperature", assistant.DefaultTemperature, "model sampling temperature")
	runCmd.Flags().Int("max-tokens", assistant.DefaultMaxTokens, "max output tokens per completion")
	runCmd.Flags().Float64("match-threshold", assistant.DefaultSimilarityThreshold, "minimum similarity for knowledge matches")
	runCmd.Flags().Int("match-limit", assistant.DefaultMatchLimit, "max knowledge matches per request")
	runCmd.Flags().Int("context-budget", assistant.DefaultContextTokenBudget, "max context tokens in the system prompt")
	runCmd.Flags().Duration("request-timeout", assistant.DefaultRequestTimeout, "per-call timeout for embedding and vector store requests")
	mustBindPFlag("api_url", runCmd.Flags().Lookup("api-url"))
	mustBindPFlag("dev", runCmd.Flags().Lookup("dev"))
	mustBindPFlag("temperature", runCmd.Flags().Lookup("temperature"))
	mustBindPFlag("max_tokens", runCmd.Flags().Lookup("max-tokens"))
	mustBindPFlag("match_threshold", runCmd.Flags().Lookup("match-threshold"))
	mustBindPFlag("match_limit", runCmd.Flags().Lookup("match-limit"))
	mustBindPFlag("context_budget", runCmd.Flags().Lookup("context-budget"))
	mustBindPFlag("request_timeout", runCmd.Flags().Lookup("request-timeout"))
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("Running as chat assistant")

	// Provider and store secrets come straight from the environment, never
	// from flags, so they cannot leak into process listings.
	cfg := assistant.Config{
		ApiUrl:              viper.GetString("api_url"),
		DevMode:             viper.GetBool("dev"),
		OpenAIKey:           os.Getenv("OPENAI_API_KEY"),
		AnthropicKey:        os.Getenv("ANTHROPIC_API_KEY"),
		GoogleKey:           os.Getenv("GOOGLE_API_KEY"),
		GrokKey:             os.Getenv("GROK_API_KEY"),
		SupabaseURL:         os.Getenv("SUPABASE_URL"),
		SupabaseKey:         os.Getenv("SUPABASE_ANON_KEY"),
		Temperature:         float32(viper.GetFloat64("temperature")),
		MaxTokens:           viper.GetInt("max_tokens"),
		SimilarityThreshold: viper.GetFloat64("match_threshold"),
		MatchLimit:          viper.GetInt("match_limit"),
		ContextTokenBudget:  viper.GetInt("context_budget"),
		RequestTimeout:      viper.GetDuration("request_timeout"),
	}

	assistant.RunServer(ctx, logger, cfg, nil)
	return nil
}
