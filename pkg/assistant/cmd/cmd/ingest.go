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
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/justinpbarnett/portfolio-chat/pkg/assistant"
	"github.com/justinpbarnett/portfolio-chat/pkg/assistant/lib/knowledge"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Populate the knowledge corpus",
	Long: `Chunk, embed, and upsert local content (resume, projects, blog posts)
into the vector store. Content already present, identified by content hash,
is updated unless --no-update is given.`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().String("data-dir", "data", "directory holding resume.json, projects.json, and blog/")
	ingestCmd.Flags().Bool("clean", false, "delete all stored content before ingesting")
	ingestCmd.Flags().Bool("no-update", false, "skip content whose hash already exists instead of re-embedding")
	ingestCmd.Flags().Int("concurrency", 4, "parallel embed and upsert workers")
	ingestCmd.Flags().Duration("request-timeout", assistant.DefaultRequestTimeout, "per-call timeout for embedding and vector store requests")
	mustBindPFlag("data_dir", ingestCmd.Flags().Lookup("data-dir"))
	mustBindPFlag("clean", ingestCmd.Flags().Lookup("clean"))
	mustBindPFlag("no_update", ingestCmd.Flags().Lookup("no-update"))
	mustBindPFlag("concurrency", ingestCmd.Flags().Lookup("concurrency"))
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()
	defer func() {
		_ = logger.Sync()
	}()

	// Read directly from the flag set; run binds the same key in viper.
	timeout, err := cmd.Flags().GetDuration("request-timeout")
	if err != nil {
		return err
	}

	supabaseURL := os.Getenv("SUPABASE_URL")
	supabaseKey := os.Getenv("SUPABASE_ANON_KEY")
	if supabaseURL == "" || supabaseKey == "" {
		return errors.New("SUPABASE_URL and SUPABASE_ANON_KEY must be set to ingest")
	}

	embedder, err := knowledge.NewOpenAIEmbedder(knowledge.EmbedderConfig{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Timeout: timeout,
	}, logger.Named("embedder"))
	if err != nil {
		return fmt.Errorf("initializing embedder: %w", err)
	}

	store, err := knowledge.NewSupabaseStore(knowledge.SupabaseConfig{
		URL:     supabaseURL,
		APIKey:  supabaseKey,
		Timeout: timeout,
	}, logger.Named("store"))
	if err != nil {
		return fmt.Errorf("initializing vector store: %w", err)
	}

	ingestor := knowledge.NewIngestor(embedder, store, logger.Named("ingest"))
	summary, err := ingestor.Run(ctx, viper.GetString("data_dir"), knowledge.IngestOptions{
		Clean:          viper.GetBool("clean"),
		UpdateExisting: !viper.GetBool("no_update"),
		Concurrency:    viper.GetInt("concurrency"),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Ingestion complete: %d added, %d updated, %d skipped\n",
		summary.Added, summary.Updated, summary.Skipped)
	return nil
}
