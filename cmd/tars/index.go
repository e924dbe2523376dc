package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tars/internal/embedding"
	"tars/internal/knowledge"
)

var indexCmd = &cobra.Command{
	Use:   "index [datasets-dir]",
	Short: "Index YAML Q&A datasets into the knowledge base",
	Long: `Index embeds question/answer datasets into the vector store so
chat responses can cite them. Without an argument it indexes the
configured datasets directory. Re-running is safe: documents are keyed
by content, so unchanged entries are not re-embedded.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.Knowledge.DatasetsDir
		if len(args) == 1 {
			dir = args[0]
		}

		eng, err := embedding.NewEngine(embedding.Config{
			Provider:       cfg.Knowledge.EmbeddingProvider,
			OllamaEndpoint: cfg.Provider.OllamaBaseURL,
			OllamaModel:    cfg.Knowledge.EmbeddingModel,
			GenAIAPIKey:    cfg.Knowledge.EmbeddingAPIKey,
		})
		if err != nil {
			return fmt.Errorf("embedding setup: %w", err)
		}

		retriever, err := knowledge.NewRetriever(cfg.Knowledge.PersistDir, eng)
		if err != nil {
			return fmt.Errorf("knowledge setup: %w", err)
		}

		logger.Info("indexing datasets", zap.String("dir", dir))
		added, err := retriever.IndexDirectory(cmd.Context(), dir)
		if err != nil {
			return err
		}

		stats := retriever.GetStats()
		fmt.Printf("Indexed %d new documents (%d total)\n", added, stats.Documents)
		if len(stats.Topics) > 0 {
			fmt.Printf("Topics: %s\n", strings.Join(stats.Topics, ", "))
		}
		fmt.Printf("Embedding engine: %s (%d dimensions)\n", stats.Engine, stats.Dimensions)
		return nil
	},
}
