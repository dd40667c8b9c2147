package chronotope

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soundprediction/chronotope"
	"github.com/soundprediction/chronotope/pkg/config"
	"github.com/soundprediction/chronotope/pkg/types"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [text]",
	Short: "Run text through the ingestion pipeline",
	Long: `Run text through the full ingestion pipeline: sentence splitting,
canonical expansion, structured extraction, geocoding, graph writes and
causal inference.

The text is taken from the argument, or from the file given with --file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().String("file", "", "Read the text from a file instead of the argument")
	ingestCmd.Flags().Int("chunk-size", 0, "Sentences per processing chunk (0 uses the configured size)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	text := ""
	if len(args) > 0 {
		text = args[0]
	}
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		text = string(raw)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no text given: pass it as an argument or with --file")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg.Log.Level)

	client, err := chronotope.NewClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close(context.Background())

	ctx := cmd.Context()
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to neo4j: %w", err)
	}

	chunkSize, _ := cmd.Flags().GetInt("chunk-size")
	result, err := client.ProcessText(ctx, text, chunkSize, func(ev types.ProgressEvent) {
		fmt.Printf("[%s] %s\n", ev.Type, ev.Message)
	})
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	fmt.Printf("Done: %d facts, %d state events, %d modifications, %d failures\n",
		len(result.Facts), len(result.StateFacts), len(result.Modifications), result.Failed)
	if result.Failed > 0 {
		return fmt.Errorf("%d facts failed to commit", result.Failed)
	}
	return nil
}
