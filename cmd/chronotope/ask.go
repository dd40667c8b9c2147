package chronotope

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soundprediction/chronotope"
	"github.com/soundprediction/chronotope/pkg/config"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question over the graph",
	Long: `Answer a natural language question by letting the model call graph query
tools, validating the result and looping on the validator's feedback.

With --multi, every sentence of the input is answered as its own question.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().Int("max-loops", 3, "Maximum tool-calling loops per question (1-5)")
	askCmd.Flags().Bool("multi", false, "Answer each sentence as its own question")
	askCmd.Flags().Bool("trace", false, "Print the tool trace as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
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

	maxLoops, _ := cmd.Flags().GetInt("max-loops")
	withTrace, _ := cmd.Flags().GetBool("trace")

	if multi, _ := cmd.Flags().GetBool("multi"); multi {
		answers, err := client.AskMulti(ctx, args[0], maxLoops)
		if err != nil {
			return fmt.Errorf("ask failed: %w", err)
		}
		for _, answer := range answers {
			fmt.Printf("Q: %s\nvalid=%t  %s\n", answer.Question, answer.Valid, answer.Descriptor)
			if withTrace {
				printTrace(answer.Trace)
			}
		}
		return nil
	}

	result, err := client.Ask(ctx, args[0], maxLoops)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}
	fmt.Printf("valid=%t  %s\n", result.Valid, result.Descriptor)
	if withTrace {
		printTrace(result.Trace)
	}
	return nil
}

func printTrace(trace []chronotope.ToolTrace) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(trace)
}
