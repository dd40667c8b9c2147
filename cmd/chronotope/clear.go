package chronotope

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soundprediction/chronotope"
	"github.com/soundprediction/chronotope/pkg/config"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove everything from the graph",
	Long:  `Remove every node and relationship from the configured Neo4j database.`,
	RunE:  runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)

	clearCmd.Flags().Bool("yes", false, "Skip the confirmation prompt")
}

func runClear(cmd *cobra.Command, args []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		fmt.Print("This deletes the entire graph. Type 'yes' to continue: ")
		var answer string
		fmt.Scanln(&answer)
		if answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
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
	if err := client.Clear(ctx); err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}
	fmt.Println("Cleared the graph.")
	return nil
}
