package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [directory]",
	Short: "Index documents from a directory into the knowledge base",
	Long: `Recursively walks the given directory, splits every supported
document (.txt, .html) into chunks, and indexes them. Re-ingesting the
same files overwrites their previous chunks.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	res, err := app.ingester.Dir(ctx, args[0])
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", args[0], err)
	}

	fmt.Printf("Indexed %d files (%d chunks)", res.FilesIndexed, res.ChunksAdded)
	if res.FilesSkipped > 0 {
		fmt.Printf(", skipped %d", res.FilesSkipped)
	}
	fmt.Println()
	return nil
}
