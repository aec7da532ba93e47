package cli

import (
	"fmt"

	"github.com/patinahq/patina/internal/ingest"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Post JSONL interaction feeds to a running server",
	Long:  "Reads JSONL feed files of interaction tuples and posts them to the server at PATINA_URL (default http://127.0.0.1:37881). Replayed tuples are deduplicated server-side, so re-ingesting a file is safe.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	client := ingest.NewClient()
	if !client.Healthy() {
		return fmt.Errorf("server not reachable; start it with `patina serve`")
	}

	for _, path := range args {
		tuples, err := ingest.ParseFile(path)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		report, err := ingest.Push(client, tuples)
		if err != nil {
			return fmt.Errorf("push %s: %w", path, err)
		}

		fmt.Printf("%s: %d recorded, %d duplicates, %d failed\n",
			path, report.Recorded, report.Duplicates, report.Failed)
	}
	return nil
}
