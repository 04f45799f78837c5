package cmd

import (
	"fmt"
	"strings"

	"github.com/abhisek/examgen/internal/store"
	"github.com/abhisek/examgen/internal/vectorstore"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show indexed materials and generation activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		vs, err := vectorstore.NewSQLite(ctx, s.Driver())
		if err != nil {
			return fmt.Errorf("open vector store: %w", err)
		}
		indexed, err := vs.Stats(ctx)
		if err != nil {
			return fmt.Errorf("query index: %w", err)
		}
		activity, err := s.EventRepo().MaterialActivity(ctx)
		if err != nil {
			return fmt.Errorf("query activity: %w", err)
		}

		if len(indexed) == 0 && len(activity) == 0 {
			fmt.Println("No materials ingested yet.")
			return nil
		}

		byMaterial := make(map[int64]store.MaterialActivity, len(activity))
		for _, a := range activity {
			byMaterial[a.MaterialID] = a
		}

		fmt.Printf("%-10s  %7s  %-19s  %7s  %11s  %7s  %9s\n",
			"Material", "Chunks", "Last Indexed", "Ingests", "Generations", "Failed", "Questions")
		fmt.Println(strings.Repeat("─", 84))

		seen := make(map[int64]bool, len(indexed))
		for _, m := range indexed {
			seen[m.MaterialID] = true
			a := byMaterial[m.MaterialID]
			fmt.Printf("%-10d  %7d  %-19s  %7d  %11d  %7d  %9d\n",
				m.MaterialID, m.Chunks, m.LastAdded.Local().Format("2006-01-02 15:04:05"),
				a.Ingests, a.Generations, a.FailedGenerations, a.QuestionsServed)
		}
		// Materials with activity but nothing indexed (purged, or every
		// ingestion failed).
		for _, a := range activity {
			if seen[a.MaterialID] {
				continue
			}
			fmt.Printf("%-10d  %7d  %-19s  %7d  %11d  %7d  %9d\n",
				a.MaterialID, 0, "-", a.Ingests, a.Generations, a.FailedGenerations, a.QuestionsServed)
		}
		fmt.Println(strings.Repeat("─", 84))
		fmt.Printf("%d materials, %d chunks indexed\n", len(indexed), chunkTotal(indexed))
		return nil
	},
}

// chunkTotal sums the chunk counts of stats.
func chunkTotal(stats []vectorstore.MaterialStats) int {
	total := 0
	for _, s := range stats {
		total += s.Chunks
	}
	return total
}
