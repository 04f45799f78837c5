package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/abhisek/examgen/internal/errs"
	"github.com/abhisek/examgen/internal/ingest"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Chunk and index a material file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := commandConfig()
		material, _ := cmd.Flags().GetInt64("material")
		course, _ := cmd.Flags().GetInt64("course")
		chapter, _ := cmd.Flags().GetInt64("chapter")
		if w, _ := cmd.Flags().GetInt("workers"); w > 0 {
			cfg.Indexer.Workers = w
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read material: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		d, err := openDeps(ctx, cfg)
		if err != nil {
			return err
		}
		defer d.Close()

		res, err := d.ingester().Ingest(ctx, ingest.Request{
			Filename:   filepath.Base(args[0]),
			Data:       data,
			MaterialID: material,
			CourseID:   course,
			ChapterID:  chapter,
		})
		if err != nil {
			if e, ok := errs.As(err); ok && e.Committed > 0 {
				fmt.Fprintf(os.Stderr, "%d chunks were stored before the failure; run purge --material %d to remove them\n",
					e.Committed, material)
			}
			return err
		}

		fmt.Printf("Ingested %s as material %d: %d chunks\n", filepath.Base(args[0]), material, res.Chunks)
		return nil
	},
}

func init() {
	ingestCmd.Flags().Int64P("material", "m", 0, "Material ID")
	ingestCmd.Flags().Int64P("course", "c", 0, "Course ID")
	ingestCmd.Flags().Int64("chapter", 0, "Chapter ID")
	ingestCmd.Flags().Int("workers", 0, "Concurrent embedding workers (default from config)")
	ingestCmd.MarkFlagRequired("material")
	ingestCmd.MarkFlagRequired("course")
	ingestCmd.MarkFlagRequired("chapter")
}
