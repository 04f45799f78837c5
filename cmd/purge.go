package cmd

import (
	"fmt"

	"github.com/abhisek/examgen/internal/vectorstore"
	"github.com/spf13/cobra"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every indexed chunk of a material",
	RunE: func(cmd *cobra.Command, args []string) error {
		material, _ := cmd.Flags().GetInt64("material")
		if material <= 0 {
			return fmt.Errorf("--material must be positive, got %d", material)
		}

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
		n, err := vs.DeleteMaterial(ctx, material)
		if err != nil {
			return fmt.Errorf("delete material %d: %w", material, err)
		}

		fmt.Printf("Removed %d chunks of material %d.\n", n, material)
		return nil
	},
}

func init() {
	purgeCmd.Flags().Int64P("material", "m", 0, "Material ID")
	purgeCmd.MarkFlagRequired("material")
}
