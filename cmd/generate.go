package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/abhisek/examgen/internal/config"
	"github.com/abhisek/examgen/internal/examgen"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate [instruction...]",
	Short: "Generate exam questions for one material",
	Example: `  examgen generate -m 1 "generate 2 hard questions about the Calvin cycle"
  examgen generate -m 1 --attempts 3 --json "generate 5 questions"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := generateConfig(cmd)
		material, _ := cmd.Flags().GetInt64("material")
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		d, err := openDeps(ctx, cfg)
		if err != nil {
			return err
		}
		defer d.Close()

		orch, err := d.orchestrator(ctx)
		if err != nil {
			return err
		}
		gen := examgen.WithRetries(orch, cfg.Generation.Attempts, 2*time.Second)

		questions, err := gen.Generate(ctx, examgen.ExamRequest{
			MaterialID:  material,
			Instruction: strings.Join(args, " "),
		})
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"rag_result": questions})
		}
		printQuestions(questions)
		return nil
	},
}

// generateConfig applies the generate flags to a copy of appConfig.
func generateConfig(cmd *cobra.Command) *config.Config {
	cfg := commandConfig()
	if cmd.Flags().Changed("attempts") {
		cfg.Generation.Attempts, _ = cmd.Flags().GetInt("attempts")
	}
	return cfg
}

func printQuestions(questions []examgen.ExamQuestion) {
	for i, q := range questions {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("%d. [%s, %s] %s\n", i+1, q.Difficulty, q.TaxonomyLevel, q.Content)
		for _, a := range q.Answers {
			mark := " "
			if a.IsCorrect {
				mark = "*"
			}
			fmt.Printf("   %s %s) %s\n", mark, a.Label, a.Text)
		}
	}
}

func init() {
	generateCmd.Flags().Int64P("material", "m", 0, "Material ID")
	generateCmd.Flags().Int("attempts", 1, "Total tries when generation fails on model output or infrastructure")
	generateCmd.Flags().Bool("json", false, "Print the result as JSON")
	generateCmd.MarkFlagRequired("material")
}
