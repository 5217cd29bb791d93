package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/intentguard/internal/clarify"
	"github.com/ppiankov/intentguard/internal/engine"
	"github.com/ppiankov/intentguard/internal/policy"
	"github.com/ppiankov/intentguard/internal/schema"
)

var (
	questionsText   string
	questionsPlan   string
	questionsFormat string
)

func init() {
	rootCmd.AddCommand(questionsCmd)
	questionsCmd.Flags().StringVarP(&questionsText, "text", "t", "", "The user's original request")
	questionsCmd.Flags().StringVarP(&questionsPlan, "plan", "p", "", "Plan text to find missing fields in")
	questionsCmd.Flags().StringVarP(&questionsFormat, "format", "f", "text", "Output format (text|json)")
}

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "List clarification questions for a request or plan",
	Long: "With --plan, lists a question for every required field the plan leaves out.\n" +
		"With only --text, asks the configured model for up to five questions and\n" +
		"falls back to the standard flight, hotel or generic set.",
	RunE: runQuestions,
}

func runQuestions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if questionsText == "" && questionsPlan == "" {
		return fmt.Errorf("--text or --plan is required")
	}

	var qs []clarify.Question
	if questionsPlan != "" {
		cfg, err := policy.LoadConfig(settings.PolicyPath)
		if err != nil {
			return err
		}
		reg, err := schema.Load(settings.SchemaPath)
		if err != nil {
			return err
		}
		eng := engine.New(engine.Config{Registry: reg, Policy: cfg})
		qs = clarify.Questions(eng.Tokens(engine.Request{
			Utterance: questionsText,
			Plan:      questionsPlan,
		}), reg)
	} else {
		qs = newPlanner(ctx).Questions(ctx, questionsText)
	}

	out := cmd.OutOrStdout()
	if questionsFormat == "json" {
		return printJSON(out, qs)
	}
	if len(qs) == 0 {
		fmt.Fprintln(out, "No questions: the plan is complete.")
		return nil
	}
	for _, q := range qs {
		fmt.Fprintf(out, "%-20s step %-2d %s\n", q.Field, q.Step, q.Question)
	}
	return nil
}
