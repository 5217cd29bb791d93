package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/intentguard/internal/clarify"
	"github.com/ppiankov/intentguard/internal/engine"
	"github.com/ppiankov/intentguard/internal/model"
	"github.com/ppiankov/intentguard/internal/rpc"
)

var (
	evalText        string
	evalPlan        string
	evalPlanFile    string
	evalReasoning   string
	evalAnswers     []string
	evalInteractive bool
	evalGenerate    bool
	evalMaxRounds   int
	evalRemote      string
	evalFormat      string
)

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().StringVarP(&evalText, "text", "t", "", "The user's original request")
	evaluateCmd.Flags().StringVarP(&evalPlan, "plan", "p", "", "Plan text to evaluate")
	evaluateCmd.Flags().StringVar(&evalPlanFile, "plan-file", "", "Read plan text from file (- for stdin)")
	evaluateCmd.Flags().StringVar(&evalReasoning, "reasoning", "", "Planner reasoning to record in the trace")
	evaluateCmd.Flags().StringArrayVarP(&evalAnswers, "answer", "a", nil, "Clarification answer as field=value (repeatable)")
	evaluateCmd.Flags().BoolVarP(&evalInteractive, "interactive", "i", false, "Ask clarification questions on stdin until the plan is complete")
	evaluateCmd.Flags().BoolVar(&evalGenerate, "generate", false, "Generate the plan from --text with the configured model")
	evaluateCmd.Flags().IntVar(&evalMaxRounds, "max-rounds", clarify.MaxRounds, "Maximum clarification rounds in interactive mode")
	evaluateCmd.Flags().StringVar(&evalRemote, "remote", "", "Evaluate on a remote gRPC server (host:port)")
	evaluateCmd.Flags().StringVarP(&evalFormat, "format", "f", "text", "Output format (text|json)")
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a plan against intent schemas and policy",
	Long: "Segments the plan into steps, builds intent tokens, validates them against\n" +
		"policy and prints the execution trace. With --interactive, missing fields\n" +
		"are asked for on stdin (at most two extra rounds) before the final evaluation.\n" +
		"With --remote, evaluation runs on an intentguard gRPC server.",
	RunE: runEvaluate,
}

func parseAnswers(raw []string) ([]model.UserAnswer, error) {
	out := make([]model.UserAnswer, 0, len(raw))
	for _, a := range raw {
		field, value, ok := strings.Cut(a, "=")
		if !ok || strings.TrimSpace(field) == "" {
			return nil, fmt.Errorf("invalid --answer %q: expected field=value", a)
		}
		out = append(out, model.UserAnswer{
			Field:  strings.TrimSpace(field),
			Answer: clarify.NormalizeAnswer(value),
		})
	}
	return out, nil
}

func readPlan(stdin io.Reader) (string, error) {
	if evalPlanFile == "" {
		return evalPlan, nil
	}
	var data []byte
	var err error
	if evalPlanFile == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(evalPlanFile)
	}
	if err != nil {
		return "", fmt.Errorf("read plan: %w", err)
	}
	return string(data), nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	answers, err := parseAnswers(evalAnswers)
	if err != nil {
		return err
	}
	planText, err := readPlan(cmd.InOrStdin())
	if err != nil {
		return err
	}
	req := engine.Request{
		Utterance: evalText,
		Reasoning: evalReasoning,
		Plan:      planText,
		Answers:   answers,
	}

	if evalGenerate {
		if evalText == "" {
			return fmt.Errorf("--generate requires --text")
		}
		resp, err := newPlanner(ctx).Plan(ctx, evalText, answers)
		if err != nil {
			return fmt.Errorf("generate plan: %w", err)
		}
		req.Plan = resp.Plan
		req.Reasoning = resp.Reasoning
	}
	if strings.TrimSpace(req.Plan) == "" {
		return fmt.Errorf("a plan is required: use --plan, --plan-file or --generate")
	}

	if evalRemote != "" {
		return evaluateRemote(ctx, out, req)
	}

	svc, cleanup, err := openService(true)
	if err != nil {
		return err
	}
	defer cleanup()

	if evalInteractive {
		req.Answers = clarifyLoop(cmd.InOrStdin(), out, svc.Engine(), req, evalMaxRounds)
	}

	tr := svc.Evaluate(ctx, req)
	if evalFormat == "json" {
		return printJSON(out, tr)
	}
	printTrace(out, tr)
	return nil
}

// clarifyLoop asks for missing fields until the tokens are complete or
// the round limit is reached, and returns every answer collected.
func clarifyLoop(in io.Reader, out io.Writer, eng *engine.Engine, req engine.Request, rounds int) []model.UserAnswer {
	loop := clarify.NewLoop(eng.Registry(), rounds)
	for _, a := range req.Answers {
		loop.Answer(clarify.Question{Field: a.Field, Step: a.Step}, a.Answer)
	}
	scanner := bufio.NewScanner(in)

	for {
		req.Answers = loop.Answers()
		state, qs := loop.Next(eng.Tokens(req))
		if state == clarify.StateReady {
			return loop.Answers()
		}
		fmt.Fprintf(out, "\nRound %d: %d question(s)\n", loop.Round(), len(qs))
		for _, q := range qs {
			fmt.Fprintf(out, "\n%s\n", q.Question)
			if q.Context != "" {
				fmt.Fprintf(out, "  %s\n", q.Context)
			}
			if q.SuggestedAnswer != "" {
				fmt.Fprintf(out, "  (%s)\n", q.SuggestedAnswer)
			}
			fmt.Fprint(out, "> ")
			if !scanner.Scan() {
				return loop.Answers()
			}
			loop.Answer(q, scanner.Text())
		}
	}
}

func evaluateRemote(ctx context.Context, out io.Writer, req engine.Request) error {
	client, err := rpc.Dial(evalRemote)
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.Evaluate(ctx, rpc.EvaluateRequest{
		Text:      req.Utterance,
		Reasoning: req.Reasoning,
		Plan:      req.Plan,
		Responses: req.Answers,
	})
	if err != nil {
		return fmt.Errorf("remote evaluate: %w", err)
	}
	return printJSON(out, resp)
}
