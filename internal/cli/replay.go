package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/intentguard/internal/audit"
	"github.com/ppiankov/intentguard/internal/store"
)

var (
	replayFormat string
	tracesLimit  int
)

func init() {
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(tracesCmd)
	replayCmd.Flags().StringVarP(&replayFormat, "format", "f", "text", "Output format (text|json)")
	tracesCmd.Flags().IntVarP(&tracesLimit, "limit", "n", 20, "Number of recent traces to list")
}

var replayCmd = &cobra.Command{
	Use:   "replay <execution-id>",
	Short: "Show a stored trace and its audit history",
	Long:  "Reads the trace for an execution from the database and the matching\naudit log entries (evaluation, approvals, payments) in order.",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

var tracesCmd = &cobra.Command{
	Use:   "traces",
	Short: "List recent stored traces",
	RunE:  runTraces,
}

func runReplay(cmd *cobra.Command, args []string) error {
	id := args[0]
	ctx := cmd.Context()

	st, err := store.Open(settings.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := st.GetTrace(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no trace stored for %s", id)
		}
		return err
	}

	res, err := audit.Query(settings.AuditLogPath, audit.Filter{ExecutionID: id})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if replayFormat == "json" {
		return printJSON(out, map[string]any{
			"trace": rec,
			"audit": res.Entries,
		})
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, rec.Trace, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(rec.Trace)
	}
	fmt.Fprintf(out, "Execution %s  %s  %s  %s\n\n", rec.ExecutionID, rec.Status, rec.Action, rec.CreatedAt)
	fmt.Fprintln(out, pretty.String())
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Audit history:")
	fmt.Fprint(out, audit.FormatEntries(res.Entries))
	return nil
}

func runTraces(cmd *cobra.Command, args []string) error {
	st, err := store.Open(settings.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	recs, err := st.ListTraces(cmd.Context(), tracesLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(recs) == 0 {
		fmt.Fprintln(out, "No traces stored.")
		return nil
	}
	fmt.Fprintf(out, "%-28s %-18s %-16s %-12s %s\n", "EXECUTION", "STATUS", "ACTION", "PRICE", "CREATED")
	for _, r := range recs {
		fmt.Fprintf(out, "%-28s %-18s %-16s %-12s %s\n", r.ExecutionID, r.Status, r.Action, r.Price, r.CreatedAt)
	}
	return nil
}
