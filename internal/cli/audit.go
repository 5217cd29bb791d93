package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/intentguard/internal/audit"
)

var (
	tailLines      int
	tailFormat     string
	queryExecution string
	queryStatus    string
	queryFrom      string
	queryTo        string
	queryFormat    string
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditCmd.AddCommand(auditQueryCmd)
	auditTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "Number of recent entries to show")
	auditTailCmd.Flags().StringVarP(&tailFormat, "format", "f", "text", "Output format (text|json)")
	auditQueryCmd.Flags().StringVar(&queryExecution, "execution-id", "", "Only entries for this execution")
	auditQueryCmd.Flags().StringVar(&queryStatus, "status", "", "Only entries with this status (APPROVED, BLOCKED, REQUIRES_APPROVAL)")
	auditQueryCmd.Flags().StringVar(&queryFrom, "from", "", "Start time filter (RFC3339)")
	auditQueryCmd.Flags().StringVar(&queryTo, "to", "", "End time filter (RFC3339)")
	auditQueryCmd.Flags().StringVarP(&queryFormat, "format", "f", "text", "Output format (text|json)")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
	Long:  "Commands for verifying and inspecting the hash-chained audit log.\nThe log path comes from --audit-log (default ~/.intentguard/audit.jsonl).",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify hash chain integrity of an audit log",
	Long:  "Walks the JSONL audit log and validates that every entry's prev_hash\nmatches the SHA-256 of the previous entry. Exits 0 if valid, 1 if tampered.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail [path]",
	Short: "Show recent audit log entries",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditTail,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query [path]",
	Short: "Filter audit log entries and summarise outcomes",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditQuery,
}

func auditPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return settings.AuditLogPath
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	result := audit.Verify(auditPath(args))
	if result.Valid {
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %d entries verified\n", result.Lines)
		return nil
	}
	fmt.Fprintf(os.Stderr, "FAILED at line %d: %s\n", result.ErrorLine, result.Error)
	os.Exit(1)
	return nil
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	entries, err := audit.Tail(auditPath(args), tailLines)
	if err != nil {
		return err
	}
	if tailFormat == "json" {
		return printJSON(cmd.OutOrStdout(), entries)
	}
	fmt.Fprint(cmd.OutOrStdout(), audit.FormatEntries(entries))
	return nil
}

func runAuditQuery(cmd *cobra.Command, args []string) error {
	filter := audit.Filter{ExecutionID: queryExecution, Status: queryStatus}

	if queryFrom != "" {
		from, err := time.Parse(time.RFC3339, queryFrom)
		if err != nil {
			return fmt.Errorf("invalid --from time %q: %w", queryFrom, err)
		}
		filter.From = from
	}
	if queryTo != "" {
		to, err := time.Parse(time.RFC3339, queryTo)
		if err != nil {
			return fmt.Errorf("invalid --to time %q: %w", queryTo, err)
		}
		filter.To = to
	}

	res, err := audit.Query(auditPath(args), filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if queryFormat == "json" {
		s, err := audit.FormatJSON(res)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, s)
		return nil
	}
	fmt.Fprint(out, audit.FormatEntries(res.Entries))
	s := res.Summary
	fmt.Fprintf(out, "\n%d entries: %d approved, %d requires approval, %d blocked, %d decisions\n",
		s.Total, s.Approved, s.RequiresApproval, s.Blocked, s.Decisions)
	return nil
}
