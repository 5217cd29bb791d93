package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/intentguard/internal/approval"
)

var pendingAll bool

func init() {
	rootCmd.AddCommand(pendingCmd)
	pendingCmd.Flags().BoolVar(&pendingAll, "all", false, "Include resolved approvals")
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List pending approval requests",
	Long:  "Shows approval requests with their status, action, price, triggered rules and timestamps.",
	RunE:  runPending,
}

func runPending(cmd *cobra.Command, args []string) error {
	store, err := approval.NewStore(settings.ApprovalsDir)
	if err != nil {
		return fmt.Errorf("failed to open approval store: %w", err)
	}

	var list []approval.Approval
	if pendingAll {
		list, err = store.List()
	} else {
		list, err = store.Pending()
	}
	if err != nil {
		return fmt.Errorf("failed to list approvals: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No pending approvals.")
		return nil
	}

	fmt.Fprintf(out, "%-28s %-10s %-16s %-12s %-30s %s\n", "EXECUTION", "STATUS", "ACTION", "PRICE", "RULES", "CREATED")
	for _, a := range list {
		fmt.Fprintf(out, "%-28s %-10s %-16s %-12s %-30s %s\n",
			a.ExecutionID,
			a.Status,
			a.Action,
			a.Price,
			truncate(strings.Join(a.TriggeredRules, ","), 30),
			a.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	return nil
}
