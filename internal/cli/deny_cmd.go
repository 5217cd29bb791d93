package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/intentguard/internal/rpc"
)

var (
	denyApprover string
	denyRemote   string
)

func init() {
	rootCmd.AddCommand(denyCmd)
	denyCmd.Flags().StringVar(&denyApprover, "approver", os.Getenv("USER"), "Name recorded as the approver")
	denyCmd.Flags().StringVar(&denyRemote, "remote", "", "Send the decision to a remote gRPC server (host:port)")
}

var denyCmd = &cobra.Command{
	Use:   "deny <execution-id>",
	Short: "Deny an execution that requires human approval",
	Long:  "Denies a pending approval request. The execution can no longer proceed to payment.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeny,
}

func runDeny(cmd *cobra.Command, args []string) error {
	id := args[0]

	if denyRemote != "" {
		client, err := rpc.Dial(denyRemote)
		if err != nil {
			return err
		}
		defer client.Close()
		if _, err := client.Deny(cmd.Context(), rpc.DecisionRequest{ExecutionID: id, Approver: denyApprover}); err != nil {
			return err
		}
	} else {
		svc, cleanup, err := openService(false)
		if err != nil {
			return err
		}
		defer cleanup()
		if err := svc.Deny(id, denyApprover); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Denied %q\n", id)
	return nil
}
