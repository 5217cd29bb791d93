package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/intentguard/internal/rpc"
)

var (
	approveDuration time.Duration
	approver        string
	decisionRemote  string
)

func init() {
	rootCmd.AddCommand(approveCmd)
	approveCmd.Flags().DurationVar(&approveDuration, "duration", 0, "Validity period (e.g., 30m, 24h). Default: no expiry")
	approveCmd.Flags().StringVar(&approver, "approver", os.Getenv("USER"), "Name recorded as the approver")
	approveCmd.Flags().StringVar(&decisionRemote, "remote", "", "Send the decision to a remote gRPC server (host:port)")
}

var approveCmd = &cobra.Command{
	Use:   "approve <execution-id>",
	Short: "Approve an execution that requires human approval",
	Long: "Approves a pending REQUIRES_APPROVAL execution so that its payment link\n" +
		"can be used once. With --duration, the approval expires after the given period.",
	Args: cobra.ExactArgs(1),
	RunE: runApprove,
}

func runApprove(cmd *cobra.Command, args []string) error {
	id := args[0]

	if decisionRemote != "" {
		client, err := rpc.Dial(decisionRemote)
		if err != nil {
			return err
		}
		defer client.Close()
		req := rpc.DecisionRequest{ExecutionID: id, Approver: approver}
		if approveDuration > 0 {
			req.Duration = approveDuration.String()
		}
		if _, err := client.Approve(cmd.Context(), req); err != nil {
			return err
		}
	} else {
		svc, cleanup, err := openService(false)
		if err != nil {
			return err
		}
		defer cleanup()
		if err := svc.Approve(id, approver, approveDuration); err != nil {
			return err
		}
	}

	if approveDuration > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Approved %q for %s\n", id, approveDuration)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Approved %q\n", id)
	}
	return nil
}
