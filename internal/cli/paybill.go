package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

var payBillFormat string

func init() {
	rootCmd.AddCommand(payBillCmd)
	payBillCmd.Flags().StringVarP(&payBillFormat, "format", "f", "text", "Output format (text|json)")
}

var payBillCmd = &cobra.Command{
	Use:   "pay-bill <request>",
	Short: "Run the utility bill payment flow",
	Long: "Parses a bill payment request (merchant and amount), checks the merchant\n" +
		"allowlist and the per-transaction limit, and records the six-stage trace.\n" +
		"Example: intentguard pay-bill \"pay my water bill of ₹1500\"",
	Args: cobra.MinimumNArgs(1),
	RunE: runPayBill,
}

func runPayBill(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := openService(true)
	if err != nil {
		return err
	}
	defer cleanup()

	tr := svc.PayBill(cmd.Context(), strings.Join(args, " "))
	if payBillFormat == "json" {
		return printJSON(cmd.OutOrStdout(), tr)
	}
	printTrace(cmd.OutOrStdout(), tr)
	return nil
}
