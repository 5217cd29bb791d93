package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/intentguard/internal/config"
	"github.com/ppiankov/intentguard/internal/rpc"
)

func init() {
	rootCmd.AddCommand(grpcCmd)
	grpcCmd.Flags().Int("port", 0, "gRPC listen port (default 50051)")
	bindFlag(config.KeyGRPCPort, grpcCmd.Flags().Lookup("port"))
}

var grpcCmd = &cobra.Command{
	Use:   "grpc",
	Short: "Start the gRPC evaluation server",
	Long: "Runs intentguard as a central evaluation server over gRPC.\n" +
		"Clients call Evaluate, Approve, Deny and ListPending with JSON-shaped\n" +
		"google.protobuf.Struct messages. Supports hot-reload of policy and schema files.",
	RunE: runGRPC,
}

func runGRPC(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := openService(true)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signalContext()
	defer stop()

	srv := rpc.New(svc)
	g, gctx := errgroup.WithContext(ctx)
	startReloader(gctx, g, svc, svc.WatchPaths())
	g.Go(func() error { return srv.ListenAndServe(gctx, settings.GRPCPort) })

	fmt.Fprintf(os.Stderr, "intentguard gRPC server listening on :%d\n", settings.GRPCPort)
	fmt.Fprintf(os.Stderr, "Policy: %s (%s)\n\n", settings.PolicyPath, svc.PolicyHash())

	return g.Wait()
}
