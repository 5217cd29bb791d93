package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/intentguard/internal/config"
	"github.com/ppiankov/intentguard/internal/ratelimit"
	"github.com/ppiankov/intentguard/internal/reload"
	"github.com/ppiankov/intentguard/internal/rpc"
	"github.com/ppiankov/intentguard/internal/server"
)

var serveWithGRPC bool

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "HTTP listen address (default :5001)")
	serveCmd.Flags().String("public-url", "", "Externally reachable base URL used in payment links")
	serveCmd.Flags().String("allowed-origin", "", "CORS origin to allow (default any)")
	serveCmd.Flags().BoolVar(&serveWithGRPC, "grpc", false, "Also serve the gRPC API on --grpc-port")
	serveCmd.Flags().Int("grpc-port", 0, "gRPC listen port (default 50051)")
	serveCmd.Flags().Int("rate-limit", 0, "Max evaluation requests per client IP per window (0 disables)")
	bindFlag(config.KeyRateRequests, serveCmd.Flags().Lookup("rate-limit"))
	bindFlag(config.KeyHTTPAddr, serveCmd.Flags().Lookup("addr"))
	bindFlag(config.KeyPublicURL, serveCmd.Flags().Lookup("public-url"))
	bindFlag(config.KeyAllowedOrigin, serveCmd.Flags().Lookup("allowed-origin"))
	bindFlag(config.KeyGRPCPort, serveCmd.Flags().Lookup("grpc-port"))
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: "Runs the intent-validation HTTP API with payment pages.\n" +
		"Traces and payment sessions persist in SQLite; outcomes go to the audit log.\n" +
		"Supports hot-reload of policy and schema files.",
	RunE: runServe,
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// startReloader watches the service's policy and schema files.
func startReloader(ctx context.Context, g *errgroup.Group, target reload.Reloadable, paths []string) {
	w, err := reload.New(target, paths)
	if err != nil {
		log.Warn().Err(err).Msg("hot-reload disabled")
		return
	}
	log.Info().Int("files", w.Watching()).Msg("hot-reload enabled")
	g.Go(func() error { return w.Run(ctx) })
}

func runServe(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := openService(true)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signalContext()
	defer stop()

	srv := server.New(svc, newPlanner(ctx), server.Config{
		Addr:          settings.HTTPAddr,
		AllowedOrigin: settings.AllowedOrigin,
		RateLimit: ratelimit.Limit{
			MaxRequests: settings.RateLimitRequests,
			Window:      settings.RateLimitWindow,
		},
	})

	g, gctx := errgroup.WithContext(ctx)
	startReloader(gctx, g, svc, svc.WatchPaths())
	g.Go(func() error { return srv.ListenAndServe(gctx) })
	if serveWithGRPC {
		rs := rpc.New(svc)
		g.Go(func() error { return rs.ListenAndServe(gctx, settings.GRPCPort) })
	}

	fmt.Fprintf(os.Stderr, "intentguard HTTP API listening on %s\n", settings.HTTPAddr)
	if serveWithGRPC {
		fmt.Fprintf(os.Stderr, "intentguard gRPC API listening on :%d\n", settings.GRPCPort)
	}
	fmt.Fprintf(os.Stderr, "Policy: %s (%s)\n\n", settings.PolicyPath, svc.PolicyHash())

	return g.Wait()
}
