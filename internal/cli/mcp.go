package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	igmcp "github.com/ppiankov/intentguard/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs intentguard as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes tools: intentguard_evaluate, intentguard_questions, intentguard_policy,\n" +
		"intentguard_approve, intentguard_pending.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := openService(true)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer cleanup()

	ctx, stop := signalContext()
	defer stop()

	srv := igmcp.New(svc, version)
	g, gctx := errgroup.WithContext(ctx)
	startReloader(gctx, g, svc, svc.WatchPaths())
	g.Go(func() error { return srv.Run(gctx) })
	return g.Wait()
}
