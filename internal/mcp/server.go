package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/intentguard/internal/service"
)

// Server exposes plan evaluation as MCP tools.
type Server struct {
	mcpServer *mcpsdk.Server
	svc       *service.Service
}

// New creates an MCP server backed by svc.
func New(svc *service.Service, version string) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{svc: svc}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "intentguard",
			Version: version,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds all intentguard tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "intentguard_evaluate",
		Description: "Evaluate a travel or payment plan against intent schemas and policy. Returns the outcome status, triggered rules and payment link. Blocked plans return an error result.",
	}, s.handleEvaluate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "intentguard_questions",
		Description: "List the clarification questions needed to complete a plan. Without a plan, returns the standard questions for the request kind.",
	}, s.handleQuestions)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "intentguard_policy",
		Description: "Show the policy rule tables currently in effect and their hash.",
	}, s.handlePolicy)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "intentguard_approve",
		Description: "Approve an execution that ended in REQUIRES_APPROVAL so it can proceed to payment.",
	}, s.handleApprove)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "intentguard_pending",
		Description: "List all pending approval requests.",
	}, s.handlePending)
}
