package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/intentguard/internal/approval"
	"github.com/ppiankov/intentguard/internal/engine"
	"github.com/ppiankov/intentguard/internal/model"
	"github.com/ppiankov/intentguard/internal/service"
)

// DefaultPort is the gRPC listen port used when none is configured.
const DefaultPort = 50051

// EvaluateRequest is the JSON shape of an Evaluate request.
type EvaluateRequest struct {
	Text      string             `json:"text"`
	Reasoning string             `json:"reasoning"`
	Plan      string             `json:"plan"`
	Responses []model.UserAnswer `json:"responses"`
	Booking   map[string]string  `json:"booking,omitempty"`
}

// DecisionRequest is the JSON shape of Approve and Deny requests.
type DecisionRequest struct {
	ExecutionID string `json:"execution_id"`
	Approver    string `json:"approver"`
	Duration    string `json:"duration"`
}

// Server implements IntentGuardServer on top of a Service.
type Server struct {
	svc        *service.Service
	grpcServer *grpc.Server
}

// New creates a gRPC server and registers the service.
func New(svc *service.Service) *Server {
	s := &Server{svc: svc, grpcServer: grpc.NewServer()}
	s.grpcServer.RegisterService(&ServiceDesc, s)
	return s
}

// ListenAndServe listens on port and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", port, err)
	}
	return s.ServeOn(ctx, lis)
}

// ServeOn serves on lis until ctx is cancelled.
func (s *Server) ServeOn(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		s.grpcServer.GracefulStop()
	}()
	log.Info().Str("addr", lis.Addr().String()).Msg("grpc server listening")
	return s.grpcServer.Serve(lis)
}

// GracefulStop stops the server after in-flight calls finish.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

// Evaluate implements the Evaluate RPC.
func (s *Server) Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req EvaluateRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if strings.TrimSpace(req.Plan) == "" {
		return nil, status.Error(codes.InvalidArgument, "plan is required")
	}
	tr := s.svc.Evaluate(ctx, engine.Request{
		Utterance: req.Text,
		Reasoning: req.Reasoning,
		Plan:      req.Plan,
		Answers:   req.Responses,
		Booking:   req.Booking,
	})
	return toStruct(tr)
}

func decision(in *structpb.Struct) (DecisionRequest, error) {
	var req DecisionRequest
	if err := fromStruct(in, &req); err != nil {
		return req, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.ExecutionID == "" {
		return req, status.Error(codes.InvalidArgument, "execution_id is required")
	}
	if req.Approver == "" {
		req.Approver = "grpc"
	}
	return req, nil
}

func approvalError(err error) error {
	if errors.Is(err, approval.ErrNotFound) {
		return status.Error(codes.NotFound, err.Error())
	}
	return status.Error(codes.FailedPrecondition, err.Error())
}

// Approve implements the Approve RPC.
func (s *Server) Approve(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decision(in)
	if err != nil {
		return nil, err
	}
	var d time.Duration
	if req.Duration != "" {
		d, err = time.ParseDuration(req.Duration)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid duration %q: %v", req.Duration, err)
		}
	}
	if err := s.svc.Approve(req.ExecutionID, req.Approver, d); err != nil {
		return nil, approvalError(err)
	}
	return toStruct(map[string]string{"execution_id": req.ExecutionID, "status": string(approval.StatusApproved)})
}

// Deny implements the Deny RPC.
func (s *Server) Deny(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decision(in)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Deny(req.ExecutionID, req.Approver); err != nil {
		return nil, approvalError(err)
	}
	return toStruct(map[string]string{"execution_id": req.ExecutionID, "status": string(approval.StatusDenied)})
}

// ListPending implements the ListPending RPC.
func (s *Server) ListPending(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	list, err := s.svc.Approvals().Pending()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	if list == nil {
		list = []approval.Approval{}
	}
	return toStruct(map[string]any{"approvals": list})
}
