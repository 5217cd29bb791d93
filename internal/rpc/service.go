// Package rpc serves the evaluation pipeline over gRPC. Messages are
// google.protobuf.Struct values carrying the same JSON shapes as the
// HTTP API, so no generated code is needed.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "intentguard.v1.IntentGuard"

// Method names.
const (
	MethodEvaluate    = "Evaluate"
	MethodApprove     = "Approve"
	MethodDeny        = "Deny"
	MethodListPending = "ListPending"
)

// IntentGuardServer is the server API for the IntentGuard service.
type IntentGuardServer interface {
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Approve(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Deny(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListPending(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryFunc func(IntentGuardServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(IntentGuardServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes the IntentGuard service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IntentGuardServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler(MethodEvaluate, IntentGuardServer.Evaluate),
		unaryHandler(MethodApprove, IntentGuardServer.Approve),
		unaryHandler(MethodDeny, IntentGuardServer.Deny),
		unaryHandler(MethodListPending, IntentGuardServer.ListPending),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "intentguard/v1/intentguard.proto",
}

// FullMethod returns "/intentguard.v1.IntentGuard/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// toStruct converts any JSON-encodable value to a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("rpc: response is not an object: %w", err)
	}
	return structpb.NewStruct(m)
}

// fromStruct decodes a Struct into v through its JSON form.
func fromStruct(s *structpb.Struct, v any) error {
	data, err := s.MarshalJSON()
	if err != nil {
		return fmt.Errorf("rpc: marshal request: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("rpc: decode request: %w", err)
	}
	return nil
}
