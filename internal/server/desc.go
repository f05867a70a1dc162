package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "budget.v1.BudgetService"

const (
	methodProcess = "ProcessDocument"
	methodSubmit  = "SubmitDocument"
	methodGetJob  = "GetJob"
	methodList    = "ListJobs"
	methodItems   = "ListItems"
	methodExport  = "ExportJob"
)

// BudgetServiceServer is the server API for the budget service. Messages are
// carried as google.protobuf.Struct so no generated code is required.
type BudgetServiceServer interface {
	ProcessDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetJob(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListJobs(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListItems(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportJob(context.Context, *structpb.Struct) (*wrapperspb.BytesValue, error)
}

// RegisterBudgetServiceServer registers srv on s.
func RegisterBudgetServiceServer(s grpc.ServiceRegistrar, srv BudgetServiceServer) {
	s.RegisterService(&budgetServiceDesc, srv)
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

func structHandler(name string, call func(BudgetServiceServer, context.Context, *structpb.Struct) (any, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BudgetServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(BudgetServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var budgetServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BudgetServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		structHandler(methodProcess, func(s BudgetServiceServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.ProcessDocument(ctx, in)
		}),
		structHandler(methodSubmit, func(s BudgetServiceServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.SubmitDocument(ctx, in)
		}),
		structHandler(methodGetJob, func(s BudgetServiceServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.GetJob(ctx, in)
		}),
		structHandler(methodList, func(s BudgetServiceServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.ListJobs(ctx, in)
		}),
		structHandler(methodItems, func(s BudgetServiceServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.ListItems(ctx, in)
		}),
		structHandler(methodExport, func(s BudgetServiceServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.ExportJob(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "budget/v1/budget.proto",
}
