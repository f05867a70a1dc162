package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/common"
)

// MaxMessageBytes fits a base64-encoded document of the largest accepted size
// plus the surrounding message fields.
const MaxMessageBytes = maxDocumentBytes*4/3 + 1<<20

// DialOptions raises the client message limits to match the server.
func DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithDefaultCallOptions(
			grpc.MaxCallSendMsgSize(MaxMessageBytes),
			grpc.MaxCallRecvMsgSize(MaxMessageBytes),
		),
	}
}

// NewGRPCServer builds a server with the budget and health services registered.
func NewGRPCServer(budget BudgetServiceServer, logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]grpc.ServerOption{
		grpc.MaxRecvMsgSize(MaxMessageBytes),
		grpc.MaxSendMsgSize(MaxMessageBytes),
	}, opts...)
	opts = append(opts, grpc.ChainUnaryInterceptor(requestLogger(logger)))
	s := grpc.NewServer(opts...)
	RegisterBudgetServiceServer(s, budget)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, hs)
	// empty string means overall server health
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return s, hs
}

// requestLogger tags each call with a request id and logs its outcome.
func requestLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		reqID := uuid.NewString()
		ctx = common.WithRequestID(ctx, reqID)
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("grpc.call", "req_id", reqID, "method", info.FullMethod,
			"code", status.Code(err).String(), "elapsed_ms", time.Since(start).Milliseconds())
		return resp, err
	}
}
