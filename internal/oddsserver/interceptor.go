package oddsserver

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// CallObserver records completed RPCs. *observability.Metrics satisfies it.
type CallObserver interface {
	ObserveCall(method, code string, elapsed time.Duration)
}

// Interceptors logs and measures every RPC.
type Interceptors struct {
	logger   *zap.Logger
	observer CallObserver
	reqSeq   atomic.Uint64
}

// NewInterceptors returns interceptors that log to logger and, when observer
// is non-nil, report to it.
//
// Precondition: logger must be non-nil.
func NewInterceptors(logger *zap.Logger, observer CallObserver) *Interceptors {
	return &Interceptors{logger: logger, observer: observer}
}

// ServerOptions returns the grpc.ServerOptions installing both interceptors.
func (i *Interceptors) ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(i.Unary),
		grpc.ChainStreamInterceptor(i.Stream),
	}
}

// Unary is a grpc.UnaryServerInterceptor.
func (i *Interceptors) Unary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	seq := i.reqSeq.Add(1)
	start := time.Now()
	resp, err := handler(ctx, req)
	i.finish(info.FullMethod, seq, start, err)
	return resp, err
}

// Stream is a grpc.StreamServerInterceptor.
func (i *Interceptors) Stream(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	seq := i.reqSeq.Add(1)
	start := time.Now()
	err := handler(srv, ss)
	i.finish(info.FullMethod, seq, start, err)
	return err
}

func (i *Interceptors) finish(method string, seq uint64, start time.Time, err error) {
	elapsed := time.Since(start)
	code := status.Code(err)
	if i.observer != nil {
		i.observer.ObserveCall(method, code.String(), elapsed)
	}
	if err != nil {
		i.logger.Debug("request failed",
			zap.String("method", method),
			zap.Uint64("req_seq", seq),
			zap.String("code", code.String()),
			zap.Error(err),
			zap.Duration("elapsed", elapsed),
		)
		return
	}
	i.logger.Debug("request succeeded",
		zap.String("method", method),
		zap.Uint64("req_seq", seq),
		zap.Duration("elapsed", elapsed),
	)
}
