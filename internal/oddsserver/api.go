// Package oddsserver exposes the odds engine as the odds.v1.OddsService gRPC
// service. Messages are google.protobuf.Struct values, so no generated code
// is needed.
package oddsserver

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "odds.v1.OddsService"

const (
	methodEvaluate    = "/" + serviceName + "/Evaluate"
	methodRoll        = "/" + serviceName + "/Roll"
	methodListCatalog = "/" + serviceName + "/ListCatalog"
	methodRollMany    = "/" + serviceName + "/RollMany"
	methodHistory     = "/" + serviceName + "/History"
)

// OddsServiceServer is the server API for odds.v1.OddsService.
type OddsServiceServer interface {
	// Evaluate returns the full distribution of {"expression"} or {"catalog_id"}.
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Roll draws one value from the distribution.
	Roll(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ListCatalog lists the named rolls.
	ListCatalog(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// RollMany streams {"count"} rolls of one distribution.
	RollMany(*structpb.Struct, OddsService_RollManyServer) error
	// History compares recorded rolls with the exact distribution.
	History(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// OddsService_RollManyServer is the server side of the RollMany stream.
type OddsService_RollManyServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type rollManyServer struct {
	grpc.ServerStream
}

func (s *rollManyServer) Send(m *structpb.Struct) error { return s.ServerStream.SendMsg(m) }

// serviceDesc is the gRPC service descriptor.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*OddsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: handlerEvaluate},
		{MethodName: "Roll", Handler: handlerRoll},
		{MethodName: "ListCatalog", Handler: handlerListCatalog},
		{MethodName: "History", Handler: handlerHistory},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "RollMany", Handler: handlerRollMany, ServerStreams: true},
	},
	Metadata: "odds/v1/odds.proto",
}

// RegisterOddsServiceServer registers srv on s.
func RegisterOddsServiceServer(s grpc.ServiceRegistrar, srv OddsServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

func handlerEvaluate(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	req := new(structpb.Struct)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OddsServiceServer).Evaluate(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodEvaluate}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OddsServiceServer).Evaluate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, req, info, handler)
}

func handlerRoll(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	req := new(structpb.Struct)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OddsServiceServer).Roll(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodRoll}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OddsServiceServer).Roll(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, req, info, handler)
}

func handlerListCatalog(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	req := new(emptypb.Empty)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OddsServiceServer).ListCatalog(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodListCatalog}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OddsServiceServer).ListCatalog(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, req, info, handler)
}

func handlerHistory(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	req := new(structpb.Struct)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OddsServiceServer).History(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodHistory}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OddsServiceServer).History(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, req, info, handler)
}

func handlerRollMany(srv interface{}, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(OddsServiceServer).RollMany(req, &rollManyServer{stream})
}

// Client is a client for odds.v1.OddsService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
//
// Precondition: cc must be non-nil.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Evaluate calls OddsService.Evaluate for expr.
func (c *Client) Evaluate(ctx context.Context, expr string) (*structpb.Struct, error) {
	return c.unary(ctx, methodEvaluate, expressionRequest(expr))
}

// EvaluateCatalog calls OddsService.Evaluate for a named roll.
func (c *Client) EvaluateCatalog(ctx context.Context, id string) (*structpb.Struct, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{"catalog_id": structpb.NewStringValue(id)}}
	return c.unary(ctx, methodEvaluate, req)
}

// Roll calls OddsService.Roll for expr.
func (c *Client) Roll(ctx context.Context, expr string) (*structpb.Struct, error) {
	return c.unary(ctx, methodRoll, expressionRequest(expr))
}

// ListCatalog calls OddsService.ListCatalog.
func (c *Client) ListCatalog(ctx context.Context) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodListCatalog, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// History calls OddsService.History for expr, returning up to limit recent
// rolls.
func (c *Client) History(ctx context.Context, expr string, limit int) (*structpb.Struct, error) {
	req := expressionRequest(expr)
	req.Fields["limit"] = structpb.NewNumberValue(float64(limit))
	return c.unary(ctx, methodHistory, req)
}

// RollMany calls OddsService.RollMany and collects every streamed roll.
func (c *Client) RollMany(ctx context.Context, expr string, count int) ([]*structpb.Struct, error) {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], methodRollMany)
	if err != nil {
		return nil, err
	}
	req := expressionRequest(expr)
	req.Fields["count"] = structpb.NewNumberValue(float64(count))
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	var out []*structpb.Struct
	for {
		m := new(structpb.Struct)
		if err := stream.RecvMsg(m); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		out = append(out, m)
	}
}

func (c *Client) unary(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func expressionRequest(expr string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{"expression": structpb.NewStringValue(expr)}}
}
