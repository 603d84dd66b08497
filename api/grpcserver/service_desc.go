package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "cross.v1.Exchange"

// ExchangeServer is the server API of cross.v1.Exchange.
type ExchangeServer interface {
	SubmitLimit(context.Context, *LimitRequest) (*SubmitResponse, error)
	SubmitMarket(context.Context, *MarketRequest) (*SubmitResponse, error)
	SubmitStop(context.Context, *StopRequest) (*SubmitResponse, error)
	Cancel(context.Context, *CancelRequest) (*CancelResponse, error)
	Depth(context.Context, *DepthRequest) (*DepthResponse, error)
	PriceHistory(context.Context, *PriceHistoryRequest) (*PriceHistoryResponse, error)
}

// ExchangeServiceDesc describes cross.v1.Exchange for grpc.Server.
var ExchangeServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ExchangeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitLimit", Handler: unary("SubmitLimit", ExchangeServer.SubmitLimit)},
		{MethodName: "SubmitMarket", Handler: unary("SubmitMarket", ExchangeServer.SubmitMarket)},
		{MethodName: "SubmitStop", Handler: unary("SubmitStop", ExchangeServer.SubmitStop)},
		{MethodName: "Cancel", Handler: unary("Cancel", ExchangeServer.Cancel)},
		{MethodName: "Depth", Handler: unary("Depth", ExchangeServer.Depth)},
		{MethodName: "PriceHistory", Handler: unary("PriceHistory", ExchangeServer.PriceHistory)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cross/v1/exchange",
}

func RegisterExchangeServer(s grpc.ServiceRegistrar, srv ExchangeServer) {
	s.RegisterService(&ExchangeServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

// unary adapts a typed ExchangeServer method to a grpc.MethodHandler.
func unary[Req, Resp any](method string, call func(ExchangeServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ExchangeServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ExchangeServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
