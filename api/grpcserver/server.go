package grpcserver

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"cross/domain/history"
	"cross/domain/orderbook"
	"cross/service"
)

// Exchange is the part of service.OrderService the RPC layer drives.
type Exchange interface {
	SubmitLimit(ctx context.Context, owner string, side orderbook.Side, size, price int64) (*service.Result, error)
	SubmitMarket(ctx context.Context, owner string, side orderbook.Side, size int64) (*service.Result, error)
	SubmitStop(ctx context.Context, owner string, side orderbook.Side, size, price int64) (*service.Result, error)
	Cancel(ctx context.Context, id uint64) (*service.Result, error)
	Depth(ctx context.Context, levels int) (orderbook.Depth, error)
	PriceHistory(ctx context.Context, year int, month time.Month) ([]history.DayPrice, error)
}

// Server adapts Exchange to cross.v1.Exchange.
type Server struct {
	ex Exchange
}

func NewServer(ex Exchange) *Server {
	return &Server{ex: ex}
}

// NewGRPCServer builds a grpc.Server with request logging and the Exchange
// service registered.
func NewGRPCServer(ex Exchange, log *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(loggingInterceptor(log))}, opts...)
	gs := grpc.NewServer(opts...)
	RegisterExchangeServer(gs, NewServer(ex))
	return gs
}

// -------------------- Commands --------------------

func (s *Server) SubmitLimit(ctx context.Context, req *LimitRequest) (*SubmitResponse, error) {
	side, err := orderbook.ParseSide(req.Side)
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := s.ex.SubmitLimit(ctx, req.Owner, side, req.Size, req.Price)
	if err != nil {
		return nil, toStatus(err)
	}
	return submitResponse(res), nil
}

func (s *Server) SubmitMarket(ctx context.Context, req *MarketRequest) (*SubmitResponse, error) {
	side, err := orderbook.ParseSide(req.Side)
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := s.ex.SubmitMarket(ctx, req.Owner, side, req.Size)
	if err != nil {
		return nil, toStatus(err)
	}
	return submitResponse(res), nil
}

func (s *Server) SubmitStop(ctx context.Context, req *StopRequest) (*SubmitResponse, error) {
	side, err := orderbook.ParseSide(req.Side)
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := s.ex.SubmitStop(ctx, req.Owner, side, req.Size, req.Price)
	if err != nil {
		return nil, toStatus(err)
	}
	return submitResponse(res), nil
}

func (s *Server) Cancel(ctx context.Context, req *CancelRequest) (*CancelResponse, error) {
	res, err := s.ex.Cancel(ctx, req.OrderID)
	if errors.Is(err, orderbook.ErrOrderNotFound) {
		return &CancelResponse{Found: false}, nil
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return &CancelResponse{
		Found:     true,
		Seq:       res.Seq,
		Order:     orderPtr(res.Order),
		Triggered: triggersOf(res.Triggered),
		Warnings:  res.Warnings,
	}, nil
}

// -------------------- Queries --------------------

func (s *Server) Depth(ctx context.Context, req *DepthRequest) (*DepthResponse, error) {
	if req.Levels < 0 {
		return nil, status.Errorf(codes.InvalidArgument, "levels %d must not be negative", req.Levels)
	}
	d, err := s.ex.Depth(ctx, req.Levels)
	if err != nil {
		return nil, toStatus(err)
	}
	return &DepthResponse{Asks: levelsOf(d.Asks), Bids: levelsOf(d.Bids)}, nil
}

func (s *Server) PriceHistory(ctx context.Context, req *PriceHistoryRequest) (*PriceHistoryResponse, error) {
	days, err := s.ex.PriceHistory(ctx, req.Year, time.Month(req.Month))
	if err != nil {
		return nil, toStatus(err)
	}
	if days == nil {
		days = []history.DayPrice{}
	}
	return &PriceHistoryResponse{Days: days}, nil
}

// -------------------- Errors --------------------

func toStatus(err error) error {
	switch {
	case orderbook.IsInvalid(err), errors.Is(err, service.ErrInvalidMonth):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, service.ErrNoHistory):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func loggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	log = log.With("component", "grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		started := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		level := slog.LevelDebug
		if code != codes.OK && code != codes.InvalidArgument {
			level = slog.LevelWarn
		}
		log.Log(ctx, level, "rpc", "method", info.FullMethod, "code", code.String(), "took", time.Since(started))
		return resp, err
	}
}
