package grpcstore

import (
	"context"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/sigpolicy/cidutil"
	"xdao.co/sigpolicy/internal/metrics"
	"xdao.co/sigpolicy/storage"
)

// Server serves a storage.Store over the PolicyStore service.
type Server struct {
	UnimplementedPolicyStoreServer
	Store   storage.Store
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

func (s *Server) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// observe records the gRPC code of an RPC outcome.
func (s *Server) observe(method string, err error) {
	if s == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = status.Code(err).String()
	}
	s.Metrics.IncStoreOp(method, result)
}

func (s *Server) Put(ctx context.Context, in *wrapperspb.BytesValue) (out *wrapperspb.StringValue, err error) {
	defer func() { s.observe("Put", err) }()
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	b := in.GetValue()
	expected, err := cidutil.ForBytes(b)
	if err != nil {
		return nil, status.Error(codes.Internal, "cid computation failed")
	}
	id, err := s.Store.Put(ctx, b)
	if err != nil {
		s.log().Warn("put failed", zap.Int("bytes", len(b)), zap.Error(err))
		return nil, toStatus(err)
	}
	if id != expected {
		return nil, status.Error(codes.DataLoss, storage.ErrCIDMismatch.Error())
	}
	s.log().Debug("document stored", zap.Stringer("cid", id), zap.Int("bytes", len(b)))
	return wrapperspb.String(id.String()), nil
}

func (s *Server) Get(ctx context.Context, in *wrapperspb.StringValue) (out *wrapperspb.BytesValue, err error) {
	defer func() { s.observe("Get", err) }()
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	id, err := cid.Decode(in.GetValue())
	if err != nil || !id.Defined() {
		return nil, status.Error(codes.InvalidArgument, storage.ErrInvalidCID.Error())
	}
	b, err := s.Store.Get(ctx, id)
	if err != nil {
		if !storage.IsNotFound(err) {
			s.log().Warn("get failed", zap.Stringer("cid", id), zap.Error(err))
		}
		return nil, toStatus(err)
	}
	got, err := cidutil.ForBytes(b)
	if err != nil {
		return nil, status.Error(codes.Internal, "cid computation failed")
	}
	if got != id {
		return nil, status.Error(codes.DataLoss, storage.ErrCIDMismatch.Error())
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Has(ctx context.Context, in *wrapperspb.StringValue) (out *wrapperspb.BoolValue, err error) {
	defer func() { s.observe("Has", err) }()
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	id, err := cid.Decode(in.GetValue())
	if err != nil || !id.Defined() {
		return nil, status.Error(codes.InvalidArgument, storage.ErrInvalidCID.Error())
	}
	return wrapperspb.Bool(s.Store.Has(ctx, id)), nil
}
