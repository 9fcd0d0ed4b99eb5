// Package grpcserver exposes the catalog over gRPC. Messages are
// google.protobuf.Struct values carrying the same JSON shapes as the HTTP
// API, so no generated stubs are needed.
package grpcserver

import (
	"context"
	"errors"
	"strings"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/TETRIX8/anime/internal/catalog"
	"github.com/TETRIX8/anime/internal/kodik"
)

const ServiceName = "animewave.v1.Catalog"

type CatalogServer interface {
	List(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Search(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Recent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Details(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Genres(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type Server struct {
	Catalog *catalog.Service
}

func NewServer(svc *catalog.Service) *Server {
	return &Server{Catalog: svc}
}

func (s *Server) List(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p := catalog.ListParams{WithMaterialData: true}
	if err := decode(req, &p); err != nil {
		return nil, err
	}
	page, err := s.Catalog.List(ctx, p)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(page)
}

func (s *Server) Search(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var p catalog.SearchParams
	if err := decode(req, &p); err != nil {
		return nil, err
	}
	page, err := s.Catalog.Search(ctx, p)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(page)
}

func (s *Server) Recent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var p catalog.RecentParams
	if err := decode(req, &p); err != nil {
		return nil, err
	}
	page, err := s.Catalog.Recent(ctx, p)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(page)
}

func (s *Server) Details(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := strings.TrimSpace(req.GetFields()["id"].GetStringValue())
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	page, err := s.Catalog.Details(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(page)
}

func (s *Server) Genres(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return encode(map[string]any{"genres": s.Catalog.Genres()})
}

func decode(req *structpb.Struct, dst any) error {
	if req == nil {
		return nil
	}
	b, err := json.Marshal(req.AsMap())
	if err != nil {
		return status.Error(codes.InvalidArgument, "malformed request")
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode failed")
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Error(codes.Internal, "encode failed")
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode failed")
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, catalog.ErrInvalidQuery):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		return status.Error(codes.NotFound, "anime not found")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, kodik.ErrUpstream):
		return status.Error(codes.Internal, "catalog provider request failed")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func unary(method string, call func(CatalogServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CatalogServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(CatalogServer), ctx, req.(*structpb.Struct))
		})
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "List", Handler: unary("List", CatalogServer.List)},
		{MethodName: "Search", Handler: unary("Search", CatalogServer.Search)},
		{MethodName: "Recent", Handler: unary("Recent", CatalogServer.Recent)},
		{MethodName: "Details", Handler: unary("Details", CatalogServer.Details)},
		{MethodName: "Genres", Handler: unary("Genres", CatalogServer.Genres)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "animewave/v1/catalog.proto",
}

func Register(r grpc.ServiceRegistrar, srv CatalogServer) {
	r.RegisterService(&serviceDesc, srv)
}

// New builds a gRPC server with the catalog and health services.
func New(svc *catalog.Service, log *logrus.Logger) *grpc.Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(LoggingInterceptor(log)))
	Register(s, NewServer(svc))

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s
}

func LoggingInterceptor(log *logrus.Logger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		code := status.Code(err)
		entry := log.WithFields(logrus.Fields{
			"method": info.FullMethod,
			"code":   code.String(),
		})
		switch code {
		case codes.OK:
			entry.Debug("grpc call")
		case codes.Internal, codes.Unknown:
			entry.WithError(err).Error("grpc call failed")
		default:
			entry.WithField("message", status.Convert(err).Message()).Info("grpc call rejected")
		}
		return resp, err
	}
}
