package device

import (
	"context"
	"errors"

	"github.com/rmrobinson/floodlight/lib/stream"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gRPC service name of the state service.
	ServiceName = "floodlight.device.StateService"
	// GetDeviceStateMethod is the full method name used to fetch the device state.
	GetDeviceStateMethod = "/" + ServiceName + "/GetDeviceState"
	// WatchDeviceStateMethod is the full method name used to stream device state changes.
	WatchDeviceStateMethod = "/" + ServiceName + "/WatchDeviceState"
)

var (
	// ErrUnavailable is returned if the backing state service could not supply the state.
	ErrUnavailable = status.New(codes.Unavailable, "device state unavailable")
	// ErrInternal is returned if the state could not be encoded.
	ErrInternal = status.New(codes.Internal, "internal error")
	// ErrCancelled is returned if the caller went away before the state was available.
	ErrCancelled = status.New(codes.Canceled, "request cancelled")
	// ErrDeadlineExceeded is returned if the caller's deadline passed before the state was available.
	ErrDeadlineExceeded = status.New(codes.DeadlineExceeded, "deadline exceeded")
)

// Watchable is implemented by state services which can report changes as they happen.
type Watchable interface {
	Watch() *stream.Sink[State]
}

// StateServiceServer is the server API of the state service.
type StateServiceServer interface {
	GetDeviceState(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	WatchDeviceState(*emptypb.Empty, StateServiceWatchServer) error
}

// StateServiceWatchServer is the server side of a WatchDeviceState stream.
type StateServiceWatchServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type stateServiceWatchServer struct {
	grpc.ServerStream
}

func (x *stateServiceWatchServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

// StateServiceDesc describes the state service to gRPC.
var StateServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StateServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetDeviceState",
			Handler:    getDeviceStateHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchDeviceState",
			Handler:       watchDeviceStateHandler,
			ServerStreams: true,
		},
	},
}

// RegisterStateServiceServer registers the supplied server implementation with gRPC.
func RegisterStateServiceServer(s *grpc.Server, srv StateServiceServer) {
	s.RegisterService(&StateServiceDesc, srv)
}

func getDeviceStateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StateServiceServer).GetDeviceState(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetDeviceStateMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StateServiceServer).GetDeviceState(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func watchDeviceStateHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(StateServiceServer).WatchDeviceState(m, &stateServiceWatchServer{stream})
}

// StateServer exposes a StateService over gRPC.
// If the backing service is Watchable, watchers receive every change it reports.
type StateServer struct {
	logger *zap.Logger
	svc    StateService
}

// NewStateServer creates a gRPC front-end for the supplied state service.
func NewStateServer(logger *zap.Logger, svc StateService) *StateServer {
	return &StateServer{
		logger: logger,
		svc:    svc,
	}
}

// GetDeviceState retrieves the current device state.
func (s *StateServer) GetDeviceState(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	state, err := s.svc.FetchDeviceState(ctx)
	if err != nil {
		s.logger.Info("error fetching device state",
			zap.Error(err),
		)
		return nil, statusFromError(err).Err()
	}

	ret, err := state.ToStruct()
	if err != nil {
		s.logger.Error("error encoding device state",
			zap.Error(err),
		)
		return nil, ErrInternal.Err()
	}
	return ret, nil
}

// WatchDeviceState sends the current state and then every subsequent change until the caller disconnects.
func (s *StateServer) WatchDeviceState(req *emptypb.Empty, stream StateServiceWatchServer) error {
	addr := "unknown"
	if p, ok := peer.FromContext(stream.Context()); ok {
		addr = p.Addr.String()
	}

	logger := s.logger.With(zap.String("peer_addr", addr))
	logger.Debug("state watch initiated")

	var updates <-chan State
	if w, ok := s.svc.(Watchable); ok {
		sink := w.Watch()
		defer sink.Close()
		updates = sink.Messages()
	}

	// Seed the watcher with the current state.
	seed, err := s.GetDeviceState(stream.Context(), req)
	if err != nil {
		return err
	}
	if err := stream.Send(seed); err != nil {
		logger.Info("unable to send seed state",
			zap.Error(err),
		)
		return err
	}

	for {
		select {
		case <-stream.Context().Done():
			logger.Debug("state watch closed by peer")
			return nil
		case state, ok := <-updates:
			if !ok {
				logger.Debug("state source closed")
				return nil
			}

			msg, err := state.ToStruct()
			if err != nil {
				logger.Error("error encoding device state",
					zap.Error(err),
				)
				return ErrInternal.Err()
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

func statusFromError(err error) *status.Status {
	switch {
	case errors.Is(err, context.Canceled):
		return ErrCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrDeadlineExceeded
	default:
		return ErrUnavailable
	}
}
