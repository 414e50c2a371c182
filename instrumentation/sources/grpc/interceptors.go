// Package grpc gives every RPC handled by a grpc.Server its own goroutine-local
// bag for the duration of the handler.
package grpc

import (
	"context"
	"log/slog"

	"github.com/Charnelx/thread-local/internal/log"
	"github.com/Charnelx/thread-local/internal/remoteaddr"
	"github.com/Charnelx/thread-local/local"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// Attributes seeded into each RPC's bag.
const (
	AttrRequestID     = "request_id"
	AttrMethod        = "method"
	AttrRemoteAddress = "remote_address"
	AttrStream        = "stream"

	RequestIDHeader = "x-request-id"
)

// UnaryServerInterceptor runs unary handlers inside a scope of h.
func UnaryServerInterceptor(h *local.Handle) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		var resp any
		var err error
		scoped(h, seed(ctx, info.FullMethod, false), func() {
			resp, err = handler(ctx, req)
		})
		logFinished(info.FullMethod, err)
		return resp, err
	}
}

// StreamServerInterceptor runs streaming handlers inside a scope of h. Only the
// handler's goroutine sees the bag; goroutines it starts do not.
func StreamServerInterceptor(h *local.Handle) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		var err error
		scoped(h, seed(ss.Context(), info.FullMethod, true), func() {
			err = handler(srv, ss)
		})
		logFinished(info.FullMethod, err)
		return err
	}
}

// scoped calls serve exactly once, inside a scope holding attrs when possible.
func scoped(h *local.Handle, attrs local.Attrs, serve func()) {
	served := false
	err := h.Scope(func() error {
		for name, v := range attrs {
			if err := h.Set(name, v); err != nil {
				return err
			}
		}
		served = true
		serve()
		return nil
	})
	if err != nil {
		log.Warn("rpc served without a local bag",
			slog.Any(AttrMethod, attrs[AttrMethod]),
			slog.Any("error", err))
	}
	if !served {
		serve()
	}
}

func seed(ctx context.Context, method string, stream bool) local.Attrs {
	return local.Attrs{
		AttrRequestID:     requestID(ctx),
		AttrMethod:        method,
		AttrRemoteAddress: remoteAddress(ctx),
		AttrStream:        stream,
	}
}

func requestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(RequestIDHeader); len(values) > 0 && values[0] != "" {
			return values[0]
		}
	}
	return uuid.NewString()
}

func remoteAddress(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return remoteaddr.Unknown
	}
	return remoteaddr.Normalize(p.Addr.String())
}

func logFinished(method string, err error) {
	log.Debug("rpc finished",
		slog.String(AttrMethod, method),
		slog.String("code", status.Code(err).String()))
}
