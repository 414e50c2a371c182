// Package http gives every request served through net/http its own
// goroutine-local bag for the duration of the handler.
package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/Charnelx/thread-local/internal/log"
	"github.com/Charnelx/thread-local/local"
	"github.com/google/uuid"
)

// Attributes seeded into each request's bag.
const (
	AttrRequestID     = "request_id"
	AttrMethod        = "method"
	AttrRoute         = "route"
	AttrRouteParams   = "route_params"
	AttrRemoteAddress = "remote_address"

	RequestIDHeader = "X-Request-Id"
)

// Middleware runs orig inside a scope of h: the serving goroutine gets a bag
// built from h's template plus the request attributes, and loses it once orig
// returns. If the goroutine already had a bag, the attributes are written into
// it and the bag is kept. Handlers read the attributes through h (or Fields
// over it) without threading a context through every call.
func Middleware(h *local.Handle, orig func(w http.ResponseWriter, r *http.Request)) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		route := routeOf(r)
		attrs := local.Attrs{
			AttrRequestID:     requestID(r),
			AttrMethod:        r.Method,
			AttrRoute:         route,
			AttrRouteParams:   extractRouteParams(r, route),
			AttrRemoteAddress: clientAddress(r),
		}

		served := false
		err := h.Scope(func() error {
			for name, v := range attrs {
				if err := h.Set(name, v); err != nil {
					return err
				}
			}
			served = true
			orig(w, r)
			return nil
		})
		if err != nil {
			log.Warn("request served without a local bag",
				slog.String("route", route),
				slog.Any("error", err))
		}
		if !served {
			orig(w, r)
		}

		log.Debug("request finished",
			slog.Any(AttrRequestID, attrs[AttrRequestID]),
			slog.String(AttrRoute, route))
	}
}

func WrapHandler(h *local.Handle, handler http.Handler) http.Handler {
	return http.HandlerFunc(Middleware(h, handler.ServeHTTP))
}

func requestID(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}

func routeOf(r *http.Request) string {
	pattern := r.Pattern
	if pattern == "" {
		return r.URL.Path
	}

	// ServeMux patterns can start with the method and/or host
	// We only care about the path, we need to strip it
	pattern = strings.TrimPrefix(pattern, r.Method+" ")

	// Strip host prefix (e.g., "example.com/path")
	if idx := strings.Index(pattern, "/"); idx > 0 {
		pattern = pattern[idx:]
	}
	return pattern
}

func extractRouteParams(r *http.Request, pattern string) map[string]any {
	params := make(map[string]any)

	remaining := pattern

	// Pattern examples: "/users/{id}", "/posts/{id}/comments/{commentId}", "/files/{path...}"
	for {
		start := strings.Index(remaining, "{")
		if start == -1 {
			break
		}
		end := strings.Index(remaining[start:], "}")
		if end == -1 {
			break
		}

		paramName := strings.TrimSuffix(remaining[start+1:start+end], "...")
		if paramName != "$" {
			params[paramName] = r.PathValue(paramName)
		}

		remaining = remaining[start+end+1:]
	}

	return params
}
