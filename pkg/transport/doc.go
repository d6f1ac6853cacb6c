// Package transport provides HTTP middleware shared by the runs API server:
// panic recovery, request ID assignment, structured request logging, and
// APIError-to-HTTP-status translation.
//
// Unlike a pluggable-handler gateway fronting multiple backends, the runs
// API exposes a small fixed surface (POST /runs, GET /runs/{id}, GET
// /runs/{id}/stream, POST /runs/{id}/abort), so the middleware here wraps
// plain net/http Handlers rather than a custom handler interface. Each
// middleware has the signature func(http.Handler) http.Handler and composes
// with Chain, matching the idiom pkg/observability.MetricsMiddleware already
// uses for this server.
//
// # Dependencies
//
// Apart from pkg/api, which supplies the APIError type, this package uses
// only the Go standard library; structured logging uses log/slog. The HTTP
// server, its Go 1.22+ ServeMux routing, and SSE flushing via
// http.NewResponseController live in pkg/transport/http.
package transport
