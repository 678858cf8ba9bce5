// Package middleware provides net/http middleware for tracing and metrics.
//
// Both middlewares wrap the whole HTTP surface, including WebSocket upgrades:
// the response wrapper passes Hijack and Flush through to the underlying
// writer.
//
//	r := chi.NewRouter()
//	r.Use(middleware.OpenTelemetry(middleware.WithTracerName("sptserver")))
//	r.Use(middleware.Prometheus(middleware.WithRegistry(reg)))
//
// Labels never include the request path; game URLs embed session and item
// identifiers.
package middleware
