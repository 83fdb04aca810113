// Package httpserver provides a reusable HTTP server for the tracker
// binaries.
//
// The BaseServer carries the ambient server concerns so that the tracker,
// oracle, and reporter services only implement their own routes:
//
//   - Liveness check at /livez and readiness at /readyz
//   - Drain control at /drain and /undrain for load balancer rotation
//   - Optional Prometheus metrics listener on a separate address
//   - Optional pprof debugging endpoints under /debug
//   - Request logging, panic recovery, and graceful shutdown
//
// Services plug in through the RouteRegistrar interface:
//
//	func (s *TrackerService) RegisterRoutes(r chi.Router) {
//	    r.Post("/api/observations", s.handleSubmit)
//	}
//
//	srv, _ := httpserver.New(cfg, trackerService)
//	srv.RunInBackground()
//	defer srv.Shutdown()
package httpserver
