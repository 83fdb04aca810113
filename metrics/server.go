package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/common"
)

// MetricsServer serves the Prometheus scrape endpoint on its own listener,
// kept separate from the API server so metrics are never exposed publicly.
type MetricsServer struct {
	srv *http.Server
}

// NewServer creates a metrics server for the given service name and listen
// address. The address may be empty; the caller is expected to skip
// starting it then. Registers a build-info gauge under the service name.
func NewServer(name, addr string) *MetricsServer {
	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: strings.ReplaceAll(name, "-", "_"),
		Name:      "build_info",
		Help:      "Build information for the running service",
	}, []string{"version"})
	if err := prometheus.Register(info); err == nil {
		info.WithLabelValues(common.Version).Set(1)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}))

	return &MetricsServer{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// ListenAndServe blocks serving the scrape endpoint.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
