package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RunSimpleServerOrDie serves the default registry at /metrics and blocks.
// Ledger side tools that want scraping without the full monitoring service
// (healthz, goroutinez) use this instead of NewPrometheusService.
func RunSimpleServerOrDie(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	if err := srv.ListenAndServe(); err != nil {
		panic(err)
	}
}
