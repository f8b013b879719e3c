package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/gatesizer/sizing"
	"github.com/inference-sim/gatesizer/sizing/trace"
)

var (
	metricsAddr string // Listen address of the /metrics endpoint
	traceLevel  string // Decision trace level
	traceOut    string // Decision trace YAML output
)

// startMetrics registers the run metrics and serves them on addr. With an empty
// addr it returns nil metrics and a no-op stop function.
func startMetrics(addr string) (*sizing.Metrics, func()) {
	if addr == "" {
		return nil, func() {}
	}
	reg := prometheus.NewRegistry()
	metrics := sizing.NewMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("metrics server: %v", err)
		}
	}()
	logrus.Infof("Serving metrics on http://%s/metrics", addr)

	return metrics, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// newTrace validates the trace flags and returns the trace to record into (nil when disabled).
func newTrace() *trace.RunTrace {
	if !trace.IsValidTraceLevel(traceLevel) {
		logrus.Fatalf("Invalid trace level: %s (valid: none, decisions)", traceLevel)
	}
	return trace.NewRunTrace(trace.TraceConfig{Level: trace.TraceLevel(traceLevel), Seed: seed})
}

// writeTrace stores tr as YAML at path. A nil trace or empty path writes nothing.
func writeTrace(tr *trace.RunTrace, path string) {
	if tr == nil || path == "" {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		logrus.Errorf("Failed to create trace file: %v", err)
		return
	}
	defer f.Close()
	if err := tr.WriteYAML(f); err != nil {
		logrus.Errorf("Failed to write trace: %v", err)
		return
	}
	logrus.Infof("Decision trace written to %s", path)
}

func addObserveFlags(c *cobra.Command) {
	c.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	c.Flags().StringVar(&traceLevel, "trace-level", "none", "Decision trace level (none, decisions)")
	c.Flags().StringVar(&traceOut, "trace-out", "", "Write the decision trace as YAML to this file")
}
