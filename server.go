package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const MetricsPath = "/metrics"

// serve the scan metrics on addr until stopMetricsServer is called
func startMetricsServer(addr string, gatherer prometheus.Gatherer, logger *zap.Logger) *http.Server {
	var svr http.Server
	var svrmux http.ServeMux
	svr.Handler = &svrmux
	svr.Addr = addr
	svr.ReadHeaderTimeout = 5 * time.Second

	svrmux.Handle(MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	go func() {
		logger.Info("serving metrics", zap.String("addr", addr), zap.String("path", MetricsPath))
		if err := svr.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return &svr
}

func stopMetricsServer(svr *http.Server, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Error from closing listeners, or context timeout
	if err := svr.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown", zap.Error(err))
	}
}
