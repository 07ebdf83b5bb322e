package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/GoCodeAlone/extpoint/debug"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const debugShutdownTimeout = 5 * time.Second

// DebugHandler returns the introspection router for this context, with
// /metrics mounted when metrics are enabled.
func (c *Context) DebugHandler() http.Handler {
	r := debug.NewRouter(c)
	if collector := c.MetricsCollector(); collector != nil {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collector)
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	return r
}

// ServeDebug serves DebugHandler on the configured address until ctx is
// done. It returns nil without serving when debugging is disabled.
func (c *Context) ServeDebug(ctx context.Context) error {
	if !c.cfg.Debug.Enabled {
		return nil
	}
	srv := &http.Server{
		Addr:              c.cfg.Debug.Addr,
		Handler:           c.DebugHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("Debug server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("debug server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), debugShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("debug server shutdown: %w", err)
		}
		return nil
	}
}
