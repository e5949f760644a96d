package storage

import (
	"log/slog"

	perrors "github.com/vango-dev/persist/internal/errors"
	"github.com/vango-dev/persist/pkg/metrics"
)

// diagnostics logs coded warnings for one backend.
type diagnostics struct {
	backend string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func newDiagnostics(backend string, o *options) diagnostics {
	return diagnostics{
		backend: backend,
		logger:  o.logger.With("component", "storage", "backend", backend),
		metrics: o.metrics,
	}
}

func (d diagnostics) warn(code, key string, err error) {
	pe := perrors.New(code)
	if err != nil {
		pe = pe.Wrap(err)
	}
	args := pe.LogArgs()
	if key != "" {
		args = append(args, "key", key)
	}
	d.logger.Warn(pe.Message, args...)
	d.metrics.Diagnostic(d.backend, code)
}

// unavailable logs the P001 fallback warning.
func (d diagnostics) unavailable(detail string) {
	pe := perrors.New("P001").WithDetail(detail)
	d.logger.Warn(pe.Message, pe.LogArgs()...)
	d.metrics.Diagnostic(d.backend, "P001")
	d.metrics.Fallback(d.backend)
}
