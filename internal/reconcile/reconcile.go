// Package reconcile ensures one uptime monitor exists per domain named in
// an inbound task event.
package reconcile

import (
	"context"
	"log/slog"

	"github.com/tjfontaine/uptime-bridge/internal/core/domain"
	"github.com/tjfontaine/uptime-bridge/internal/core/ports"
	"github.com/tjfontaine/uptime-bridge/internal/extract"
	"github.com/tjfontaine/uptime-bridge/internal/metrics"
)

// Outcome is the terminal state of one reconciliation.
type Outcome string

const (
	// OutcomeNoDomain means the event named no domain. It is not an error.
	OutcomeNoDomain Outcome = "no_domain"
	// OutcomeExists means a monitor already covers the domain; nothing was changed.
	OutcomeExists Outcome = "exists"
	// OutcomeCreated means a monitor was created.
	OutcomeCreated Outcome = "created"
	// OutcomeFailed means the creation attempt, or the lock guarding it, failed.
	OutcomeFailed Outcome = "failed"
)

// Result reports what Reconcile did.
type Result struct {
	Outcome Outcome
	Context domain.MonitorContext

	// Existing is set for OutcomeExists.
	Existing *domain.RemoteMonitor

	// Response is the upstream creation response for OutcomeCreated and,
	// as the error detail, for OutcomeFailed.
	Response domain.APIResponse

	// Err is the underlying failure for OutcomeFailed, if any.
	Err error
}

// MonitorDefaults are the settings applied to every created monitor.
type MonitorDefaults struct {
	Interval    int
	HTTPMethod  string
	Timeout     int
	GracePeriod int
}

// Options configures a Reconciler.
type Options struct {
	// Scheme prefixes the domain in the monitor URL, e.g. "https".
	Scheme  string
	Monitor MonitorDefaults
	Locker  ports.DomainLocker
	Logger  *slog.Logger
}

// Reconciler runs extract, build, find and create for one event at a time.
// It holds no state between calls and is safe for concurrent use.
type Reconciler struct {
	extractor *extract.Extractor
	directory ports.MonitorDirectory
	scheme    string
	defaults  MonitorDefaults
	locker    ports.DomainLocker
	logger    *slog.Logger
}

// New creates a Reconciler. Without a locker, concurrent events for the same
// domain may both see no monitor and both create one.
func New(extractor *extract.Extractor, directory ports.MonitorDirectory, opts Options) *Reconciler {
	locker := opts.Locker
	if locker == nil {
		locker = NoopLocker{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		extractor: extractor,
		directory: directory,
		scheme:    opts.Scheme,
		defaults:  opts.Monitor,
		locker:    locker,
		logger:    logger,
	}
}

// Reconcile handles one event. Exactly one creation attempt is made when no
// monitor exists; nothing is retried.
func (r *Reconciler) Reconcile(ctx context.Context, ev domain.Event) Result {
	res := r.reconcile(ctx, ev)
	metrics.ReconcileOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	return res
}

func (r *Reconciler) reconcile(ctx context.Context, ev domain.Event) Result {
	raw, ok := r.extractor.Extract(ev)
	if !ok {
		r.logger.InfoContext(ctx, "no domain in event", slog.String("field", r.extractor.Field()))
		return Result{Outcome: OutcomeNoDomain}
	}

	mc := extract.BuildContext(raw, r.scheme)
	logger := r.logger.With(slog.String("domain", mc.Domain))

	unlock, err := r.locker.Lock(ctx, mc.Domain)
	if err != nil {
		logger.ErrorContext(ctx, "failed to lock domain", slog.String("error", err.Error()))
		return Result{
			Outcome:  OutcomeFailed,
			Context:  mc,
			Response: domain.APIResponse{"status": "error", "message": err.Error()},
			Err:      err,
		}
	}
	defer unlock()

	existing, err := r.directory.FindMonitorByURL(ctx, mc.Domain)
	if err != nil {
		logger.ErrorContext(ctx, "monitor lookup aborted", slog.String("error", err.Error()))
		return Result{
			Outcome:  OutcomeFailed,
			Context:  mc,
			Response: domain.APIResponse{"status": "error", "message": err.Error()},
			Err:      err,
		}
	}
	if existing != nil {
		logger.InfoContext(ctx, "monitor already exists", slog.Int64("monitor_id", existing.ID))
		return Result{Outcome: OutcomeExists, Context: mc, Existing: existing}
	}

	resp, err := r.directory.CreateHTTPMonitor(ctx, domain.MonitorSpec{
		URL:          mc.MonitorURL,
		FriendlyName: mc.FriendlyName,
		Interval:     r.defaults.Interval,
		HTTPMethod:   r.defaults.HTTPMethod,
		Timeout:      r.defaults.Timeout,
		GracePeriod:  r.defaults.GracePeriod,
	})
	if id, ok := resp.ID(); ok && err == nil {
		logger.InfoContext(ctx, "monitor created", slog.String("monitor_id", id))
		return Result{Outcome: OutcomeCreated, Context: mc, Response: resp}
	}

	attrs := []any{slog.Int("status", resp.StatusCode()), slog.Any("response", map[string]any(resp))}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logger.ErrorContext(ctx, "monitor creation failed", attrs...)
	return Result{Outcome: OutcomeFailed, Context: mc, Response: resp, Err: err}
}
