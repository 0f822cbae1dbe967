package ingest

import (
	"context"
	"time"

	"github.com/ignite/contact-hub/internal/domain"
	"github.com/ignite/contact-hub/internal/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
)

// AuditEvent is emitted by the Engine for every write decision. Err is set
// (and Status empty) when the record failed.
type AuditEvent struct {
	Kind   domain.EntityKind
	Status domain.OutcomeStatus
	ID     string
	Via    KeyKind
	Err    error
	At     time.Time
}

// AuditHook observes ingestion decisions. Implementations must be safe for
// concurrent use and must not block.
type AuditHook interface {
	Record(ctx context.Context, ev AuditEvent)
}

// Hooks fans an event out to several hooks in order.
type Hooks []AuditHook

func (h Hooks) Record(ctx context.Context, ev AuditEvent) {
	for _, hook := range h {
		hook.Record(ctx, ev)
	}
}

type nopHook struct{}

func (nopHook) Record(context.Context, AuditEvent) {}

// LogHook writes one structured log line per event.
type LogHook struct {
	log *logger.Logger
}

// NewLogHook creates a log-backed audit hook.
func NewLogHook(l *logger.Logger) *LogHook {
	return &LogHook{log: l.With("component", "ingest.audit")}
}

func (h *LogHook) Record(_ context.Context, ev AuditEvent) {
	if ev.Err != nil {
		h.log.Warn("ingest record failed", "kind", ev.Kind, "error_class", Class(ev.Err), "error", ev.Err)
		return
	}
	h.log.Info("ingest record", "kind", ev.Kind, "status", ev.Status, "id", ev.ID, "via", ev.Via)
}

// MetricsHook counts ingestion outcomes in Prometheus.
type MetricsHook struct {
	records *prometheus.CounterVec
}

// NewMetricsHook registers the ingest counters with reg.
func NewMetricsHook(reg prometheus.Registerer) *MetricsHook {
	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contact_hub",
		Subsystem: "ingest",
		Name:      "records_total",
		Help:      "Ingested records by entity kind and outcome.",
	}, []string{"kind", "outcome"})
	reg.MustRegister(records)
	return &MetricsHook{records: records}
}

func (h *MetricsHook) Record(_ context.Context, ev AuditEvent) {
	outcome := string(ev.Status)
	if ev.Err != nil {
		outcome = "error_" + Class(ev.Err)
	}
	h.records.WithLabelValues(string(ev.Kind), outcome).Inc()
}
