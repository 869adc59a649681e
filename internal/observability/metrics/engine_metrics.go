package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/telecoop/backoffice/internal/authorization"
	"gorm.io/gorm"
)

const (
	EngineErrorTypeDeadlineExceeded = "deadline_exceeded"
	EngineErrorTypeAuthorization    = "authorization"
	EngineErrorTypeBusinessRule     = "business_rule"
	EngineErrorTypeDB               = "db"
	EngineErrorTypeUnknown          = "unknown"
)

const (
	EngineJobReasonDeadlineExceeded     = "deadline_exceeded"
	EngineJobReasonDBLockTimeout        = "db_lock_timeout"
	EngineJobReasonSerializationFailure = "serialization_failure"
	EngineJobReasonUniqueViolation      = "unique_violation"
	EngineJobReasonForbidden            = "forbidden"
	EngineJobReasonUnknown              = "unknown"
)

// EngineMetrics captures billing engine health signals.
type EngineMetrics struct {
	jobRuns         *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	jobTimeouts     *prometheus.CounterVec
	jobErrors       *prometheus.CounterVec
	batchProcessed  *prometheus.CounterVec
	runLoopLag      prometheus.Observer
	invoicesCreated prometheus.Counter
	invoicesOverdue prometheus.Counter
	clientsSkipped  *prometheus.CounterVec
}

var (
	engineMetricsOnce sync.Once
	engineMetrics     *EngineMetrics
)

// Engine returns the singleton billing engine metrics registry.
func Engine() *EngineMetrics {
	return EngineWithConfig(Config{})
}

// EngineWithConfig returns the singleton engine metrics registry using config labels.
func EngineWithConfig(cfg Config) *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineMetrics = newEngineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return engineMetrics
}

// ResetEngineMetricsForTest resets the engine metrics singleton for tests.
func ResetEngineMetricsForTest() {
	engineMetricsOnce = sync.Once{}
	engineMetrics = nil
}

func newEngineMetrics(registerer prometheus.Registerer, cfg Config) *EngineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "telecoop"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "telecoop_billing_job_runs_total",
		Help:        "Billing engine job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "telecoop_billing_job_duration_seconds",
		Help:        "Billing engine job latency to protect cycle freshness.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300, 600},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "telecoop_billing_job_timeouts_total",
		Help:        "Billing engine jobs that overran their soft deadline.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "telecoop_billing_job_errors_total",
		Help:        "Billing engine job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	batchProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "telecoop_billing_batch_processed_total",
		Help:        "Billing engine batch items processed to gauge throughput.",
		ConstLabels: constLabels,
	}, []string{"job", "resource"})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "telecoop_billing_runloop_lag_seconds",
		Help:        "Billing engine run loop lag beyond the configured interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	})
	invoicesCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "telecoop_billing_invoices_created_total",
		Help:        "Invoices generated by the billing engine.",
		ConstLabels: constLabels,
	})
	invoicesOverdue := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "telecoop_billing_invoices_overdue_total",
		Help:        "Invoices flipped from pending to overdue.",
		ConstLabels: constLabels,
	})
	clientsSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "telecoop_billing_clients_skipped_total",
		Help:        "Clients skipped during a billing run by reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})

	registerer.MustRegister(
		jobRuns,
		jobDuration,
		jobTimeouts,
		jobErrors,
		batchProcessed,
		runLoopLag,
		invoicesCreated,
		invoicesOverdue,
		clientsSkipped,
	)

	return &EngineMetrics{
		jobRuns:         jobRuns,
		jobDuration:     jobDuration,
		jobTimeouts:     jobTimeouts,
		jobErrors:       jobErrors,
		batchProcessed:  batchProcessed,
		runLoopLag:      runLoopLag,
		invoicesCreated: invoicesCreated,
		invoicesOverdue: invoicesOverdue,
		clientsSkipped:  clientsSkipped,
	}
}

// IncJobRun increments the run counter for an engine job.
func (m *EngineMetrics) IncJobRun(job string) {
	if m == nil || m.jobRuns == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records engine job latency in seconds.
func (m *EngineMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// IncJobTimeout increments the timeout counter for the engine job.
func (m *EngineMetrics) IncJobTimeout(job string) {
	if m == nil || m.jobTimeouts == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

// IncJobError increments the engine job error counter with classification.
func (m *EngineMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil || m.jobErrors == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifyEngineJobReason(err)).Inc()
}

// AddBatchProcessed increments the batch processed counter for a resource by count.
func (m *EngineMetrics) AddBatchProcessed(job, resource string, count int) {
	if m == nil || count <= 0 || m.batchProcessed == nil {
		return
	}
	m.batchProcessed.WithLabelValues(job, resource).Add(float64(count))
}

// ObserveRunLoopLag records lag between the scheduled tick and actual run start.
func (m *EngineMetrics) ObserveRunLoopLag(duration time.Duration) {
	if m == nil || m.runLoopLag == nil {
		return
	}
	lag := duration
	if lag < 0 {
		lag = 0
	}
	m.runLoopLag.Observe(lag.Seconds())
}

// IncInvoiceCreated increments the generated invoice counter.
func (m *EngineMetrics) IncInvoiceCreated() {
	if m == nil || m.invoicesCreated == nil {
		return
	}
	m.invoicesCreated.Inc()
}

// AddInvoicesOverdue increments the overdue counter by count.
func (m *EngineMetrics) AddInvoicesOverdue(count int) {
	if m == nil || count <= 0 || m.invoicesOverdue == nil {
		return
	}
	m.invoicesOverdue.Add(float64(count))
}

// IncClientSkipped increments the skipped client counter by reason.
func (m *EngineMetrics) IncClientSkipped(reason string) {
	if m == nil || m.clientsSkipped == nil {
		return
	}
	m.clientsSkipped.WithLabelValues(reason).Inc()
}

// ClassifyEngineErrorType returns a low-cardinality error type for logging.
func ClassifyEngineErrorType(err error) string {
	if err == nil {
		return EngineErrorTypeUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return EngineErrorTypeDeadlineExceeded
	}
	if isAuthorizationError(err) {
		return EngineErrorTypeAuthorization
	}
	if isDBError(err) {
		return EngineErrorTypeDB
	}
	return EngineErrorTypeBusinessRule
}

// IsEngineErrorRetryable reports whether the engine error should be retried.
func IsEngineErrorRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	return isDBError(err)
}

// ClassifyEngineJobReason maps engine job errors to low-cardinality reasons.
func ClassifyEngineJobReason(err error) string {
	if err == nil {
		return EngineJobReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return EngineJobReasonDeadlineExceeded
	}
	if isAuthorizationError(err) {
		return EngineJobReasonForbidden
	}
	if isDBLockTimeout(err) {
		return EngineJobReasonDBLockTimeout
	}
	if isSerializationFailure(err) {
		return EngineJobReasonSerializationFailure
	}
	if isUniqueViolation(err) {
		return EngineJobReasonUniqueViolation
	}
	return EngineJobReasonUnknown
}

func isDBLockTimeout(err error) bool {
	return hasPGCode(err, "55P03")
}

func isSerializationFailure(err error) bool {
	return hasPGCode(err, "40001")
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return hasPGCode(err, "23505")
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isAuthorizationError(err error) bool {
	return errors.Is(err, authorization.ErrForbidden) ||
		errors.Is(err, authorization.ErrInvalidActor) ||
		errors.Is(err, authorization.ErrInvalidObject) ||
		errors.Is(err, authorization.ErrInvalidAction)
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
