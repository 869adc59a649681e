package billing

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	obscontext "github.com/telecoop/backoffice/internal/observability/context"
	obslogger "github.com/telecoop/backoffice/internal/observability/logger"
	obsmetrics "github.com/telecoop/backoffice/internal/observability/metrics"
	"go.uber.org/zap"
)

type jobRun struct {
	job            string
	runID          string
	batchSize      int
	startedAt      time.Time
	processedCount int
	errorCount     int
}

type jobRunKey struct{}

func (r *jobRun) AddProcessed(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.processedCount += count
}

func (r *jobRun) IncError() {
	if r == nil {
		return
	}
	r.errorCount++
}

func (e *Engine) ensureJobRun(ctx context.Context, job string, batchSize int) (context.Context, *jobRun, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if existing := jobRunFromContext(ctx); existing != nil {
		return ctx, existing, false
	}
	run := &jobRun{
		job:       job,
		runID:     e.genID.Generate().String(),
		batchSize: batchSize,
		startedAt: time.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = obscontext.WithActor(ctx, "system", "billing-engine")
	return ctx, run, true
}

func jobRunFromContext(ctx context.Context) *jobRun {
	if ctx == nil {
		return nil
	}
	if run, ok := ctx.Value(jobRunKey{}).(*jobRun); ok {
		return run
	}
	return nil
}

func (e *Engine) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, e.log)
}

func (e *Engine) logJobStart(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	e.logger(ctx).Info("billing.job.start",
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int("batch_size", run.batchSize),
	)
}

func (e *Engine) logJobFinish(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", time.Since(run.startedAt).Milliseconds()),
		zap.Int("processed_count", run.processedCount),
		zap.Int("error_count", run.errorCount),
	}
	log := e.logger(ctx)
	if run.errorCount > 0 {
		log.Warn("billing.job.finish", fields...)
		return
	}
	log.Info("billing.job.finish", fields...)
}

func (e *Engine) logEngineError(ctx context.Context, run *jobRun, msg string, job string, clientID snowflake.ID, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	if run != nil {
		run.IncError()
	}
	errorType := obsmetrics.ClassifyEngineErrorType(err)
	retryable := obsmetrics.IsEngineErrorRetryable(err)
	baseFields := []zap.Field{
		zap.String("job", job),
		zap.String("client_id", idString(clientID)),
		zap.String("error_type", errorType),
		zap.String("error", err.Error()),
		zap.Bool("retryable", retryable),
	}
	e.logger(ctx).Error(msg, append(baseFields, fields...)...)
}

func (e *Engine) logInvoiceCreated(ctx context.Context, clientID, invoiceID snowflake.ID, cycleMonth string, dueDate time.Time) {
	e.logger(ctx).Info("billing.invoice.created",
		zap.String("client_id", idString(clientID)),
		zap.String("invoice_id", idString(invoiceID)),
		zap.String("cycle_month", cycleMonth),
		zap.String("due_date", dueDate.Format("2006-01-02")),
	)
}

func idString(id snowflake.ID) string {
	if id == 0 {
		return ""
	}
	return id.String()
}
