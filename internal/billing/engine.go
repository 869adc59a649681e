// Package billing implements the invoice cycle engine: a recurring pass
// that creates each active client's elapsed monthly invoices exactly once
// and flips stale pending invoices to overdue.
package billing

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/telecoop/backoffice/internal/authorization"
	clientdomain "github.com/telecoop/backoffice/internal/client/domain"
	"github.com/telecoop/backoffice/internal/clock"
	"github.com/telecoop/backoffice/internal/config"
	invoicedomain "github.com/telecoop/backoffice/internal/invoice/domain"
	"github.com/telecoop/backoffice/internal/lock"
	obsmetrics "github.com/telecoop/backoffice/internal/observability/metrics"
	"github.com/telecoop/backoffice/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	jobGenerateInvoices = "generate_invoices"

	tickLockKey = "telecoop:billing:tick"
)

var ErrInvalidConfig = errors.New("billing engine configuration invalid")

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	AuthzSvc authorization.Service
	Policy   *config.BillingPolicyHolder
	Locker   *lock.Locker `optional:"true"`
	Config   Config       `optional:"true"`
}

type Engine struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	authzSvc authorization.Service
	policy   *config.BillingPolicyHolder
	locker   *lock.Locker

	running atomic.Bool
}

func New(p Params) (*Engine, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.AuthzSvc == nil || p.Policy == nil {
		return nil, ErrInvalidConfig
	}
	return &Engine{
		db:       p.DB,
		log:      p.Log.Named("billing.engine").With(zap.String("component", "billing-engine")),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		authzSvc: p.AuthzSvc,
		policy:   p.Policy,
		locker:   p.Locker,
	}, nil
}

// RunOnce executes one complete tick. Each tick is independent; all state
// lives in the invoice history, so a crash mid-pass simply resumes on the
// next tick.
func (e *Engine) RunOnce(parent context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		e.log.Debug("billing.tick.skipped", zap.String("reason", "already_running"))
		return nil
	}
	defer e.running.Store(false)

	if e.locker != nil {
		token, ok, err := e.locker.TryLock(parent, tickLockKey, e.cfg.LockTTL)
		if err != nil {
			return fmt.Errorf("acquire tick lock: %w", err)
		}
		if !ok {
			e.log.Debug("billing.tick.skipped", zap.String("reason", "lock_held"))
			return nil
		}
		defer func() {
			if err := e.locker.Release(parent, tickLockKey, token); err != nil {
				e.log.Warn("billing.tick.lock_release_failed", zap.Error(err))
			}
		}()
	}

	return e.runJob(parent, jobGenerateInvoices, e.cfg.BatchSize, e.cfg.TickTimeout, e.GenerateInvoicesJob)
}

// RunForever ticks until the context is canceled.
func (e *Engine) RunForever(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	nextRun := e.clock.Now().Add(e.cfg.TickInterval)
	engMetrics := obsmetrics.Engine()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			engMetrics.ObserveRunLoopLag(runLag)
		}
		if err := e.RunOnce(ctx); err != nil {
			e.log.Warn("billing engine run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(e.cfg.TickInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (e *Engine) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := e.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := e.ensureJobRun(ctx, name, batchSize)
	if owner {
		e.logJobStart(ctx, run)
	}
	log := e.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	engMetrics := obsmetrics.Engine()
	engMetrics.IncJobRun(name)

	err := fn(ctx)
	engMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run != nil && run.errorCount == 0 {
			run.IncError()
		}
		e.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// A tick overrunning its soft timeout is operational noise, not a
	// failure: the next tick picks up where this one stopped.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		engMetrics.IncJobTimeout(name)
	}
	engMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// GenerateInvoicesJob walks every active client in id order and, for each,
// creates all elapsed cycles up to today and applies the overdue check.
func (e *Engine) GenerateInvoicesJob(ctx context.Context) error {
	ctx, run, owner := e.ensureJobRun(ctx, jobGenerateInvoices, e.cfg.BatchSize)
	if owner {
		e.logJobStart(ctx, run)
		defer e.logJobFinish(ctx, run)
	}
	now := e.clock.Now()
	policy := e.policy.Current()
	engMetrics := obsmetrics.Engine()
	var jobErr error

	var afterID snowflake.ID
	for {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		clients, err := e.fetchActiveClients(ctx, afterID, e.cfg.BatchSize)
		if err != nil {
			// Systemic store failure aborts the pass; the next tick
			// retries from scratch.
			e.logEngineError(ctx, run, "billing.client.fetch.failed", jobGenerateInvoices, 0, err)
			return errors.Join(jobErr, err)
		}
		if len(clients) == 0 {
			break
		}

		for _, client := range clients {
			if ctx.Err() != nil {
				return errors.Join(jobErr, ctx.Err())
			}
			if err := e.processClient(ctx, run, client, now, policy); err != nil {
				jobErr = errors.Join(jobErr, err)
				e.logEngineError(ctx, run, "billing.client.process.failed", jobGenerateInvoices, client.ID, err)
				continue
			}
			run.AddProcessed(1)
		}
		engMetrics.AddBatchProcessed(jobGenerateInvoices, "clients", len(clients))
		afterID = clients[len(clients)-1].ID
	}

	return jobErr
}

// processClient creates the client's elapsed cycles and then sweeps its
// pending invoices for overdue ones. Creation is bounded so a
// long-suspended client cannot monopolize a tick.
func (e *Engine) processClient(ctx context.Context, run *jobRun, client clientdomain.Client, now time.Time, policy config.BillingPolicy) error {
	engMetrics := obsmetrics.Engine()

	last, err := e.fetchLastInvoice(ctx, client.ID)
	if err != nil {
		return err
	}

	decision, err := NextInvoice(client, last, now, policy)
	if errors.Is(err, ErrInvalidHistory) {
		engMetrics.IncClientSkipped("invalid_history")
		e.logger(ctx).Warn("billing.client.skipped",
			zap.String("client_id", client.ID.String()),
			zap.String("reason", "invalid_history"),
		)
		return nil
	}
	if err != nil {
		return err
	}

	for i := 0; i < e.cfg.MaxCyclesPerClient; i++ {
		if i > 0 {
			last, err = e.fetchLastInvoice(ctx, client.ID)
			if err != nil {
				return err
			}
			decision, err = NextInvoice(client, last, now, policy)
			if err != nil {
				return err
			}
		}
		if !decision.Create {
			break
		}

		if err := e.authzSvc.Authorize(ctx, "system", authorization.ObjectInvoice, authorization.ActionInvoiceGenerate); err != nil {
			return err
		}

		invoice := &invoicedomain.Invoice{
			ID:              e.genID.Generate(),
			ClientID:        client.ID,
			ReferenceNumber: ulid.Make().String(),
			CycleMonth:      decision.CycleMonth,
			BillingDate:     decision.BillingDate,
			DueDate:         decision.DueDate,
			AmountCents:     client.MonthlyFeeCents,
			Status:          invoicedomain.InvoiceStatusPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := e.insertInvoice(ctx, invoice); err != nil {
			if db.IsDuplicateKeyErr(err) {
				// Another instance won the cycle; the unique index on
				// (client_id, cycle_month) makes this a benign race.
				e.log.Debug("billing.invoice.duplicate_cycle",
					zap.String("client_id", client.ID.String()),
					zap.String("cycle_month", decision.CycleMonth),
				)
				break
			}
			return err
		}
		engMetrics.IncInvoiceCreated()
		e.logInvoiceCreated(ctx, client.ID, invoice.ID, decision.CycleMonth, decision.DueDate)
	}

	// The sweep runs after creation so cycles backfilled with already
	// elapsed due dates flip in the same tick instead of lingering
	// pending until the next one.
	return e.sweepStaleOverdue(ctx, client, now, policy)
}

// sweepStaleOverdue flips every pending invoice of the client whose due
// date, plus the policy grace, is strictly in the past. Sweeping the whole
// pending set rather than just the latest invoice means an invoice inside
// its grace window when a newer cycle opens still gets flipped once the
// grace elapses.
func (e *Engine) sweepStaleOverdue(ctx context.Context, client clientdomain.Client, now time.Time, policy config.BillingPolicy) error {
	pending, err := e.fetchPendingInvoices(ctx, client.ID)
	if err != nil {
		return err
	}

	authorized := false
	for i := range pending {
		invoice := &pending[i]
		if !ShouldMarkOverdue(invoice, now, policy) {
			continue
		}
		if !authorized {
			if err := e.authzSvc.Authorize(ctx, "system", authorization.ObjectInvoice, authorization.ActionInvoiceMarkOverdue); err != nil {
				return err
			}
			authorized = true
		}

		updated, err := e.markOverdue(ctx, invoice.ID, now)
		if err != nil {
			return err
		}
		if updated {
			obsmetrics.Engine().AddInvoicesOverdue(1)
			e.logger(ctx).Info("billing.invoice.overdue",
				zap.String("client_id", client.ID.String()),
				zap.String("invoice_id", invoice.ID.String()),
				zap.String("due_date", invoice.DueDate.Format("2006-01-02")),
			)
		}
	}
	return nil
}
