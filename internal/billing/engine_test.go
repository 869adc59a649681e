package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	clientdomain "github.com/telecoop/backoffice/internal/client/domain"
	"github.com/telecoop/backoffice/internal/clock"
	"github.com/telecoop/backoffice/internal/config"
	invoicedomain "github.com/telecoop/backoffice/internal/invoice/domain"
	obsmetrics "github.com/telecoop/backoffice/internal/observability/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type allowAllAuthz struct{}

func (allowAllAuthz) Authorize(ctx context.Context, actor, object, action string) error {
	return nil
}

// failFirstAuthz denies its first call, then allows everything. Lets a
// test fail one client's processing while the rest of the batch proceeds.
type failFirstAuthz struct {
	calls int
}

func (a *failFirstAuthz) Authorize(ctx context.Context, actor, object, action string) error {
	a.calls++
	if a.calls == 1 {
		return errors.New("authorize unavailable")
	}
	return nil
}

func openBillingTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	stmts := []string{
		`CREATE TABLE clients (
			id INTEGER PRIMARY KEY,
			account_number TEXT NOT NULL,
			name TEXT NOT NULL,
			plan_id INTEGER,
			status TEXT NOT NULL,
			monthly_fee_cents INTEGER NOT NULL,
			installation_date DATETIME NOT NULL,
			reactivated_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE invoices (
			id INTEGER PRIMARY KEY,
			client_id INTEGER NOT NULL,
			reference_number TEXT NOT NULL,
			cycle_month TEXT NOT NULL,
			billing_date DATETIME NOT NULL,
			due_date DATETIME NOT NULL,
			amount_cents INTEGER NOT NULL,
			status TEXT NOT NULL,
			paid_date DATETIME,
			payment_method TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE (client_id, cycle_month)
		)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func newTestEngine(t *testing.T, db *gorm.DB, fc clock.Clock, cfg Config) *Engine {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	engine, err := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fc,
		AuthzSvc: allowAllAuthz{},
		Policy:   &config.BillingPolicyHolder{},
		Config:   cfg,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func seedClient(t *testing.T, db *gorm.DB, c clientdomain.Client) {
	t.Helper()
	err := db.Exec(
		`INSERT INTO clients (id, account_number, name, plan_id, status, monthly_fee_cents,
		                      installation_date, reactivated_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.AccountNumber, c.Name, c.PlanID, c.Status, c.MonthlyFeeCents,
		c.InstallationDate, c.ReactivatedAt, c.InstallationDate, c.InstallationDate,
	).Error
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}
}

func seedInvoice(t *testing.T, db *gorm.DB, inv invoicedomain.Invoice) {
	t.Helper()
	err := db.Exec(
		`INSERT INTO invoices (id, client_id, reference_number, cycle_month, billing_date,
		                       due_date, amount_cents, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.ClientID, inv.ReferenceNumber, inv.CycleMonth, inv.BillingDate,
		inv.DueDate, inv.AmountCents, inv.Status, inv.BillingDate, inv.BillingDate,
	).Error
	if err != nil {
		t.Fatalf("seed invoice: %v", err)
	}
}

func loadInvoices(t *testing.T, db *gorm.DB, clientID snowflake.ID) []invoicedomain.Invoice {
	t.Helper()
	var invoices []invoicedomain.Invoice
	err := db.Raw(
		`SELECT id, client_id, reference_number, cycle_month, billing_date, due_date,
		        amount_cents, status
		 FROM invoices
		 WHERE client_id = ?
		 ORDER BY billing_date, id`,
		clientID,
	).Scan(&invoices).Error
	if err != nil {
		t.Fatalf("load invoices: %v", err)
	}
	return invoices
}

func swapPrometheusRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()

	registry := prometheus.NewRegistry()
	origRegisterer := prometheus.DefaultRegisterer
	origGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	obsmetrics.ResetEngineMetricsForTest()

	t.Cleanup(func() {
		prometheus.DefaultRegisterer = origRegisterer
		prometheus.DefaultGatherer = origGatherer
		obsmetrics.ResetEngineMetricsForTest()
	})
	return registry
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if labelsMatch(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(metric *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(metric.GetLabel()))
	for _, label := range metric.GetLabel() {
		got[label.GetName()] = label.GetValue()
	}
	for name, value := range want {
		if got[name] != value {
			return false
		}
	}
	return true
}

func TestEngineCreatesFirstInvoice(t *testing.T) {
	registry := swapPrometheusRegistry(t)
	db := openBillingTestDB(t)
	fc := clock.NewFakeClock(date(2024, time.January, 15))
	engine := newTestEngine(t, db, fc, Config{})

	seedClient(t, db, clientdomain.Client{
		ID:               1,
		AccountNumber:    "TC-0001",
		Name:             "Awa Diop",
		Status:           clientdomain.ClientStatusActive,
		MonthlyFeeCents:  1000,
		InstallationDate: date(2024, time.January, 10),
	})

	if err := engine.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	invoices := loadInvoices(t, db, 1)
	if len(invoices) != 1 {
		t.Fatalf("expected 1 invoice, got %d", len(invoices))
	}
	inv := invoices[0]
	if got := inv.BillingDate.UTC().Format("2006-01-02"); got != "2024-01-11" {
		t.Fatalf("expected billing date 2024-01-11, got %s", got)
	}
	if got := inv.DueDate.UTC().Format("2006-01-02"); got != "2024-02-29" {
		t.Fatalf("expected due date 2024-02-29, got %s", got)
	}
	if inv.CycleMonth != "2024-01" {
		t.Fatalf("expected cycle month 2024-01, got %s", inv.CycleMonth)
	}
	if inv.AmountCents != 1000 {
		t.Fatalf("expected amount 1000, got %d", inv.AmountCents)
	}
	if inv.Status != invoicedomain.InvoiceStatusPending {
		t.Fatalf("expected pending status, got %s", inv.Status)
	}
	if inv.ReferenceNumber == "" {
		t.Fatal("expected a reference number")
	}

	if got := getCounterValue(t, registry, "telecoop_billing_invoices_created_total", map[string]string{
		"service": "telecoop",
		"env":     "unknown",
	}); got != 1 {
		t.Fatalf("expected invoices created counter 1, got %v", got)
	}
	if got := getCounterValue(t, registry, "telecoop_billing_job_runs_total", map[string]string{
		"job": "generate_invoices",
	}); got != 1 {
		t.Fatalf("expected job runs counter 1, got %v", got)
	}
}

func TestEngineIdempotentAcrossTicks(t *testing.T) {
	swapPrometheusRegistry(t)
	db := openBillingTestDB(t)
	fc := clock.NewFakeClock(date(2024, time.January, 15))
	engine := newTestEngine(t, db, fc, Config{})

	seedClient(t, db, clientdomain.Client{
		ID:               1,
		AccountNumber:    "TC-0001",
		Name:             "Awa Diop",
		Status:           clientdomain.ClientStatusActive,
		MonthlyFeeCents:  1000,
		InstallationDate: date(2024, time.January, 10),
	})

	for i := 0; i < 3; i++ {
		if err := engine.RunOnce(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	if invoices := loadInvoices(t, db, 1); len(invoices) != 1 {
		t.Fatalf("expected 1 invoice after repeated ticks, got %d", len(invoices))
	}
}

func TestEngineCatchUpCreatesElapsedCycles(t *testing.T) {
	swapPrometheusRegistry(t)
	db := openBillingTestDB(t)
	fc := clock.NewFakeClock(date(2023, time.December, 15))
	engine := newTestEngine(t, db, fc, Config{})

	seedClient(t, db, clientdomain.Client{
		ID:               1,
		AccountNumber:    "TC-0001",
		Name:             "Moussa Ba",
		Status:           clientdomain.ClientStatusActive,
		MonthlyFeeCents:  2500,
		InstallationDate: date(2023, time.June, 10),
	})

	if err := engine.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	invoices := loadInvoices(t, db, 1)
	if len(invoices) != 5 {
		t.Fatalf("expected 5 catch-up invoices, got %d", len(invoices))
	}
	wantCycles := []string{"2023-06", "2023-07", "2023-08", "2023-10", "2023-12"}
	for i, want := range wantCycles {
		if invoices[i].CycleMonth != want {
			t.Fatalf("invoice %d: expected cycle %s, got %s", i, want, invoices[i].CycleMonth)
		}
	}
	// The final cycle's due date has not passed, so nothing else is owed.
	if last := invoices[len(invoices)-1]; last.DueDate.UTC().Format("2006-01-02") != "2024-01-30" {
		t.Fatalf("expected last due date 2024-01-30, got %s", last.DueDate.UTC().Format("2006-01-02"))
	}
}

func TestEngineCatchUpMarksElapsedCyclesOverdue(t *testing.T) {
	registry := swapPrometheusRegistry(t)
	db := openBillingTestDB(t)
	fc := clock.NewFakeClock(date(2023, time.December, 15))
	engine := newTestEngine(t, db, fc, Config{})

	seedClient(t, db, clientdomain.Client{
		ID:               1,
		AccountNumber:    "TC-0001",
		Name:             "Moussa Ba",
		Status:           clientdomain.ClientStatusActive,
		MonthlyFeeCents:  2500,
		InstallationDate: date(2023, time.June, 10),
	})

	if err := engine.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	// Backfilled cycles are born with due dates already elapsed; they must
	// leave the tick overdue, not pending. Only the final cycle, whose due
	// date is still ahead, stays pending.
	invoices := loadInvoices(t, db, 1)
	if len(invoices) != 5 {
		t.Fatalf("expected 5 catch-up invoices, got %d", len(invoices))
	}
	for i, inv := range invoices[:4] {
		if inv.Status != invoicedomain.InvoiceStatusOverdue {
			t.Fatalf("backfilled invoice %d (due %s) is %s, want overdue",
				i, inv.DueDate.UTC().Format("2006-01-02"), inv.Status)
		}
	}
	if last := invoices[4]; last.Status != invoicedomain.InvoiceStatusPending {
		t.Fatalf("expected final invoice pending, got %s", last.Status)
	}
	if got := getCounterValue(t, registry, "telecoop_billing_invoices_overdue_total", nil); got != 4 {
		t.Fatalf("expected overdue counter 4, got %v", got)
	}

	// A long run of daily ticks never leaves a past-due invoice pending.
	for day := 0; day < 90; day++ {
		fc.Advance(24 * time.Hour)
		if err := engine.RunOnce(context.Background()); err != nil {
			t.Fatalf("daily tick %d: %v", day, err)
		}
	}
	today := fc.Now().UTC().Truncate(24 * time.Hour)
	for _, inv := range loadInvoices(t, db, 1) {
		due := inv.DueDate.UTC().Truncate(24 * time.Hour)
		if due.Before(today) && inv.Status == invoicedomain.InvoiceStatusPending {
			t.Fatalf("invoice due %s still pending on %s",
				due.Format("2006-01-02"), today.Format("2006-01-02"))
		}
	}
}

func TestEngineBoundsCatchUpPerTick(t *testing.T) {
	swapPrometheusRegistry(t)
	db := openBillingTestDB(t)
	fc := clock.NewFakeClock(date(2023, time.December, 15))
	engine := newTestEngine(t, db, fc, Config{MaxCyclesPerClient: 2})

	seedClient(t, db, clientdomain.Client{
		ID:               1,
		AccountNumber:    "TC-0001",
		Name:             "Moussa Ba",
		Status:           clientdomain.ClientStatusActive,
		MonthlyFeeCents:  2500,
		InstallationDate: date(2023, time.June, 10),
	})

	if err := engine.RunOnce(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if invoices := loadInvoices(t, db, 1); len(invoices) != 2 {
		t.Fatalf("expected 2 invoices after first tick, got %d", len(invoices))
	}

	if err := engine.RunOnce(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if invoices := loadInvoices(t, db, 1); len(invoices) != 4 {
		t.Fatalf("expected 4 invoices after second tick, got %d", len(invoices))
	}
}

func TestEngineReactivationResetsSchedule(t *testing.T) {
	swapPrometheusRegistry(t)
	db := openBillingTestDB(t)
	fc := clock.NewFakeClock(date(2024, time.June, 15))
	engine := newTestEngine(t, db, fc, Config{})

	reactivated := date(2024, time.June, 10)
	seedClient(t, db, clientdomain.Client{
		ID:               1,
		AccountNumber:    "TC-0001",
		Name:             "Fatou Ndiaye",
		Status:           clientdomain.ClientStatusActive,
		MonthlyFeeCents:  4000,
		InstallationDate: date(2023, time.January, 5),
		ReactivatedAt:    &reactivated,
	})
	seedInvoice(t, db, invoicedomain.Invoice{
		ID:              100,
		ClientID:        1,
		ReferenceNumber: "INV-100",
		CycleMonth:      "2024-01",
		BillingDate:     date(2024, time.January, 16),
		DueDate:         date(2024, time.February, 15),
		AmountCents:     4000,
		Status:          invoicedomain.InvoiceStatusPaid,
	})

	if err := engine.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	invoices := loadInvoices(t, db, 1)
	if len(invoices) != 2 {
		t.Fatalf("expected 2 invoices, got %d", len(invoices))
	}
	// No backdated invoices for the suspension window; the clock restarts
	// from the reactivation.
	created := invoices[1]
	if got := created.BillingDate.UTC().Format("2006-01-02"); got != "2024-06-11" {
		t.Fatalf("expected billing date 2024-06-11, got %s", got)
	}
	if got := created.DueDate.UTC().Format("2006-01-02"); got != "2024-07-15" {
		t.Fatalf("expected due date 2024-07-15, got %s", got)
	}
	if created.CycleMonth != "2024-06" {
		t.Fatalf("expected cycle month 2024-06, got %s", created.CycleMonth)
	}
}

func TestEngineMarksStaleInvoiceOverdue(t *testing.T) {
	registry := swapPrometheusRegistry(t)
	db := openBillingTestDB(t)
	fc := clock.NewFakeClock(date(2024, time.March, 10))
	engine := newTestEngine(t, db, fc, Config{})

	seedClient(t, db, clientdomain.Client{
		ID:               1,
		AccountNumber:    "TC-0001",
		Name:             "Awa Diop",
		Status:           clientdomain.ClientStatusActive,
		MonthlyFeeCents:  1000,
		InstallationDate: date(2024, time.January, 10),
	})
	seedInvoice(t, db, invoicedomain.Invoice{
		ID:              100,
		ClientID:        1,
		ReferenceNumber: "INV-100",
		CycleMonth:      "2024-01",
		BillingDate:     date(2024, time.January, 11),
		DueDate:         date(2024, time.February, 29),
		AmountCents:     1000,
		Status:          invoicedomain.InvoiceStatusPending,
	})

	if err := engine.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	invoices := loadInvoices(t, db, 1)
	if len(invoices) != 2 {
		t.Fatalf("expected 2 invoices, got %d", len(invoices))
	}
	// The stale cycle flips overdue in the same tick that opens the next
	// one.
	if invoices[0].Status != invoicedomain.InvoiceStatusOverdue {
		t.Fatalf("expected first invoice overdue, got %s", invoices[0].Status)
	}
	if invoices[1].Status != invoicedomain.InvoiceStatusPending {
		t.Fatalf("expected new invoice pending, got %s", invoices[1].Status)
	}
	if got := invoices[1].DueDate.UTC().Format("2006-01-02"); got != "2024-04-29" {
		t.Fatalf("expected new due date 2024-04-29, got %s", got)
	}

	if got := getCounterValue(t, registry, "telecoop_billing_invoices_overdue_total", nil); got != 1 {
		t.Fatalf("expected overdue counter 1, got %v", got)
	}
}

func TestEngineGraceDaysDelayOverdue(t *testing.T) {
	swapPrometheusRegistry(t)
	db := openBillingTestDB(t)
	fc := clock.NewFakeClock(date(2024, time.March, 2))

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	engine, err := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fc,
		AuthzSvc: allowAllAuthz{},
		Policy:   config.StaticBillingPolicyHolder(config.BillingPolicy{DefaultDueDay: 30, GraceDays: 5}),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	seedClient(t, db, clientdomain.Client{
		ID:               1,
		AccountNumber:    "TC-0001",
		Name:             "Awa Diop",
		Status:           clientdomain.ClientStatusActive,
		MonthlyFeeCents:  1000,
		InstallationDate: date(2024, time.January, 10),
	})
	seedInvoice(t, db, invoicedomain.Invoice{
		ID:              100,
		ClientID:        1,
		ReferenceNumber: "INV-100",
		CycleMonth:      "2024-01",
		BillingDate:     date(2024, time.January, 11),
		DueDate:         date(2024, time.February, 29),
		AmountCents:     1000,
		Status:          invoicedomain.InvoiceStatusPending,
	})

	// The tick opens the next cycle while the old invoice is still inside
	// its grace window.
	if err := engine.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	invoices := loadInvoices(t, db, 1)
	if len(invoices) != 2 {
		t.Fatalf("expected 2 invoices, got %d", len(invoices))
	}
	if invoices[0].Status != invoicedomain.InvoiceStatusPending {
		t.Fatalf("invoice flipped inside its grace window: %s", invoices[0].Status)
	}

	// Last day of grace: due 2024-02-29 plus 5 days is 2024-03-05.
	fc.Advance(3 * 24 * time.Hour)
	if err := engine.RunOnce(context.Background()); err != nil {
		t.Fatalf("run on grace deadline: %v", err)
	}
	if invoices := loadInvoices(t, db, 1); invoices[0].Status != invoicedomain.InvoiceStatusPending {
		t.Fatalf("invoice flipped on the grace deadline: %s", invoices[0].Status)
	}

	// One day past the grace deadline the flip happens, even though a newer
	// cycle has been the client's latest invoice for days.
	fc.Advance(24 * time.Hour)
	if err := engine.RunOnce(context.Background()); err != nil {
		t.Fatalf("run past grace deadline: %v", err)
	}
	invoices = loadInvoices(t, db, 1)
	if invoices[0].Status != invoicedomain.InvoiceStatusOverdue {
		t.Fatalf("expected overdue past the grace deadline, got %s", invoices[0].Status)
	}
	if invoices[1].Status != invoicedomain.InvoiceStatusPending {
		t.Fatalf("expected current cycle pending, got %s", invoices[1].Status)
	}
}

func TestEngineNeverDowngradesPaidInvoice(t *testing.T) {
	swapPrometheusRegistry(t)
	db := openBillingTestDB(t)
	fc := clock.NewFakeClock(date(2024, time.March, 10))
	engine := newTestEngine(t, db, fc, Config{})

	seedClient(t, db, clientdomain.Client{
		ID:               1,
		AccountNumber:    "TC-0001",
		Name:             "Awa Diop",
		Status:           clientdomain.ClientStatusActive,
		MonthlyFeeCents:  1000,
		InstallationDate: date(2024, time.January, 10),
	})
	seedInvoice(t, db, invoicedomain.Invoice{
		ID:              100,
		ClientID:        1,
		ReferenceNumber: "INV-100",
		CycleMonth:      "2024-01",
		BillingDate:     date(2024, time.January, 11),
		DueDate:         date(2024, time.February, 29),
		AmountCents:     1000,
		Status:          invoicedomain.InvoiceStatusPaid,
	})

	if err := engine.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	invoices := loadInvoices(t, db, 1)
	if invoices[0].Status != invoicedomain.InvoiceStatusPaid {
		t.Fatalf("paid invoice was downgraded to %s", invoices[0].Status)
	}
}

func TestEngineSkipsInactiveClients(t *testing.T) {
	swapPrometheusRegistry(t)
	db := openBillingTestDB(t)
	fc := clock.NewFakeClock(date(2024, time.March, 10))
	engine := newTestEngine(t, db, fc, Config{})

	seedClient(t, db, clientdomain.Client{
		ID:               1,
		AccountNumber:    "TC-0001",
		Name:             "Awa Diop",
		Status:           clientdomain.ClientStatusInactive,
		MonthlyFeeCents:  1000,
		InstallationDate: date(2024, time.January, 10),
	})
	seedInvoice(t, db, invoicedomain.Invoice{
		ID:              100,
		ClientID:        1,
		ReferenceNumber: "INV-100",
		CycleMonth:      "2024-01",
		BillingDate:     date(2024, time.January, 11),
		DueDate:         date(2024, time.February, 29),
		AmountCents:     1000,
		Status:          invoicedomain.InvoiceStatusPending,
	})

	if err := engine.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	invoices := loadInvoices(t, db, 1)
	if len(invoices) != 1 {
		t.Fatalf("inactive client grew invoices: got %d", len(invoices))
	}
	// Not even the overdue transition applies to an inactive client.
	if invoices[0].Status != invoicedomain.InvoiceStatusPending {
		t.Fatalf("expected pending, got %s", invoices[0].Status)
	}
}

func TestEngineSkipsCorruptHistory(t *testing.T) {
	registry := swapPrometheusRegistry(t)
	db := openBillingTestDB(t)
	fc := clock.NewFakeClock(date(2024, time.April, 1))
	engine := newTestEngine(t, db, fc, Config{})

	seedClient(t, db, clientdomain.Client{
		ID:               1,
		AccountNumber:    "TC-0001",
		Name:             "Awa Diop",
		Status:           clientdomain.ClientStatusActive,
		MonthlyFeeCents:  1000,
		InstallationDate: date(2024, time.January, 10),
	})
	// Due date before billing date: upstream corruption.
	seedInvoice(t, db, invoicedomain.Invoice{
		ID:              100,
		ClientID:        1,
		ReferenceNumber: "INV-100",
		CycleMonth:      "2024-03",
		BillingDate:     date(2024, time.March, 15),
		DueDate:         date(2024, time.March, 1),
		AmountCents:     1000,
		Status:          invoicedomain.InvoiceStatusPending,
	})

	if err := engine.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	invoices := loadInvoices(t, db, 1)
	if len(invoices) != 1 {
		t.Fatalf("corrupt client grew invoices: got %d", len(invoices))
	}
	if invoices[0].Status != invoicedomain.InvoiceStatusPending {
		t.Fatalf("corrupt client was written to: status %s", invoices[0].Status)
	}
	if got := getCounterValue(t, registry, "telecoop_billing_clients_skipped_total", map[string]string{
		"reason": "invalid_history",
	}); got != 1 {
		t.Fatalf("expected clients skipped counter 1, got %v", got)
	}
}

func TestEngineIsolatesClientFailures(t *testing.T) {
	swapPrometheusRegistry(t)
	db := openBillingTestDB(t)
	fc := clock.NewFakeClock(date(2024, time.January, 15))

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	engine, err := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fc,
		AuthzSvc: &failFirstAuthz{},
		Policy:   &config.BillingPolicyHolder{},
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	for _, id := range []snowflake.ID{1, 2} {
		seedClient(t, db, clientdomain.Client{
			ID:               id,
			AccountNumber:    "TC-000" + id.String(),
			Name:             "Client " + id.String(),
			Status:           clientdomain.ClientStatusActive,
			MonthlyFeeCents:  1000,
			InstallationDate: date(2024, time.January, 10),
		})
	}

	err = engine.GenerateInvoicesJob(context.Background())
	if err == nil {
		t.Fatal("expected the failed client's error to surface")
	}

	// Client 1 failed authorization; client 2 still got its invoice.
	if invoices := loadInvoices(t, db, 1); len(invoices) != 0 {
		t.Fatalf("expected no invoices for failed client, got %d", len(invoices))
	}
	if invoices := loadInvoices(t, db, 2); len(invoices) != 1 {
		t.Fatalf("expected 1 invoice for healthy client, got %d", len(invoices))
	}
}

func TestEngineOverlapGuard(t *testing.T) {
	swapPrometheusRegistry(t)
	db := openBillingTestDB(t)
	fc := clock.NewFakeClock(date(2024, time.January, 15))
	engine := newTestEngine(t, db, fc, Config{})

	seedClient(t, db, clientdomain.Client{
		ID:               1,
		AccountNumber:    "TC-0001",
		Name:             "Awa Diop",
		Status:           clientdomain.ClientStatusActive,
		MonthlyFeeCents:  1000,
		InstallationDate: date(2024, time.January, 10),
	})

	engine.running.Store(true)
	if err := engine.RunOnce(context.Background()); err != nil {
		t.Fatalf("overlapping run once: %v", err)
	}
	if invoices := loadInvoices(t, db, 1); len(invoices) != 0 {
		t.Fatalf("overlapping tick wrote %d invoices", len(invoices))
	}

	engine.running.Store(false)
	if err := engine.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if invoices := loadInvoices(t, db, 1); len(invoices) != 1 {
		t.Fatalf("expected 1 invoice after guard released, got %d", len(invoices))
	}
}

func TestRunJobTimeoutDoesNotFailTheTick(t *testing.T) {
	registry := swapPrometheusRegistry(t)

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	engine := &Engine{
		log:   zap.NewNop(),
		genID: node,
		clock: clock.NewFakeClock(time.Time{}),
	}

	err = engine.runJob(context.Background(), "slow_job", 10, 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("soft timeout should not surface an error, got %v", err)
	}

	if got := getCounterValue(t, registry, "telecoop_billing_job_timeouts_total", map[string]string{
		"job": "slow_job",
	}); got != 1 {
		t.Fatalf("expected timeout counter 1, got %v", got)
	}
}
