package billing

import (
	"errors"
	"time"

	clientdomain "github.com/telecoop/backoffice/internal/client/domain"
	"github.com/telecoop/backoffice/internal/config"
	invoicedomain "github.com/telecoop/backoffice/internal/invoice/domain"
)

// ErrInvalidHistory marks a client whose invoice history violates the
// due-after-billing invariant. Such clients are skipped, not failed.
var ErrInvalidHistory = errors.New("invoice history invalid")

// Decision is the outcome of the pure per-client cycle computation.
type Decision struct {
	Create      bool
	BillingDate time.Time
	DueDate     time.Time
	CycleMonth  string
}

// NextInvoice decides whether the client's next billing-cycle invoice is
// due, and with which dates. It performs no I/O; all state comes from the
// client row and its most recent invoice (nil when none exists).
//
// The anchor is the point the next cycle is computed from:
//   - reactivatedAt when it is newer than the last invoice's due date, or
//     when no invoice exists: reactivation restarts the billing clock
//     instead of resuming the old schedule.
//   - otherwise the last invoice's due date.
//   - otherwise the installation date (brand-new client).
//
// The billing date is the day after the anchor. The due date keeps the
// prior invoice's due day-of-month (policy default when none) and lands in
// the calendar month after the billing date, clamped to that month's
// length so a "31st" client in a 30-day month is due on the 30th.
func NextInvoice(client clientdomain.Client, last *invoicedomain.Invoice, today time.Time, policy config.BillingPolicy) (Decision, error) {
	if last != nil && !last.DueDate.After(last.BillingDate) {
		return Decision{}, ErrInvalidHistory
	}

	anchor := anchorDate(client, last)
	billingDate := normalizeDay(anchor).AddDate(0, 0, 1)

	dueDay := policy.DefaultDueDay
	if dueDay <= 0 {
		dueDay = config.DefaultBillingPolicy().DefaultDueDay
	}
	if last != nil {
		dueDay = last.DueDate.Day()
	}
	dueDate := dueDateFor(billingDate, dueDay)

	return Decision{
		Create:      !billingDate.After(normalizeDay(today)),
		BillingDate: billingDate,
		DueDate:     dueDate,
		CycleMonth:  billingDate.Format("2006-01"),
	}, nil
}

// ShouldMarkOverdue reports whether the invoice is a stale pending one:
// still pending with a due date, plus the policy's grace days, strictly
// before today.
func ShouldMarkOverdue(invoice *invoicedomain.Invoice, today time.Time, policy config.BillingPolicy) bool {
	if invoice == nil || invoice.Status != invoicedomain.InvoiceStatusPending {
		return false
	}
	grace := policy.GraceDays
	if grace < 0 {
		grace = 0
	}
	deadline := normalizeDay(invoice.DueDate).AddDate(0, 0, grace)
	return deadline.Before(normalizeDay(today))
}

func anchorDate(client clientdomain.Client, last *invoicedomain.Invoice) time.Time {
	if client.ReactivatedAt != nil {
		if last == nil || client.ReactivatedAt.After(last.DueDate) {
			return *client.ReactivatedAt
		}
	}
	if last != nil {
		return last.DueDate
	}
	return client.InstallationDate
}

// dueDateFor places dueDay in the month following billingDate, clamped to
// that month's length.
func dueDateFor(billingDate time.Time, dueDay int) time.Time {
	year, month, _ := billingDate.Date()
	firstOfTarget := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	day := clampDay(firstOfTarget.Year(), firstOfTarget.Month(), dueDay)
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, time.UTC)
}

func clampDay(year int, month time.Month, day int) int {
	if day < 1 {
		day = 1
	}
	last := daysIn(year, month)
	if day > last {
		return last
	}
	return day
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1).Day()
}

// normalizeDay strips the time component so date comparisons are immune to
// timezone drift.
func normalizeDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
