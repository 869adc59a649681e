package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/telecoop/backoffice/internal/payment/domain"
)

type fakePaymentService struct {
	markCalls int
	lastMark  paymentdomain.MarkInvoicePaidRequest
	markErr   error
}

func (f *fakePaymentService) MarkInvoicePaid(ctx context.Context, req paymentdomain.MarkInvoicePaidRequest) (paymentdomain.Payment, error) {
	f.markCalls++
	f.lastMark = req
	_ = ctx
	if f.markErr != nil {
		return paymentdomain.Payment{}, f.markErr
	}
	return paymentdomain.Payment{
		ID:          1,
		InvoiceID:   2,
		AmountCents: 2500,
		Method:      paymentdomain.PaymentMethodCash,
	}, nil
}

func (f *fakePaymentService) List(ctx context.Context, req paymentdomain.ListPaymentRequest) (paymentdomain.ListPaymentResponse, error) {
	_ = ctx
	_ = req
	return paymentdomain.ListPaymentResponse{}, nil
}

func (f *fakePaymentService) Revenue(ctx context.Context, req paymentdomain.RevenueRequest) ([]paymentdomain.MonthlyRevenue, error) {
	_ = ctx
	_ = req
	return nil, nil
}

func newBillingTestRouter(svc *fakePaymentService) *gin.Engine {
	gin.SetMode(gin.TestMode)

	srv := &Server{paymentSvc: svc}
	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	router.POST("/api/billing/mark-as-paid", srv.MarkInvoicePaid)
	return router
}

func TestMarkInvoicePaidForwardsRequest(t *testing.T) {
	svc := &fakePaymentService{}
	router := newBillingTestRouter(svc)

	body := `{"invoice_id":" 42 ","method":"cash","payment_date":"2024-03-01"}`
	req := httptest.NewRequest(http.MethodPost, "/api/billing/mark-as-paid", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.markCalls != 1 {
		t.Fatalf("expected 1 service call, got %d", svc.markCalls)
	}
	if svc.lastMark.InvoiceID != "42" {
		t.Fatalf("expected trimmed invoice id 42, got %q", svc.lastMark.InvoiceID)
	}
	if svc.lastMark.Method != "cash" || svc.lastMark.PaymentDate != "2024-03-01" {
		t.Fatalf("unexpected request passthrough: %+v", svc.lastMark)
	}
}

func TestMarkInvoicePaidAlreadyPaidReturnsConflict(t *testing.T) {
	svc := &fakePaymentService{markErr: paymentdomain.ErrAlreadyPaid}
	router := newBillingTestRouter(svc)

	body := `{"invoice_id":"42","method":"cash"}`
	req := httptest.NewRequest(http.MethodPost, "/api/billing/mark-as-paid", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
}

func TestMarkInvoicePaidInvalidMethodReturnsBadRequest(t *testing.T) {
	svc := &fakePaymentService{markErr: paymentdomain.ErrInvalidMethod}
	router := newBillingTestRouter(svc)

	body := `{"invoice_id":"42","method":"barter"}`
	req := httptest.NewRequest(http.MethodPost, "/api/billing/mark-as-paid", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestMarkInvoicePaidRejectsMalformedBody(t *testing.T) {
	svc := &fakePaymentService{}
	router := newBillingTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/billing/mark-as-paid", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	if svc.markCalls != 0 {
		t.Fatal("expected the service not to be called")
	}
}
