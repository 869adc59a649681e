package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/telecoop/backoffice/internal/invoice/domain"
	paymentdomain "github.com/telecoop/backoffice/internal/payment/domain"
	"github.com/telecoop/backoffice/pkg/db/pagination"
)

type markInvoicePaidRequest struct {
	InvoiceID   string `json:"invoice_id"`
	Method      string `json:"method"`
	PaymentDate string `json:"payment_date"`
}

func (s *Server) ListInvoices(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status     string `form:"status"`
		ClientID   string `form:"client_id"`
		CycleMonth string `form:"cycle_month"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoiceRequest{
		PageToken:  query.PageToken,
		PageSize:   int32(query.PageSize),
		Status:     strings.TrimSpace(query.Status),
		ClientID:   strings.TrimSpace(query.ClientID),
		CycleMonth: strings.TrimSpace(query.CycleMonth),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	resp, err := s.invoiceSvc.GetByID(c.Request.Context(), invoicedomain.GetInvoiceRequest{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// CheckInvoiceReference looks an invoice up by its printed reference, the
// flow a cashier uses when a subscriber reads a number over the counter.
func (s *Server) CheckInvoiceReference(c *gin.Context) {
	reference := strings.TrimSpace(c.Query("reference"))

	resp, err := s.invoiceSvc.GetByReference(c.Request.Context(), invoicedomain.GetByReferenceRequest{
		ReferenceNumber: reference,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DownloadInvoicePDF(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	pdf, err := s.invoiceSvc.RenderPDF(c.Request.Context(), invoicedomain.GetInvoiceRequest{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=invoice-%s.pdf", id))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (s *Server) MarkInvoicePaid(c *gin.Context) {
	var req markInvoicePaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.MarkInvoicePaid(c.Request.Context(), paymentdomain.MarkInvoicePaidRequest{
		InvoiceID:   strings.TrimSpace(req.InvoiceID),
		Method:      strings.TrimSpace(req.Method),
		PaymentDate: strings.TrimSpace(req.PaymentDate),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPayments(c *gin.Context) {
	var query struct {
		pagination.Pagination
		ClientID string `form:"client_id"`
		Method   string `form:"method"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.List(c.Request.Context(), paymentdomain.ListPaymentRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
		ClientID:  strings.TrimSpace(query.ClientID),
		Method:    strings.TrimSpace(query.Method),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRevenue(c *gin.Context) {
	months := 0
	if raw := strings.TrimSpace(c.Query("months")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			AbortWithError(c, newValidationError("months", "invalid_months", "invalid months"))
			return
		}
		months = parsed
	}

	resp, err := s.paymentSvc.Revenue(c.Request.Context(), paymentdomain.RevenueRequest{Months: months})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
