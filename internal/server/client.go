package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	clientdomain "github.com/telecoop/backoffice/internal/client/domain"
	"github.com/telecoop/backoffice/pkg/db/pagination"
)

const dateOnlyLayout = "2006-01-02"

type createClientRequest struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Address          string `json:"address"`
	PlanID           string `json:"plan_id"`
	NapboxID         string `json:"napbox_id"`
	PortNumber       *int   `json:"port_number"`
	InstallationDate string `json:"installation_date"`
}

type updateClientRequest struct {
	Name       *string `json:"name"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
	Address    *string `json:"address"`
	PlanID     *string `json:"plan_id"`
	NapboxID   *string `json:"napbox_id"`
	PortNumber *int    `json:"port_number"`
	Status     *string `json:"status"`
}

func (s *Server) CreateClient(c *gin.Context) {
	var req createClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var installationDate *time.Time
	if trimmed := strings.TrimSpace(req.InstallationDate); trimmed != "" {
		parsed, err := time.Parse(dateOnlyLayout, trimmed)
		if err != nil {
			AbortWithError(c, newValidationError("installation_date", "invalid_installation_date", "invalid installation_date"))
			return
		}
		installationDate = &parsed
	}

	resp, err := s.clientSvc.Create(c.Request.Context(), clientdomain.CreateClientRequest{
		Name:             strings.TrimSpace(req.Name),
		Email:            strings.TrimSpace(req.Email),
		Phone:            strings.TrimSpace(req.Phone),
		Address:          strings.TrimSpace(req.Address),
		PlanID:           strings.TrimSpace(req.PlanID),
		NapboxID:         strings.TrimSpace(req.NapboxID),
		PortNumber:       req.PortNumber,
		InstallationDate: installationDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateClient(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var req updateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var status *clientdomain.ClientStatus
	if req.Status != nil {
		converted := clientdomain.ClientStatus(strings.TrimSpace(*req.Status))
		status = &converted
	}

	resp, err := s.clientSvc.Update(c.Request.Context(), clientdomain.UpdateClientRequest{
		ID:         id,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Address:    req.Address,
		PlanID:     req.PlanID,
		NapboxID:   req.NapboxID,
		PortNumber: req.PortNumber,
		Status:     status,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListClients(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status string `form:"status"`
		PlanID string `form:"plan_id"`
		Search string `form:"search"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.clientSvc.List(c.Request.Context(), clientdomain.ListClientRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
		Status:    strings.TrimSpace(query.Status),
		PlanID:    strings.TrimSpace(query.PlanID),
		Search:    strings.TrimSpace(query.Search),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetClientByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	resp, err := s.clientSvc.GetByID(c.Request.Context(), clientdomain.GetClientRequest{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetClientStats(c *gin.Context) {
	resp, err := s.clientSvc.Stats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
