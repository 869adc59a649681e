package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	plandomain "github.com/telecoop/backoffice/internal/plan/domain"
)

type createPlanRequest struct {
	Name        string         `json:"name"`
	SpeedMbps   int            `json:"speed_mbps"`
	PriceCents  int64          `json:"price_cents"`
	Description string         `json:"description"`
	Features    map[string]any `json:"features"`
}

type updatePlanRequest struct {
	Name        *string `json:"name"`
	SpeedMbps   *int    `json:"speed_mbps"`
	PriceCents  *int64  `json:"price_cents"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

func (s *Server) CreatePlan(c *gin.Context) {
	var req createPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.planSvc.Create(c.Request.Context(), plandomain.CreatePlanRequest{
		Name:        strings.TrimSpace(req.Name),
		SpeedMbps:   req.SpeedMbps,
		PriceCents:  req.PriceCents,
		Description: strings.TrimSpace(req.Description),
		Features:    req.Features,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdatePlan(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var req updatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.planSvc.Update(c.Request.Context(), plandomain.UpdatePlanRequest{
		ID:          id,
		Name:        req.Name,
		SpeedMbps:   req.SpeedMbps,
		PriceCents:  req.PriceCents,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPlans(c *gin.Context) {
	resp, err := s.planSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Plans})
}

func (s *Server) GetPlanByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	resp, err := s.planSvc.GetByID(c.Request.Context(), plandomain.GetPlanRequest{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
