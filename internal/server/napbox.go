package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	napboxdomain "github.com/telecoop/backoffice/internal/napbox/domain"
)

type createNapboxRequest struct {
	Code      string   `json:"code"`
	Location  string   `json:"location"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	PortCount int      `json:"port_count"`
	Notes     string   `json:"notes"`
}

type updateNapboxRequest struct {
	Location  *string  `json:"location"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	PortCount *int     `json:"port_count"`
	Notes     *string  `json:"notes"`
}

func (s *Server) CreateNapbox(c *gin.Context) {
	var req createNapboxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.napboxSvc.Create(c.Request.Context(), napboxdomain.CreateNapboxRequest{
		Code:      strings.TrimSpace(req.Code),
		Location:  strings.TrimSpace(req.Location),
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		PortCount: req.PortCount,
		Notes:     strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateNapbox(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var req updateNapboxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.napboxSvc.Update(c.Request.Context(), napboxdomain.UpdateNapboxRequest{
		ID:        id,
		Location:  req.Location,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		PortCount: req.PortCount,
		Notes:     req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListNapboxes(c *gin.Context) {
	resp, err := s.napboxSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Napboxes})
}

func (s *Server) GetNapboxByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	resp, err := s.napboxSvc.GetByID(c.Request.Context(), napboxdomain.GetNapboxRequest{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
