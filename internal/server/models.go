package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	capabilitydomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/domain"
	routerdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/modelrouter/domain"
)

func (s *Server) listModels(c *gin.Context) {
	req := routerdomain.ListModelsRequest{
		Capability: capabilitydomain.CapabilityType(c.Query("capability")),
		Tier:       routerdomain.Tier(c.Query("tier")),
		ActiveOnly: c.Query("include_inactive") != "true",
	}

	models, err := s.routerSvc.ListModels(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"models": models})
}

type upsertModelRequest struct {
	Capability string `json:"capability" binding:"required"`
	Tier       string `json:"tier" binding:"required"`
	Provider   string `json:"provider" binding:"required"`
	ModelID    string `json:"model_id" binding:"required"`
	CreditCost int64  `json:"credit_cost"`
	IsDefault  bool   `json:"is_default"`
}

func (s *Server) upsertModel(c *gin.Context) {
	var req upsertModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	model, err := s.routerSvc.UpsertModel(c.Request.Context(), routerdomain.UpsertModelRequest{
		Capability: capabilitydomain.CapabilityType(req.Capability),
		Tier:       routerdomain.Tier(req.Tier),
		Provider:   req.Provider,
		ModelID:    req.ModelID,
		CreditCost: req.CreditCost,
		IsDefault:  req.IsDefault,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, model)
}
