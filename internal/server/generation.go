package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	generationdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/generation/domain"
	routerdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/modelrouter/domain"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/pkg/db/pagination"
)

type createGenerationRequest struct {
	AccountID    string         `json:"account_id" binding:"required"`
	ProjectID    string         `json:"project_id"`
	ProjectLabel string         `json:"project_label"`
	Kind         string         `json:"kind" binding:"required"`
	Tier         string         `json:"tier" binding:"required"`
	Prompt       string         `json:"prompt" binding:"required"`
	Params       map[string]any `json:"params"`
}

func (s *Server) createGeneration(c *gin.Context) {
	var req createGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	accountID, err := snowflake.ParseString(req.AccountID)
	if err != nil {
		AbortWithError(c, newValidationError("account_id", "invalid_id", "account_id must be a valid id"))
		return
	}

	var projectID *snowflake.ID
	if strings.TrimSpace(req.ProjectID) != "" {
		id, err := snowflake.ParseString(req.ProjectID)
		if err != nil {
			AbortWithError(c, newValidationError("project_id", "invalid_id", "project_id must be a valid id"))
			return
		}
		projectID = &id
	}

	if s.limiter.Enabled() {
		allow, err := s.limiter.Allow(c.Request.Context(), accountID, req.Tier)
		if err == nil && !allow.Allowed {
			AbortWithError(c, &rateLimitedError{retryAfterSeconds: int(allow.RetryAfter.Seconds()) + 1})
			return
		}
	}

	kind := generationdomain.ParseKind(req.Kind)
	c.Set("generation_kind", string(kind))

	result, err := s.generationSvc.Generate(c.Request.Context(), generationdomain.GenerateRequest{
		AccountID:    accountID,
		ProjectID:    projectID,
		ProjectLabel: strings.TrimSpace(req.ProjectLabel),
		Kind:         req.Kind,
		Tier:         routerdomain.Tier(req.Tier),
		Prompt:       req.Prompt,
		Params:       req.Params,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) getGeneration(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "id must be a valid id"))
		return
	}

	generation, err := s.generationSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, generation)
}

func (s *Server) listGenerations(c *gin.Context) {
	accountID, err := snowflake.ParseString(c.Query("account_id"))
	if err != nil {
		AbortWithError(c, newValidationError("account_id", "invalid_id", "account_id must be a valid id"))
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, newValidationError("page", "invalid_page", "invalid pagination parameters"))
		return
	}

	resp, err := s.generationSvc.List(c.Request.Context(), generationdomain.ListRequest{
		AccountID:  accountID,
		Pagination: page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
