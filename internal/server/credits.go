package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	ledgerdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/ledger/domain"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/pkg/db/pagination"
)

type createAccountRequest struct {
	OrgID          string `json:"org_id"`
	InitialBalance int64  `json:"initial_balance"`
}

func (s *Server) createAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	var orgID *snowflake.ID
	if req.OrgID != "" {
		id, err := snowflake.ParseString(req.OrgID)
		if err != nil {
			AbortWithError(c, newValidationError("org_id", "invalid_id", "org_id must be a valid id"))
			return
		}
		orgID = &id
	}

	account, err := s.ledgerSvc.CreateAccount(c.Request.Context(), ledgerdomain.CreateAccountRequest{
		OrgID:          orgID,
		InitialBalance: req.InitialBalance,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, account)
}

func (s *Server) getBalance(c *gin.Context) {
	accountID, err := snowflake.ParseString(c.Query("account_id"))
	if err != nil {
		AbortWithError(c, newValidationError("account_id", "invalid_id", "account_id must be a valid id"))
		return
	}

	balance, err := s.ledgerSvc.GetBalance(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account_id": accountID.String(),
		"balance":    balance,
	})
}

func (s *Server) listTransactions(c *gin.Context) {
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

	resp, err := s.ledgerSvc.ListTransactions(c.Request.Context(), ledgerdomain.ListTransactionsRequest{
		AccountID:  accountID,
		Pagination: page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

type grantCreditsRequest struct {
	AccountID   string `json:"account_id" binding:"required"`
	Amount      int64  `json:"amount" binding:"required"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

func (s *Server) grantCredits(c *gin.Context) {
	var req grantCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	accountID, err := snowflake.ParseString(req.AccountID)
	if err != nil {
		AbortWithError(c, newValidationError("account_id", "invalid_id", "account_id must be a valid id"))
		return
	}

	kind := ledgerdomain.TransactionKind(req.Kind)
	if req.Kind == "" {
		kind = ledgerdomain.TransactionKindBonus
	}

	txn, err := s.ledgerSvc.Credit(c.Request.Context(), ledgerdomain.CreditRequest{
		AccountID:   accountID,
		Amount:      req.Amount,
		Kind:        kind,
		Description: req.Description,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, txn)
}
