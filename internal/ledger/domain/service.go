package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/pkg/db/pagination"
	"gorm.io/gorm"
)

var (
	ErrAccountNotFound   = errors.New("credit account not found")
	ErrInsufficientFunds = errors.New("insufficient credits")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidKind       = errors.New("invalid transaction kind")
)

type CreateAccountRequest struct {
	OrgID          *snowflake.ID
	InitialBalance int64
}

// DebitRequest charges Amount credits. Amount is non-negative at this
// boundary; the stored transaction amount is its negation.
type DebitRequest struct {
	AccountID    snowflake.ID
	Amount       int64
	GenerationID *snowflake.ID
	Description  string
}

type CreditRequest struct {
	AccountID    snowflake.ID
	Amount       int64
	Kind         TransactionKind
	GenerationID *snowflake.ID
	Description  string
}

type ListTransactionsRequest struct {
	AccountID snowflake.ID
	pagination.Pagination
}

type ListTransactionsResponse struct {
	pagination.PageInfo
	Transactions []CreditTransaction `json:"transactions"`
}

// Service owns all balance mutations. The Tx variants run inside a caller
// supplied gorm transaction so record inserts can commit atomically with the
// balance change.
type Service interface {
	CreateAccount(ctx context.Context, req CreateAccountRequest) (*CreditAccount, error)
	GetAccount(ctx context.Context, accountID snowflake.ID) (*CreditAccount, error)
	GetBalance(ctx context.Context, accountID snowflake.ID) (int64, error)
	HasSufficientFunds(ctx context.Context, accountID snowflake.ID, cost int64) (bool, error)
	Debit(ctx context.Context, req DebitRequest) (*CreditTransaction, error)
	DebitTx(ctx context.Context, tx *gorm.DB, req DebitRequest) (*CreditTransaction, error)
	Credit(ctx context.Context, req CreditRequest) (*CreditTransaction, error)
	CreditTx(ctx context.Context, tx *gorm.DB, req CreditRequest) (*CreditTransaction, error)
	ListTransactions(ctx context.Context, req ListTransactionsRequest) (ListTransactionsResponse, error)
}
