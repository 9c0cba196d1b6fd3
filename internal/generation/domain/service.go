package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	routerdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/modelrouter/domain"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/pkg/db/pagination"
)

var (
	ErrGenerationNotFound = errors.New("generation not found")
	ErrEmptyPrompt        = errors.New("prompt is required")

	// ErrLedgerInconsistency marks a failed generation whose refund also
	// failed. The debit stands in the ledger with no completed output;
	// operators reconcile from the error log.
	ErrLedgerInconsistency = errors.New("refund failed after generation failure")
)

// GenerateRequest describes one generation attempt. ProjectLabel only names
// the durable-storage subfolder; it never affects orchestration.
type GenerateRequest struct {
	AccountID    snowflake.ID
	ProjectID    *snowflake.ID
	ProjectLabel string
	Kind         string
	Tier         routerdomain.Tier
	Prompt       string
	Params       map[string]any
}

// GenerateResult reports the terminal state of one generation attempt.
// CreditCost is the amount actually charged: the model's price on success,
// zero on every failure path.
type GenerateResult struct {
	Success      bool          `json:"success"`
	GenerationID *snowflake.ID `json:"generation_id,omitempty"`
	Kind         Kind          `json:"kind"`
	ResultText   string        `json:"result_text,omitempty"`
	ResultURL    string        `json:"result_url,omitempty"`
	CreditCost   int64         `json:"credit_cost"`
	Error        string        `json:"error,omitempty"`
}

type ListRequest struct {
	AccountID snowflake.ID
	pagination.Pagination
}

type ListResponse struct {
	pagination.PageInfo
	Generations []Generation `json:"generations"`
}

type Service interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Generation, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}
