package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	capabilitydomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/domain"
	routerdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/modelrouter/domain"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Generation is the durable record of one orchestrated AI call. A row
// exists only once funds are committed; rejected requests leave no trace.
type Generation struct {
	ID           snowflake.ID                    `gorm:"primaryKey" json:"id"`
	AccountID    snowflake.ID                    `gorm:"index" json:"account_id"`
	ProjectID    *snowflake.ID                   `json:"project_id,omitempty"`
	Kind         Kind                            `json:"kind"`
	Capability   capabilitydomain.CapabilityType `json:"capability"`
	Tier         routerdomain.Tier               `json:"tier"`
	Provider     string                          `json:"provider"`
	ModelID      string                          `json:"model_id"`
	Prompt       string                          `json:"prompt"`
	InputParams  datatypes.JSONMap               `json:"input_params,omitempty"`
	Status       Status                          `json:"status"`
	CreditCost   int64                           `json:"credit_cost"`
	ResultText   string                          `json:"result_text,omitempty"`
	ResultURL    string                          `json:"result_url,omitempty"`
	FallbackURL  string                          `json:"fallback_url,omitempty"`
	ErrorMessage string                          `json:"error_message,omitempty"`
	CreatedAt    time.Time                       `json:"created_at"`
	CompletedAt  *time.Time                      `json:"completed_at,omitempty"`
	DeletedAt    gorm.DeletedAt                  `gorm:"index" json:"-"`
}

func (Generation) TableName() string { return "generations" }
