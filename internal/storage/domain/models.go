package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type IntegrationStatus string

const (
	IntegrationStatusActive IntegrationStatus = "active"
	IntegrationStatusBroken IntegrationStatus = "broken"
)

// StorageIntegration is a per-account grant to an external durable store.
// Tokens are written back after each refresh.
type StorageIntegration struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	AccountID    snowflake.ID      `gorm:"uniqueIndex:ux_storage_integrations_account_provider" json:"account_id"`
	Provider     string            `gorm:"uniqueIndex:ux_storage_integrations_account_provider" json:"provider"`
	AccessToken  string            `json:"-"`
	RefreshToken string            `json:"-"`
	TokenExpiry  time.Time         `json:"token_expiry"`
	RootFolderID string            `json:"root_folder_id"`
	Status       IntegrationStatus `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (StorageIntegration) TableName() string { return "storage_integrations" }
