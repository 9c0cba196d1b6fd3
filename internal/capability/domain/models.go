package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ProviderCredential stores an account's own API key for a provider.
// Accounts with a row here are routed to their key instead of the
// platform's shared credentials.
type ProviderCredential struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	AccountID snowflake.ID `gorm:"not null;uniqueIndex:ux_provider_credentials_account_provider,priority:1"`
	Provider  string       `gorm:"type:text;not null;uniqueIndex:ux_provider_credentials_account_provider,priority:2"`
	APIKey    string       `gorm:"type:text;not null"`
	BaseURL   string       `gorm:"type:text"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ProviderCredential) TableName() string { return "provider_credentials" }
