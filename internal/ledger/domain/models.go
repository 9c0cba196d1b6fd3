// Package domain contains persistence models for the prepaid credit ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// AccountStatus represents lifecycle states for a credit account.
type AccountStatus string

const (
	AccountStatusActive      AccountStatus = "active"
	AccountStatusDeactivated AccountStatus = "deactivated"
)

// TransactionKind classifies a balance change by its cause.
type TransactionKind string

const (
	TransactionKindUsage              TransactionKind = "usage"
	TransactionKindRefund             TransactionKind = "refund"
	TransactionKindBonus              TransactionKind = "bonus"
	TransactionKindAdjustment         TransactionKind = "adjustment"
	TransactionKindSubscriptionCredit TransactionKind = "subscription_credit"
	TransactionKindPurchase           TransactionKind = "purchase"
)

// CreditAccount holds the prepaid balance for one account. The balance is
// mutated exclusively by the ledger service's atomic operations.
type CreditAccount struct {
	ID        snowflake.ID  `gorm:"primaryKey"`
	OrgID     *snowflake.ID `gorm:"index"`
	Balance   int64         `gorm:"not null;default:0"`
	Status    AccountStatus `gorm:"type:text;not null;default:'active'"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CreditAccount) TableName() string { return "credit_accounts" }

// CreditTransaction is an immutable record of one balance change. Amount is
// signed: negative for usage, positive for refunds and grants. BalanceAfter
// snapshots the account balance immediately after the change was applied.
// Rows are append-only and never edited.
type CreditTransaction struct {
	ID           snowflake.ID    `gorm:"primaryKey"`
	AccountID    snowflake.ID    `gorm:"not null;index"`
	Amount       int64           `gorm:"not null"`
	BalanceAfter int64           `gorm:"not null"`
	Kind         TransactionKind `gorm:"type:text;not null;index"`
	GenerationID *snowflake.ID   `gorm:"index"`
	Description  string          `gorm:"type:text"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CreditTransaction) TableName() string { return "credit_transactions" }
