package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	capabilitydomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/domain"
	"gorm.io/gorm"
)

// CredentialStore resolves bring-your-own-key credentials from the
// provider_credentials table.
type CredentialStore struct {
	db *gorm.DB
}

func NewCredentialStore(db *gorm.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

func (s *CredentialStore) CredentialFor(ctx context.Context, accountID snowflake.ID, provider string) (*capabilitydomain.Credential, error) {
	if accountID == 0 {
		return nil, nil
	}

	var row capabilitydomain.ProviderCredential
	err := s.db.WithContext(ctx).
		Take(&row, "account_id = ? AND provider = ?", accountID, strings.ToLower(strings.TrimSpace(provider))).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &capabilitydomain.Credential{
		APIKey:  row.APIKey,
		BaseURL: row.BaseURL,
	}, nil
}

var _ capabilitydomain.CredentialSource = (*CredentialStore)(nil)
