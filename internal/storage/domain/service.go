package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type PersistRequest struct {
	AccountID    snowflake.ID
	SourceURL    string
	FileName     string
	ProjectLabel string
}

type PersistResult struct {
	URL    string
	FileID string
}

// Service copies a transient provider URL into the account's durable store.
//
// Persist is best-effort only: every degradation path (no integration,
// refresh failure, upload failure) returns (nil, nil) so callers keep the
// transient URL instead of failing the generation.
type Service interface {
	Persist(ctx context.Context, req PersistRequest) (*PersistResult, error)
	SaveIntegration(ctx context.Context, integration *StorageIntegration) error
}

// Token is an access token with its expiry.
type Token struct {
	AccessToken string
	Expiry      time.Time
}

// Uploader is the vendor-specific REST surface behind Persist.
type Uploader interface {
	RefreshToken(ctx context.Context, refreshToken string) (*Token, error)
	EnsureFolder(ctx context.Context, accessToken, parentID, name string) (string, error)
	UploadFromURL(ctx context.Context, accessToken, folderID, fileName, sourceURL string) (*PersistResult, error)
}
