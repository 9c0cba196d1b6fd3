package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/config"
	obsmetrics "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/observability/metrics"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/ratelimit"
	storagedomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/storage/domain"
)

const (
	driveProvider = "drive"

	// Tokens within this window of expiry are refreshed proactively so the
	// upload does not race the expiry.
	tokenExpirySlack = 30 * time.Second

	refreshLockTTL = 15 * time.Second
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Cfg        config.Config
	Uploader   storagedomain.Uploader
	Locker     *ratelimit.Locker   `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	cfg        config.Config
	uploader   storagedomain.Uploader
	locker     *ratelimit.Locker
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) storagedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("storage.service"),
		genID:      p.GenID,
		cfg:        p.Cfg,
		uploader:   p.Uploader,
		locker:     p.Locker,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Persist(ctx context.Context, req storagedomain.PersistRequest) (*storagedomain.PersistResult, error) {
	if req.SourceURL == "" || req.AccountID == 0 {
		return s.degrade(ctx, req.AccountID, "invalid_request", nil)
	}

	integration, err := s.loadIntegration(ctx, req.AccountID)
	if err != nil {
		return s.degrade(ctx, req.AccountID, "integration_lookup_failed", err)
	}
	if integration == nil || integration.Status != storagedomain.IntegrationStatusActive {
		return s.degrade(ctx, req.AccountID, "no_integration", nil)
	}

	integration, err = s.ensureFreshToken(ctx, integration)
	if err != nil {
		return s.degrade(ctx, req.AccountID, "token_refresh_failed", err)
	}

	folderID, err := s.ensureFolders(ctx, integration, req.ProjectLabel)
	if err != nil {
		return s.degrade(ctx, req.AccountID, "folder_setup_failed", err)
	}

	fileName := req.FileName
	if fileName == "" {
		fileName = fmt.Sprintf("generation-%d", s.genID.Generate())
	}

	result, err := s.uploader.UploadFromURL(ctx, integration.AccessToken, folderID, fileName, req.SourceURL)
	if err != nil {
		return s.degrade(ctx, req.AccountID, "upload_failed", err)
	}

	s.log.Info("generation output persisted",
		zap.Int64("account_id", int64(req.AccountID)),
		zap.String("file_id", result.FileID),
	)
	return result, nil
}

func (s *Service) SaveIntegration(ctx context.Context, integration *storagedomain.StorageIntegration) error {
	if integration.AccountID == 0 || integration.RefreshToken == "" {
		return errors.New("account_id and refresh_token are required")
	}

	now := time.Now().UTC()
	if integration.ID == 0 {
		integration.ID = s.genID.Generate()
		integration.CreatedAt = now
	}
	if integration.Provider == "" {
		integration.Provider = driveProvider
	}
	if integration.Status == "" {
		integration.Status = storagedomain.IntegrationStatusActive
	}
	integration.UpdatedAt = now

	return s.db.WithContext(ctx).
		Where("account_id = ? AND provider = ?", integration.AccountID, integration.Provider).
		Assign(map[string]any{
			"access_token":  integration.AccessToken,
			"refresh_token": integration.RefreshToken,
			"token_expiry":  integration.TokenExpiry,
			"status":        integration.Status,
			"updated_at":    now,
		}).
		FirstOrCreate(integration).Error
}

func (s *Service) loadIntegration(ctx context.Context, accountID snowflake.ID) (*storagedomain.StorageIntegration, error) {
	var integration storagedomain.StorageIntegration
	err := s.db.WithContext(ctx).
		Take(&integration, "account_id = ? AND provider = ?", accountID, driveProvider).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &integration, nil
}

// ensureFreshToken refreshes the access token when it is near expiry. A
// redis lock serializes refreshes per account across instances; without
// redis the refresh proceeds unguarded.
func (s *Service) ensureFreshToken(ctx context.Context, integration *storagedomain.StorageIntegration) (*storagedomain.StorageIntegration, error) {
	if time.Now().UTC().Add(tokenExpirySlack).Before(integration.TokenExpiry) {
		return integration, nil
	}

	if s.locker != nil {
		key := ratelimit.LockKey("storage", "refresh", integration.AccountID.String())
		lease, err := s.locker.Acquire(ctx, key, refreshLockTTL)
		switch {
		case err == nil && lease != nil:
			defer func() {
				if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
					s.log.Warn("refresh lock release failed", zap.Error(err))
				}
			}()
		case err == nil:
			// Another instance holds the lease and is refreshing. Wait it
			// out, then use whatever token it produced if fresh enough.
			s.locker.AwaitRelease(ctx, key, refreshLockTTL, 100*time.Millisecond)
			reread, rerr := s.loadIntegration(ctx, integration.AccountID)
			if rerr == nil && reread != nil && time.Now().UTC().Add(tokenExpirySlack).Before(reread.TokenExpiry) {
				return reread, nil
			}
		}
	}

	refreshed, err := s.uploader.RefreshToken(ctx, integration.RefreshToken)
	if err != nil {
		return nil, err
	}

	integration.AccessToken = refreshed.AccessToken
	integration.TokenExpiry = refreshed.Expiry
	integration.UpdatedAt = time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&storagedomain.StorageIntegration{}).
		Where("id = ?", integration.ID).
		Updates(map[string]any{
			"access_token": integration.AccessToken,
			"token_expiry": integration.TokenExpiry,
			"updated_at":   integration.UpdatedAt,
		}).Error; err != nil {
		return nil, err
	}
	return integration, nil
}

func (s *Service) ensureFolders(ctx context.Context, integration *storagedomain.StorageIntegration, projectLabel string) (string, error) {
	rootID := integration.RootFolderID
	if rootID == "" {
		rootName := s.cfg.Storage.RootFolderName
		if rootName == "" {
			rootName = "Studio"
		}
		id, err := s.uploader.EnsureFolder(ctx, integration.AccessToken, "", rootName)
		if err != nil {
			return "", err
		}
		rootID = id
		if err := s.db.WithContext(ctx).Model(&storagedomain.StorageIntegration{}).
			Where("id = ?", integration.ID).
			Updates(map[string]any{"root_folder_id": rootID, "updated_at": time.Now().UTC()}).Error; err != nil {
			return "", err
		}
		integration.RootFolderID = rootID
	}

	label := strings.TrimSpace(projectLabel)
	if label == "" {
		return rootID, nil
	}
	return s.uploader.EnsureFolder(ctx, integration.AccessToken, rootID, slug.Make(label))
}

func (s *Service) degrade(ctx context.Context, accountID snowflake.ID, reason string, cause error) (*storagedomain.PersistResult, error) {
	fields := []zap.Field{
		zap.Int64("account_id", int64(accountID)),
		zap.String("reason", reason),
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	s.log.Warn("durable persistence skipped", fields...)
	s.obsMetrics.RecordPersistenceFallback(ctx, reason)
	return nil, nil
}

var _ storagedomain.Service = (*Service)(nil)
