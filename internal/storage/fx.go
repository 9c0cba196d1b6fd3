package storage

import (
	"go.uber.org/fx"

	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/config"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/storage/adapters/drive"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/storage/domain"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/storage/service"
)

var Module = fx.Module("storage",
	fx.Provide(
		newUploader,
		service.NewService,
	),
)

func newUploader(cfg config.Config) domain.Uploader {
	return drive.New(
		cfg.Storage.DriveBaseURL,
		cfg.Storage.DriveUploadBaseURL,
		cfg.Storage.DriveTokenURL,
		cfg.Storage.DriveClientID,
		cfg.Storage.DriveClientSecret,
	)
}
