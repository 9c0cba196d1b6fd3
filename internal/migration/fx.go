package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	capabilitydomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/domain"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/config"
	generationdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/generation/domain"
	ledgerdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/ledger/domain"
	routerdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/modelrouter/domain"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/seed"
	storagedomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/storage/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			if err := conn.AutoMigrate(
				&ledgerdomain.CreditAccount{},
				&ledgerdomain.CreditTransaction{},
				&routerdomain.ModelConfig{},
				&generationdomain.Generation{},
				&capabilitydomain.ProviderCredential{},
				&storagedomain.StorageIntegration{},
			); err != nil {
				return err
			}
		}

		return seed.EnsureDefaultModels(conn)
	}),
)
