package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/clock"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/config"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/generation"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/ledger"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/migration"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/modelrouter"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/observability"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/ratelimit"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/server"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/storage"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		ledger.Module,
		modelrouter.Module,
		capability.Module,
		storage.Module,
		generation.Module,
		ratelimit.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
