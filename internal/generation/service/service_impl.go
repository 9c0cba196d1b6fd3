package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	capabilitydomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/domain"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/clock"
	generationdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/generation/domain"
	ledgerdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/ledger/domain"
	routerdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/modelrouter/domain"
	obsmetrics "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/observability/metrics"
	storagedomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/storage/domain"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/pkg/db/pagination"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Ledger     ledgerdomain.Service
	Router     routerdomain.Service
	Invoker    capabilitydomain.Invoker
	Storage    storagedomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Service runs the generation lifecycle: price, debit, invoke, persist,
// settle. Funds move only inside ledger transactions; a generation row
// exists for every debit and for nothing else.
type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	ledger     ledgerdomain.Service
	router     routerdomain.Service
	invoker    capabilitydomain.Invoker
	storage    storagedomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) generationdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("generation.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		ledger:     p.Ledger,
		router:     p.Router,
		invoker:    p.Invoker,
		storage:    p.Storage,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Generate(ctx context.Context, req generationdomain.GenerateRequest) (*generationdomain.GenerateResult, error) {
	if req.Prompt == "" {
		return nil, generationdomain.ErrEmptyPrompt
	}
	tier, err := routerdomain.ParseTier(string(req.Tier))
	if err != nil {
		return nil, err
	}

	kind := generationdomain.ParseKind(req.Kind)
	capability := kind.Capability()

	model, err := s.router.ResolveModel(ctx, capability, tier)
	if err != nil {
		return nil, err
	}

	generation, err := s.commitProcessing(ctx, req, kind, tier, model)
	if err != nil {
		return nil, err
	}

	log := s.log.With(
		zap.Int64("generation_id", int64(generation.ID)),
		zap.String("kind", string(kind)),
		zap.String("capability", string(capability)),
		zap.String("tier", string(tier)),
	)

	invokeStart := time.Now()
	invokeResult, invokeErr := s.invoker.Invoke(ctx, capabilitydomain.InvokeRequest{
		Capability:   capability,
		Provider:     model.Provider,
		ModelID:      model.ModelID,
		Prompt:       req.Prompt,
		SystemPrompt: kind.SystemPrompt(),
		Tier:         string(tier),
		AccountID:    req.AccountID,
		Params:       req.Params,
	})
	s.obsMetrics.RecordProviderLatency(ctx, model.Provider, string(capability), time.Since(invokeStart))

	if invokeErr != nil || !invokeResult.Success {
		msg := "provider call failed"
		if invokeErr != nil {
			msg = invokeErr.Error()
		} else if invokeResult.ErrMessage != "" {
			msg = invokeResult.ErrMessage
		}
		result, err := s.settleFailure(ctx, generation, msg, log)
		if err != nil {
			return nil, err
		}
		s.applyLatencyBudget(ctx, tier)
		return result, nil
	}

	result := s.settleSuccess(ctx, generation, invokeResult, req, log)
	s.applyLatencyBudget(ctx, tier)
	return result, nil
}

// commitProcessing debits the cost and inserts the processing row in one
// database transaction. Insufficient funds roll the whole thing back, so a
// rejected request leaves neither a row nor a ledger entry.
func (s *Service) commitProcessing(ctx context.Context, req generationdomain.GenerateRequest, kind generationdomain.Kind, tier routerdomain.Tier, model *routerdomain.ModelConfig) (*generationdomain.Generation, error) {
	now := time.Now().UTC()
	generation := &generationdomain.Generation{
		ID:          s.genID.Generate(),
		AccountID:   req.AccountID,
		ProjectID:   req.ProjectID,
		Kind:        kind,
		Capability:  model.Capability,
		Tier:        tier,
		Provider:    model.Provider,
		ModelID:     model.ModelID,
		Prompt:      req.Prompt,
		InputParams: datatypes.JSONMap(req.Params),
		Status:      generationdomain.StatusProcessing,
		CreditCost:  model.CreditCost,
		CreatedAt:   now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(generation).Error; err != nil {
			return err
		}
		if model.CreditCost == 0 {
			return nil
		}
		_, err := s.ledger.DebitTx(ctx, tx, ledgerdomain.DebitRequest{
			AccountID:    req.AccountID,
			Amount:       model.CreditCost,
			GenerationID: &generation.ID,
			Description:  fmt.Sprintf("%s generation", kind),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return generation, nil
}

func (s *Service) settleSuccess(ctx context.Context, generation *generationdomain.Generation, invokeResult *capabilitydomain.InvokeResult, req generationdomain.GenerateRequest, log *zap.Logger) *generationdomain.GenerateResult {
	resultText := invokeResult.Output
	resultURL := invokeResult.OutputURL
	fallbackURL := ""

	if generation.Capability.IsMedia() && invokeResult.OutputURL != "" {
		persisted, err := s.storage.Persist(ctx, storagedomain.PersistRequest{
			AccountID:    req.AccountID,
			SourceURL:    invokeResult.OutputURL,
			FileName:     fmt.Sprintf("%s-%d", generation.Kind, generation.ID),
			ProjectLabel: projectLabel(req),
		})
		if err != nil {
			log.Warn("persist returned error", zap.Error(err))
		}
		if persisted != nil {
			resultURL = persisted.URL
			fallbackURL = invokeResult.OutputURL
		}
	}

	chargedCost := s.reconcileCost(ctx, generation, invokeResult, log)

	now := time.Now().UTC()
	update := map[string]any{
		"status":       generationdomain.StatusCompleted,
		"result_text":  resultText,
		"result_url":   resultURL,
		"fallback_url": fallbackURL,
		"credit_cost":  chargedCost,
		"completed_at": now,
	}
	if err := s.db.WithContext(ctx).Model(&generationdomain.Generation{}).
		Where("id = ?", generation.ID).Updates(update).Error; err != nil {
		// The output exists and the debit stands; surface the row update
		// failure without inventing a refund.
		log.Error("completed generation update failed", zap.Error(err))
	}

	s.obsMetrics.RecordGeneration(ctx, string(generation.Capability), string(generation.Tier), string(generationdomain.StatusCompleted))
	log.Info("generation completed", zap.Int64("credit_cost", chargedCost))

	return &generationdomain.GenerateResult{
		Success:      true,
		GenerationID: &generation.ID,
		Kind:         generation.Kind,
		ResultText:   resultText,
		ResultURL:    resultURL,
		CreditCost:   chargedCost,
	}
}

// reconcileCost refunds the difference when the provider reports a lower
// actual cost than the configured price. Overcharges are never kept;
// providers cannot raise the price after the fact.
func (s *Service) reconcileCost(ctx context.Context, generation *generationdomain.Generation, invokeResult *capabilitydomain.InvokeResult, log *zap.Logger) int64 {
	chargedCost := generation.CreditCost
	if invokeResult.CreditCostOverride == nil {
		return chargedCost
	}
	actual := *invokeResult.CreditCostOverride
	if actual < 0 || actual >= chargedCost {
		return chargedCost
	}

	diff := chargedCost - actual
	_, err := s.ledger.Credit(ctx, ledgerdomain.CreditRequest{
		AccountID:    generation.AccountID,
		Amount:       diff,
		Kind:         ledgerdomain.TransactionKindAdjustment,
		GenerationID: &generation.ID,
		Description:  fmt.Sprintf("%s cost adjustment", generation.Kind),
	})
	if err != nil {
		log.Error("cost adjustment refund failed", zap.Int64("amount", diff), zap.Error(err))
		return chargedCost
	}
	return actual
}

func (s *Service) settleFailure(ctx context.Context, generation *generationdomain.Generation, msg string, log *zap.Logger) (*generationdomain.GenerateResult, error) {
	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&generationdomain.Generation{}).
		Where("id = ?", generation.ID).
		// The row keeps the resolved cost; the refund transaction pair
		// records that nothing was ultimately charged.
		Updates(map[string]any{
			"status":        generationdomain.StatusFailed,
			"error_message": msg,
			"completed_at":  now,
		}).Error; err != nil {
		log.Error("failed generation update failed", zap.Error(err))
	}

	if generation.CreditCost > 0 {
		_, err := s.ledger.Credit(ctx, ledgerdomain.CreditRequest{
			AccountID:    generation.AccountID,
			Amount:       generation.CreditCost,
			Kind:         ledgerdomain.TransactionKindRefund,
			GenerationID: &generation.ID,
			Description:  fmt.Sprintf("refund for failed %s generation", generation.Kind),
		})
		if err != nil {
			log.Error("refund failed, ledger holds an unsettled debit",
				zap.Int64("amount", generation.CreditCost),
				zap.Error(err),
			)
			return nil, fmt.Errorf("%w: %v", generationdomain.ErrLedgerInconsistency, err)
		}
	}

	s.obsMetrics.RecordGeneration(ctx, string(generation.Capability), string(generation.Tier), string(generationdomain.StatusFailed))
	log.Info("generation failed", zap.String("error", msg))

	return &generationdomain.GenerateResult{
		Success:      false,
		GenerationID: &generation.ID,
		Kind:         generation.Kind,
		CreditCost:   0,
		Error:        msg,
	}, nil
}

func (s *Service) applyLatencyBudget(ctx context.Context, tier routerdomain.Tier) {
	budget := s.router.LatencyBudget(tier)
	if budget <= 0 {
		return
	}
	s.clock.Sleep(ctx, budget)
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*generationdomain.Generation, error) {
	var generation generationdomain.Generation
	err := s.db.WithContext(ctx).Take(&generation, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, generationdomain.ErrGenerationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &generation, nil
}

func (s *Service) List(ctx context.Context, req generationdomain.ListRequest) (generationdomain.ListResponse, error) {
	limit := req.PageSize
	if limit <= 0 {
		limit = 25
	}

	query := s.db.WithContext(ctx).
		Where("account_id = ?", req.AccountID).
		Order("id DESC").
		Limit(limit + 1)

	if token := req.PageToken; token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return generationdomain.ListResponse{}, err
		}
		lastID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return generationdomain.ListResponse{}, err
		}
		query = query.Where("id < ?", lastID)
	}

	var rows []generationdomain.Generation
	if err := query.Find(&rows).Error; err != nil {
		return generationdomain.ListResponse{}, err
	}

	rows, pageInfo, err := pagination.BuildPageInfo(rows, limit, func(g generationdomain.Generation) pagination.Cursor {
		return pagination.Cursor{ID: g.ID.String()}
	})
	if err != nil {
		return generationdomain.ListResponse{}, err
	}
	return generationdomain.ListResponse{PageInfo: pageInfo, Generations: rows}, nil
}

// projectLabel prefers the caller-supplied label; without one the project id
// still yields a stable folder name.
func projectLabel(req generationdomain.GenerateRequest) string {
	if req.ProjectLabel != "" {
		return req.ProjectLabel
	}
	if req.ProjectID == nil {
		return ""
	}
	return fmt.Sprintf("project-%d", *req.ProjectID)
}

var _ generationdomain.Service = (*Service)(nil)
