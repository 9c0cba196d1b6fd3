package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/adapters/mock"
	capabilitydomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/domain"
	capabilityservice "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/service"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/clock"
	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/config"
	generationdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/generation/domain"
	ledgerdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/ledger/domain"
	ledgerservice "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/ledger/service"
	routerdomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/modelrouter/domain"
	routerservice "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/modelrouter/service"
	storagedomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/storage/domain"
)

type stubStorage struct {
	mu     sync.Mutex
	result *storagedomain.PersistResult
	calls  []storagedomain.PersistRequest
}

func (s *stubStorage) Persist(ctx context.Context, req storagedomain.PersistRequest) (*storagedomain.PersistResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	return s.result, nil
}

func (s *stubStorage) SaveIntegration(ctx context.Context, integration *storagedomain.StorageIntegration) error {
	return nil
}

// failingRefundLedger wraps a real ledger but rejects refunds.
type failingRefundLedger struct {
	ledgerdomain.Service
}

func (l *failingRefundLedger) Credit(ctx context.Context, req ledgerdomain.CreditRequest) (*ledgerdomain.CreditTransaction, error) {
	return nil, errors.New("ledger unavailable")
}

type fixture struct {
	svc      generationdomain.Service
	conn     *gorm.DB
	ledger   ledgerdomain.Service
	router   routerdomain.Service
	clock    *clock.FakeClock
	provider *mock.Provider
	media    *mock.Provider
	storage  *stubStorage
}

func newFixture(t *testing.T, opts ...func(*fixture)) *fixture {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&ledgerdomain.CreditAccount{},
		&ledgerdomain.CreditTransaction{},
		&routerdomain.ModelConfig{},
		&capabilitydomain.ProviderCredential{},
		&generationdomain.Generation{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()

	f := &fixture{
		conn:     conn,
		clock:    clock.NewFakeClock(time.Now()),
		provider: mock.New(mock.WithName("openai")),
		media:    mock.New(mock.WithName("replicate")),
		storage:  &stubStorage{},
	}

	f.ledger = ledgerservice.NewService(ledgerservice.Params{DB: conn, Log: log, GenID: node})
	f.router = routerservice.NewService(routerservice.Params{
		DB:     conn,
		Log:    log,
		GenID:  node,
		Policy: config.NewStaticPolicyHolder(config.DefaultPolicyConfig()),
	})

	for _, opt := range opts {
		opt(f)
	}

	invoker, err := capabilityservice.NewService(capabilityservice.Params{
		Log:       log,
		Providers: []capabilitydomain.Provider{f.provider, f.media},
	})
	require.NoError(t, err)

	f.svc = NewService(Params{
		DB:      conn,
		Log:     log,
		GenID:   node,
		Clock:   f.clock,
		Ledger:  f.ledger,
		Router:  f.router,
		Invoker: invoker,
		Storage: f.storage,
	})
	return f
}

func (f *fixture) seedAccount(t *testing.T, balance int64) snowflake.ID {
	t.Helper()
	account, err := f.ledger.CreateAccount(context.Background(), ledgerdomain.CreateAccountRequest{InitialBalance: balance})
	require.NoError(t, err)
	return account.ID
}

func (f *fixture) seedModel(t *testing.T, capability capabilitydomain.CapabilityType, tier routerdomain.Tier, provider string, cost int64) {
	t.Helper()
	_, err := f.router.UpsertModel(context.Background(), routerdomain.UpsertModelRequest{
		Capability: capability,
		Tier:       tier,
		Provider:   provider,
		ModelID:    "test-model",
		CreditCost: cost,
		IsDefault:  true,
	})
	require.NoError(t, err)
}

func (f *fixture) transactions(t *testing.T, accountID snowflake.ID) []ledgerdomain.CreditTransaction {
	t.Helper()
	var rows []ledgerdomain.CreditTransaction
	require.NoError(t, f.conn.Where("account_id = ?", accountID).Order("id").Find(&rows).Error)
	return rows
}

func TestGenerateTextSuccess(t *testing.T) {
	f := newFixture(t)
	accountID := f.seedAccount(t, 100)
	f.seedModel(t, capabilitydomain.CapabilityText, routerdomain.TierBasic, "openai", 5)

	result, err := f.svc.Generate(context.Background(), generationdomain.GenerateRequest{
		AccountID: accountID,
		Kind:      "synopsis",
		Tier:      routerdomain.TierBasic,
		Prompt:    "a heist on a generation ship",
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, generationdomain.KindSynopsis, result.Kind)
	assert.Equal(t, int64(5), result.CreditCost)
	assert.NotEmpty(t, result.ResultText)
	require.NotNil(t, result.GenerationID)

	balance, err := f.ledger.GetBalance(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(95), balance)

	stored, err := f.svc.GetByID(context.Background(), *result.GenerationID)
	require.NoError(t, err)
	assert.Equal(t, generationdomain.StatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)

	txns := f.transactions(t, accountID)
	require.Len(t, txns, 2) // initial grant + usage
	usage := txns[1]
	assert.Equal(t, ledgerdomain.TransactionKindUsage, usage.Kind)
	assert.Equal(t, int64(-5), usage.Amount)
	require.NotNil(t, usage.GenerationID)
	assert.Equal(t, *result.GenerationID, *usage.GenerationID)

	calls := f.provider.Calls()
	require.Len(t, calls, 1)
	assert.NotEmpty(t, calls[0].SystemPrompt)
}

func TestGenerateInsufficientFundsLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	accountID := f.seedAccount(t, 3)
	f.seedModel(t, capabilitydomain.CapabilityText, routerdomain.TierBasic, "openai", 5)

	_, err := f.svc.Generate(context.Background(), generationdomain.GenerateRequest{
		AccountID: accountID,
		Kind:      "logline",
		Tier:      routerdomain.TierBasic,
		Prompt:    "a heist",
	})
	assert.ErrorIs(t, err, ledgerdomain.ErrInsufficientFunds)

	balance, err := f.ledger.GetBalance(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), balance)

	var count int64
	require.NoError(t, f.conn.Model(&generationdomain.Generation{}).Count(&count).Error)
	assert.Zero(t, count)

	assert.Len(t, f.transactions(t, accountID), 1) // initial grant only
	assert.Empty(t, f.provider.Calls())
}

func TestGenerateProviderFailureRefundsExactly(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.provider = mock.New(mock.WithName("openai"), mock.WithFailure("model overloaded"))
	})
	accountID := f.seedAccount(t, 100)
	f.seedModel(t, capabilitydomain.CapabilityText, routerdomain.TierBasic, "openai", 5)

	result, err := f.svc.Generate(context.Background(), generationdomain.GenerateRequest{
		AccountID: accountID,
		Kind:      "synopsis",
		Tier:      routerdomain.TierBasic,
		Prompt:    "a heist",
	})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Zero(t, result.CreditCost)
	assert.Equal(t, "model overloaded", result.Error)
	require.NotNil(t, result.GenerationID)

	balance, err := f.ledger.GetBalance(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	stored, err := f.svc.GetByID(context.Background(), *result.GenerationID)
	require.NoError(t, err)
	assert.Equal(t, generationdomain.StatusFailed, stored.Status)
	assert.Equal(t, "model overloaded", stored.ErrorMessage)
	// The row keeps the quoted cost for audit; the refund pair shows the
	// net-zero charge.
	assert.Equal(t, int64(5), stored.CreditCost)

	txns := f.transactions(t, accountID)
	require.Len(t, txns, 3) // grant, usage, refund
	refund := txns[2]
	assert.Equal(t, ledgerdomain.TransactionKindRefund, refund.Kind)
	assert.Equal(t, int64(5), refund.Amount)
	require.NotNil(t, refund.GenerationID)
	assert.Equal(t, *result.GenerationID, *refund.GenerationID)
}

func TestGenerateRefundFailureSurfacesInconsistency(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.provider = mock.New(mock.WithName("openai"), mock.WithFailure("model overloaded"))
		f.ledger = &failingRefundLedger{Service: f.ledger}
	})
	accountID := f.seedAccount(t, 100)
	f.seedModel(t, capabilitydomain.CapabilityText, routerdomain.TierBasic, "openai", 5)

	_, err := f.svc.Generate(context.Background(), generationdomain.GenerateRequest{
		AccountID: accountID,
		Kind:      "synopsis",
		Tier:      routerdomain.TierBasic,
		Prompt:    "a heist",
	})
	assert.ErrorIs(t, err, generationdomain.ErrLedgerInconsistency)

	// The debit stands: reconciliation is an operator concern.
	balance, err := f.ledger.GetBalance(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(95), balance)
}

func TestGenerateMediaPersistedDurably(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.storage.result = &storagedomain.PersistResult{URL: "https://store.example.com/abc", FileID: "abc"}
	})
	accountID := f.seedAccount(t, 100)
	f.seedModel(t, capabilitydomain.CapabilityImage, routerdomain.TierPro, "replicate", 10)

	result, err := f.svc.Generate(context.Background(), generationdomain.GenerateRequest{
		AccountID: accountID,
		Kind:      "moodboard_image",
		Tier:      routerdomain.TierPro,
		Prompt:    "neon-lit alley",
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "https://store.example.com/abc", result.ResultURL)

	stored, err := f.svc.GetByID(context.Background(), *result.GenerationID)
	require.NoError(t, err)
	assert.Equal(t, "https://store.example.com/abc", stored.ResultURL)
	assert.NotEmpty(t, stored.FallbackURL)
	require.Len(t, f.storage.calls, 1)
	assert.Equal(t, accountID, f.storage.calls[0].AccountID)
}

func TestGenerateProjectLabelNamesStorageFolder(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.storage.result = &storagedomain.PersistResult{URL: "https://store.example.com/abc", FileID: "abc"}
	})
	accountID := f.seedAccount(t, 100)
	f.seedModel(t, capabilitydomain.CapabilityImage, routerdomain.TierPro, "replicate", 10)

	projectID := snowflake.ID(9001)
	_, err := f.svc.Generate(context.Background(), generationdomain.GenerateRequest{
		AccountID:    accountID,
		ProjectID:    &projectID,
		ProjectLabel: "My First Film",
		Kind:         "moodboard_image",
		Tier:         routerdomain.TierPro,
		Prompt:       "neon-lit alley",
	})
	require.NoError(t, err)

	require.Len(t, f.storage.calls, 1)
	assert.Equal(t, "My First Film", f.storage.calls[0].ProjectLabel)

	// Without a label the project id still yields a stable folder name.
	_, err = f.svc.Generate(context.Background(), generationdomain.GenerateRequest{
		AccountID: accountID,
		ProjectID: &projectID,
		Kind:      "moodboard_image",
		Tier:      routerdomain.TierPro,
		Prompt:    "neon-lit alley",
	})
	require.NoError(t, err)

	require.Len(t, f.storage.calls, 2)
	assert.Equal(t, "project-9001", f.storage.calls[1].ProjectLabel)
}

func TestGenerateMediaFallsBackToTransientURL(t *testing.T) {
	f := newFixture(t) // storage stub returns nil, nil
	accountID := f.seedAccount(t, 100)
	f.seedModel(t, capabilitydomain.CapabilityImage, routerdomain.TierPro, "replicate", 10)

	result, err := f.svc.Generate(context.Background(), generationdomain.GenerateRequest{
		AccountID: accountID,
		Kind:      "character_image",
		Tier:      routerdomain.TierPro,
		Prompt:    "a weathered sea captain",
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.NotEmpty(t, result.ResultURL)

	stored, err := f.svc.GetByID(context.Background(), *result.GenerationID)
	require.NoError(t, err)
	assert.Equal(t, generationdomain.StatusCompleted, stored.Status)
	assert.Empty(t, stored.FallbackURL)
}

func TestGenerateModelNotConfigured(t *testing.T) {
	f := newFixture(t)
	accountID := f.seedAccount(t, 100)

	_, err := f.svc.Generate(context.Background(), generationdomain.GenerateRequest{
		AccountID: accountID,
		Kind:      "storyboard_video",
		Tier:      routerdomain.TierTrial,
		Prompt:    "opening shot",
	})
	assert.ErrorIs(t, err, routerdomain.ErrModelNotConfigured)

	balance, err := f.ledger.GetBalance(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	var count int64
	require.NoError(t, f.conn.Model(&generationdomain.Generation{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGenerateUnknownKindFallsBackToFreeform(t *testing.T) {
	f := newFixture(t)
	accountID := f.seedAccount(t, 100)
	f.seedModel(t, capabilitydomain.CapabilityText, routerdomain.TierBasic, "openai", 1)

	result, err := f.svc.Generate(context.Background(), generationdomain.GenerateRequest{
		AccountID: accountID,
		Kind:      "interpretive_dance",
		Tier:      routerdomain.TierBasic,
		Prompt:    "do something",
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, generationdomain.KindFreeform, result.Kind)

	calls := f.provider.Calls()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].SystemPrompt)
}

func TestGenerateZeroCostTouchesNoFunds(t *testing.T) {
	f := newFixture(t)
	accountID := f.seedAccount(t, 100)
	f.seedModel(t, capabilitydomain.CapabilityText, routerdomain.TierEnterprise, "openai", 0)

	result, err := f.svc.Generate(context.Background(), generationdomain.GenerateRequest{
		AccountID: accountID,
		Kind:      "logline",
		Tier:      routerdomain.TierEnterprise,
		Prompt:    "a heist",
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Zero(t, result.CreditCost)
	assert.Len(t, f.transactions(t, accountID), 1) // initial grant only
}

func TestGenerateAppliesLatencyBudget(t *testing.T) {
	f := newFixture(t)
	accountID := f.seedAccount(t, 100)
	f.seedModel(t, capabilitydomain.CapabilityText, routerdomain.TierTrial, "openai", 1)

	_, err := f.svc.Generate(context.Background(), generationdomain.GenerateRequest{
		AccountID: accountID,
		Kind:      "synopsis",
		Tier:      routerdomain.TierTrial,
		Prompt:    "a heist",
	})
	require.NoError(t, err)

	slept := f.clock.Slept()
	require.Len(t, slept, 1)
	assert.Equal(t, 8*time.Second, slept[0]) // trial tier budget
}

func TestGenerateEnterpriseSkipsLatencyBudget(t *testing.T) {
	f := newFixture(t)
	accountID := f.seedAccount(t, 100)
	f.seedModel(t, capabilitydomain.CapabilityText, routerdomain.TierEnterprise, "openai", 1)

	_, err := f.svc.Generate(context.Background(), generationdomain.GenerateRequest{
		AccountID: accountID,
		Kind:      "synopsis",
		Tier:      routerdomain.TierEnterprise,
		Prompt:    "a heist",
	})
	require.NoError(t, err)
	assert.Empty(t, f.clock.Slept())
}

func TestGenerateLatencyBudgetAppliedOnFailure(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.provider = mock.New(mock.WithName("openai"), mock.WithFailure("boom"))
	})
	accountID := f.seedAccount(t, 100)
	f.seedModel(t, capabilitydomain.CapabilityText, routerdomain.TierTrial, "openai", 1)

	result, err := f.svc.Generate(context.Background(), generationdomain.GenerateRequest{
		AccountID: accountID,
		Kind:      "synopsis",
		Tier:      routerdomain.TierTrial,
		Prompt:    "a heist",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Len(t, f.clock.Slept(), 1)
}

func TestGenerateConcurrentRequestsNeverOverspend(t *testing.T) {
	f := newFixture(t)
	accountID := f.seedAccount(t, 10)
	f.seedModel(t, capabilitydomain.CapabilityText, routerdomain.TierEnterprise, "openai", 3)

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Generate(context.Background(), generationdomain.GenerateRequest{
				AccountID: accountID,
				Kind:      "logline",
				Tier:      routerdomain.TierEnterprise,
				Prompt:    "a heist",
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, rejections int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ledgerdomain.ErrInsufficientFunds):
			rejections++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 3, successes)
	assert.Equal(t, 7, rejections)

	balance, err := f.ledger.GetBalance(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), balance)

	var count int64
	require.NoError(t, f.conn.Model(&generationdomain.Generation{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestListGenerationsPaginates(t *testing.T) {
	f := newFixture(t)
	accountID := f.seedAccount(t, 1000)
	f.seedModel(t, capabilitydomain.CapabilityText, routerdomain.TierEnterprise, "openai", 1)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.svc.Generate(ctx, generationdomain.GenerateRequest{
			AccountID: accountID,
			Kind:      "logline",
			Tier:      routerdomain.TierEnterprise,
			Prompt:    "a heist",
		})
		require.NoError(t, err)
	}

	first, err := f.svc.List(ctx, generationdomain.ListRequest{AccountID: accountID})
	require.NoError(t, err)
	assert.Len(t, first.Generations, 5)
	assert.False(t, first.HasMore)

	req := generationdomain.ListRequest{AccountID: accountID}
	req.PageSize = 2
	paged, err := f.svc.List(ctx, req)
	require.NoError(t, err)
	assert.Len(t, paged.Generations, 2)
	assert.True(t, paged.HasMore)
	require.NotEmpty(t, paged.NextPageToken)

	req.PageToken = paged.NextPageToken
	next, err := f.svc.List(ctx, req)
	require.NoError(t, err)
	assert.Len(t, next.Generations, 2)
	assert.True(t, next.Generations[0].ID < paged.Generations[1].ID)
}
