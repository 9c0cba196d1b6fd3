package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/adapters/mock"
	capabilitydomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/domain"
)

func newTestService(t *testing.T, providers ...capabilitydomain.Provider) (capabilitydomain.Invoker, *gorm.DB) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&capabilitydomain.ProviderCredential{}))

	svc, err := NewService(Params{
		Log:         zap.NewNop(),
		Providers:   providers,
		Credentials: NewCredentialStore(conn),
	})
	require.NoError(t, err)
	return svc, conn
}

func TestInvokeRoutesToNamedProvider(t *testing.T) {
	text := mock.New(mock.WithName("openai"))
	media := mock.New(mock.WithName("replicate"))
	svc, _ := newTestService(t, text, media)

	result, err := svc.Invoke(context.Background(), capabilitydomain.InvokeRequest{
		Capability: capabilitydomain.CapabilityText,
		Provider:   "openai",
		ModelID:    "gpt-4o-mini",
		Prompt:     "write a logline",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "openai", result.ProviderName)
	assert.NotEmpty(t, result.Output)
	assert.Len(t, text.Calls(), 1)
	assert.Empty(t, media.Calls())
}

func TestInvokeUnknownProvider(t *testing.T) {
	svc, _ := newTestService(t, mock.New(mock.WithName("openai")))

	_, err := svc.Invoke(context.Background(), capabilitydomain.InvokeRequest{
		Capability: capabilitydomain.CapabilityText,
		Provider:   "midjourney",
		ModelID:    "v6",
		Prompt:     "a castle",
	})
	assert.ErrorIs(t, err, capabilitydomain.ErrProviderNotRegistered)
}

func TestInvokeInvalidCapability(t *testing.T) {
	svc, _ := newTestService(t, mock.New(mock.WithName("openai")))

	_, err := svc.Invoke(context.Background(), capabilitydomain.InvokeRequest{
		Capability: capabilitydomain.CapabilityType("hologram"),
		Provider:   "openai",
		ModelID:    "gpt-4o-mini",
	})
	assert.ErrorIs(t, err, capabilitydomain.ErrUnknownCapability)
}

func TestInvokeUsesStoredCredential(t *testing.T) {
	provider := mock.New(mock.WithName("openai"))
	svc, conn := newTestService(t, provider)

	accountID := snowflake.ID(42)
	require.NoError(t, conn.Create(&capabilitydomain.ProviderCredential{
		ID:        snowflake.ID(1),
		AccountID: accountID,
		Provider:  "openai",
		APIKey:    "sk-own-key",
		BaseURL:   "https://proxy.example.com/v1",
	}).Error)

	_, err := svc.Invoke(context.Background(), capabilitydomain.InvokeRequest{
		Capability: capabilitydomain.CapabilityText,
		Provider:   "openai",
		ModelID:    "gpt-4o-mini",
		Prompt:     "hello",
		AccountID:  accountID,
	})
	require.NoError(t, err)

	calls := provider.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sk-own-key", calls[0].Credential.APIKey)
	assert.Equal(t, "https://proxy.example.com/v1", calls[0].Credential.BaseURL)
}

func TestInvokeWithoutStoredCredentialFallsThrough(t *testing.T) {
	provider := mock.New(mock.WithName("openai"))
	svc, _ := newTestService(t, provider)

	_, err := svc.Invoke(context.Background(), capabilitydomain.InvokeRequest{
		Capability: capabilitydomain.CapabilityText,
		Provider:   "openai",
		ModelID:    "gpt-4o-mini",
		Prompt:     "hello",
		AccountID:  snowflake.ID(99),
	})
	require.NoError(t, err)

	calls := provider.Calls()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].Credential.APIKey)
}

func TestNewServiceRejectsDuplicateProviderNames(t *testing.T) {
	_, err := NewService(Params{
		Log: zap.NewNop(),
		Providers: []capabilitydomain.Provider{
			mock.New(mock.WithName("openai")),
			mock.New(mock.WithName("OpenAI")),
		},
	})
	assert.Error(t, err)
}
