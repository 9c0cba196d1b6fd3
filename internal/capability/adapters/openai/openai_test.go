package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	capabilitydomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/domain"
)

func TestInvokeChatCompletion(t *testing.T) {
	var gotAuth string
	var gotBody apiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "a tense heist thriller"}},
			},
		})
	}))
	defer srv.Close()

	p := New(srv.URL, "sk-platform")
	result, err := p.Invoke(context.Background(), capabilitydomain.ProviderRequest{
		InvokeRequest: capabilitydomain.InvokeRequest{
			Capability:   capabilitydomain.CapabilityText,
			ModelID:      "gpt-4o-mini",
			Prompt:       "write a logline",
			SystemPrompt: "you are a screenwriter",
		},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "a tense heist thriller", result.Output)
	assert.Equal(t, "Bearer sk-platform", gotAuth)
	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, "system", gotBody.Messages[0].Role)
	assert.Equal(t, "gpt-4o-mini", gotBody.Model)
}

func TestInvokeCredentialOverridesPlatformKey(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	p := New("https://unreachable.example.invalid", "sk-platform")
	result, err := p.Invoke(context.Background(), capabilitydomain.ProviderRequest{
		InvokeRequest: capabilitydomain.InvokeRequest{
			Capability: capabilitydomain.CapabilityText,
			ModelID:    "gpt-4o-mini",
			Prompt:     "hi",
		},
		Credential: capabilitydomain.Credential{APIKey: "sk-own", BaseURL: srv.URL},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "Bearer sk-own", gotAuth)
}

func TestInvokeAPIErrorIsNotAFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limit exceeded", "type": "rate_limit_error"},
		})
	}))
	defer srv.Close()

	p := New(srv.URL, "sk-platform")
	result, err := p.Invoke(context.Background(), capabilitydomain.ProviderRequest{
		InvokeRequest: capabilitydomain.InvokeRequest{
			Capability: capabilitydomain.CapabilityText,
			ModelID:    "gpt-4o-mini",
			Prompt:     "hi",
		},
	})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "rate limit exceeded", result.ErrMessage)
}

func TestInvokeImageGeneration(t *testing.T) {
	var gotBody imageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/images/generations", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"url": "https://cdn.example.com/img/abc.png"},
			},
		})
	}))
	defer srv.Close()

	p := New(srv.URL, "sk-platform")
	result, err := p.Invoke(context.Background(), capabilitydomain.ProviderRequest{
		InvokeRequest: capabilitydomain.InvokeRequest{
			Capability: capabilitydomain.CapabilityImage,
			ModelID:    "dall-e-3",
			Prompt:     "a moody film noir alley",
			Params:     map[string]any{"size": "1024x1024"},
		},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "https://cdn.example.com/img/abc.png", result.OutputURL)
	assert.Empty(t, result.Output)
	assert.Equal(t, "dall-e-3", gotBody.Model)
	assert.Equal(t, 1, gotBody.N)
	assert.Equal(t, "1024x1024", gotBody.Size)
}

func TestSupports(t *testing.T) {
	p := New("https://api.openai.com/v1", "")
	assert.True(t, p.Supports(capabilitydomain.CapabilityText))
	assert.True(t, p.Supports(capabilitydomain.CapabilityImage))
	assert.False(t, p.Supports(capabilitydomain.CapabilityVideo))
}
