// Package openai adapts OpenAI-compatible APIs to the capability provider
// contract: chat completions for text, the images endpoint for image.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	capabilitydomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/domain"
)

const providerName = "openai"

type Provider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type Option func(*Provider)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// New creates the adapter with the platform's shared credential. Per-request
// credentials (bring-your-own-key) override it.
func New(baseURL, apiKey string, opts ...Option) *Provider {
	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) Supports(capability capabilitydomain.CapabilityType) bool {
	return capability == capabilitydomain.CapabilityText ||
		capability == capabilitydomain.CapabilityImage
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	Temperature *float64     `json:"temperature,omitempty"`
	MaxTokens   *int         `json:"max_tokens,omitempty"`
}

type apiResponse struct {
	Choices []struct {
		Message apiMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *Provider) Invoke(ctx context.Context, req capabilitydomain.ProviderRequest) (*capabilitydomain.InvokeResult, error) {
	baseURL := p.baseURL
	apiKey := p.apiKey
	if req.Credential.APIKey != "" {
		apiKey = req.Credential.APIKey
	}
	if req.Credential.BaseURL != "" {
		baseURL = strings.TrimRight(req.Credential.BaseURL, "/")
	}

	if req.Capability == capabilitydomain.CapabilityImage {
		return p.generateImage(ctx, baseURL, apiKey, req)
	}

	messages := []apiMessage{}
	if req.SystemPrompt != "" {
		messages = append(messages, apiMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, apiMessage{Role: "user", Content: req.Prompt})

	body := apiRequest{
		Model:       req.ModelID,
		Messages:    messages,
		Temperature: floatParam(req.Params, "temperature"),
		MaxTokens:   intParam(req.Params, "max_tokens"),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		// Provider unreachability is an ordinary failure, not a fault.
		return failure(fmt.Sprintf("openai request failed: %v", err)), nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return failure(fmt.Sprintf("openai response read failed: %v", err)), nil
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return failure(fmt.Sprintf("openai response parse failed: status %d", resp.StatusCode)), nil
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("openai returned status %d", resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return failure(msg), nil
	}
	if len(parsed.Choices) == 0 {
		return failure("openai returned no choices"), nil
	}

	return &capabilitydomain.InvokeResult{
		Success:      true,
		Output:       parsed.Choices[0].Message.Content,
		ProviderName: providerName,
	}, nil
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size,omitempty"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) generateImage(ctx context.Context, baseURL, apiKey string, req capabilitydomain.ProviderRequest) (*capabilitydomain.InvokeResult, error) {
	body := imageRequest{
		Model:  req.ModelID,
		Prompt: req.Prompt,
		N:      1,
		Size:   stringParam(req.Params, "size"),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal image request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/images/generations", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return failure(fmt.Sprintf("openai request failed: %v", err)), nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return failure(fmt.Sprintf("openai response read failed: %v", err)), nil
	}

	var parsed imageResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return failure(fmt.Sprintf("openai response parse failed: status %d", resp.StatusCode)), nil
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("openai returned status %d", resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return failure(msg), nil
	}
	if len(parsed.Data) == 0 || parsed.Data[0].URL == "" {
		return failure("openai returned no image"), nil
	}

	return &capabilitydomain.InvokeResult{
		Success:      true,
		OutputURL:    parsed.Data[0].URL,
		ProviderName: providerName,
	}, nil
}

func failure(msg string) *capabilitydomain.InvokeResult {
	return &capabilitydomain.InvokeResult{
		Success:      false,
		ProviderName: providerName,
		ErrMessage:   msg,
	}
}

func floatParam(params map[string]any, key string) *float64 {
	if params == nil {
		return nil
	}
	switch v := params[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	default:
		return nil
	}
}

func stringParam(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func intParam(params map[string]any, key string) *int {
	if params == nil {
		return nil
	}
	switch v := params[key].(type) {
	case int:
		return &v
	case float64:
		i := int(v)
		return &i
	default:
		return nil
	}
}

var _ capabilitydomain.Provider = (*Provider)(nil)
