// Package replicate adapts the Replicate prediction API for media
// capabilities. Outputs are transient URLs that expire; durable storage
// happens downstream.
package replicate

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

const providerName = "replicate"

type Provider struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	pollInterval time.Duration
	maxPolls     int
}

type Option func(*Provider)

func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// WithPolling tunes how the adapter waits for a prediction to settle.
func WithPolling(interval time.Duration, maxPolls int) Option {
	return func(p *Provider) {
		p.pollInterval = interval
		p.maxPolls = maxPolls
	}
}

func New(baseURL, apiKey string, opts ...Option) *Provider {
	p := &Provider{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: 120 * time.Second},
		pollInterval: 2 * time.Second,
		maxPolls:     150,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) Supports(capability capabilitydomain.CapabilityType) bool {
	switch capability {
	case capabilitydomain.CapabilityImage, capabilitydomain.CapabilityVideo, capabilitydomain.CapabilityAudio:
		return true
	default:
		return false
	}
}

type predictionRequest struct {
	Version string         `json:"version,omitempty"`
	Input   map[string]any `json:"input"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
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

	input := map[string]any{"prompt": req.Prompt}
	for k, v := range req.Params {
		input[k] = v
	}

	body := predictionRequest{Input: input}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal prediction request: %w", err)
	}

	// Model-scoped endpoint: POST /models/{owner/name}/predictions.
	endpoint := fmt.Sprintf("%s/models/%s/predictions", baseURL, req.ModelID)
	pred, failMsg, err := p.createPrediction(ctx, endpoint, apiKey, payload)
	if err != nil {
		return nil, err
	}
	if failMsg != "" {
		return failure(failMsg), nil
	}

	pred, failMsg, err = p.awaitPrediction(ctx, baseURL, apiKey, pred)
	if err != nil {
		return nil, err
	}
	if failMsg != "" {
		return failure(failMsg), nil
	}

	url := firstOutputURL(pred.Output)
	if url == "" {
		return failure("replicate prediction succeeded without output"), nil
	}

	return &capabilitydomain.InvokeResult{
		Success:      true,
		OutputURL:    url,
		ProviderName: providerName,
	}, nil
}

func (p *Provider) createPrediction(ctx context.Context, endpoint, apiKey string, payload []byte) (*prediction, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, "", fmt.Errorf("build prediction request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	// Prefer sync responses; the API falls back to polling when the model
	// takes longer than the hold window.
	httpReq.Header.Set("Prefer", "wait=60")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Sprintf("replicate request failed: %v", err), nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Sprintf("replicate response read failed: %v", err), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Sprintf("replicate returned status %d", resp.StatusCode), nil
	}

	var pred prediction
	if err := json.Unmarshal(raw, &pred); err != nil {
		return nil, "replicate response parse failed", nil
	}
	return &pred, "", nil
}

func (p *Provider) awaitPrediction(ctx context.Context, baseURL, apiKey string, pred *prediction) (*prediction, string, error) {
	for i := 0; i < p.maxPolls; i++ {
		switch pred.Status {
		case "succeeded":
			return pred, "", nil
		case "failed", "canceled":
			msg := pred.Error
			if msg == "" {
				msg = "replicate prediction " + pred.Status
			}
			return nil, msg, nil
		}

		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-time.After(p.pollInterval):
		}

		getURL := pred.URLs.Get
		if getURL == "" {
			getURL = fmt.Sprintf("%s/predictions/%s", baseURL, pred.ID)
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, getURL, nil)
		if err != nil {
			return nil, "", fmt.Errorf("build poll request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Sprintf("replicate poll failed: %v", err), nil
		}
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Sprintf("replicate poll read failed: %v", err), nil
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Sprintf("replicate poll returned status %d", resp.StatusCode), nil
		}

		var next prediction
		if err := json.Unmarshal(raw, &next); err != nil {
			return nil, "replicate poll parse failed", nil
		}
		pred = &next
	}
	return nil, "replicate prediction did not settle in time", nil
}

// firstOutputURL handles the two shapes the API returns: a single URL
// string or a list of URLs.
func firstOutputURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}

func failure(msg string) *capabilitydomain.InvokeResult {
	return &capabilitydomain.InvokeResult{
		Success:      false,
		ProviderName: providerName,
		ErrMessage:   msg,
	}
}

var _ capabilitydomain.Provider = (*Provider)(nil)
