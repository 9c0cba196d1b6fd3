// Package domain defines the uniform call surface over heterogeneous AI
// capabilities. Provider selection happens upstream in the model router; the
// invoker only dispatches to the already-chosen vendor adapter.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// CapabilityType is the modality of a generation.
type CapabilityType string

const (
	CapabilityText  CapabilityType = "text"
	CapabilityImage CapabilityType = "image"
	CapabilityVideo CapabilityType = "video"
	CapabilityAudio CapabilityType = "audio"
)

func ParseCapabilityType(raw string) (CapabilityType, error) {
	switch CapabilityType(strings.ToLower(strings.TrimSpace(raw))) {
	case CapabilityText:
		return CapabilityText, nil
	case CapabilityImage:
		return CapabilityImage, nil
	case CapabilityVideo:
		return CapabilityVideo, nil
	case CapabilityAudio:
		return CapabilityAudio, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCapability, raw)
	}
}

// IsMedia reports whether results arrive as a provider-hosted URL rather
// than inline text.
func (c CapabilityType) IsMedia() bool {
	return c == CapabilityImage || c == CapabilityVideo || c == CapabilityAudio
}

var (
	// ErrUnknownCapability and ErrProviderNotRegistered signal
	// programming/configuration faults. Ordinary provider failures never
	// surface as Go errors; they arrive as InvokeResult.Success == false.
	ErrUnknownCapability     = errors.New("unknown capability type")
	ErrProviderNotRegistered = errors.New("capability provider not registered")
)

// InvokeRequest is the normalized request for one capability call.
type InvokeRequest struct {
	Capability   CapabilityType
	Provider     string
	ModelID      string
	Prompt       string
	SystemPrompt string
	Tier         string
	AccountID    snowflake.ID
	Params       map[string]any
}

// InvokeResult is the normalized result envelope. Output carries inline text
// for text capability; OutputURL carries a transient provider-hosted media
// URL that is assumed to expire.
type InvokeResult struct {
	Success            bool
	Output             string
	OutputURL          string
	ProviderName       string
	CreditCostOverride *int64
	ErrMessage         string
}

// Credential is a resolved provider credential, either the account's own
// key (bring-your-own-key) or the platform's shared one.
type Credential struct {
	APIKey  string
	BaseURL string
}

// ProviderRequest is an InvokeRequest with the credential already resolved.
type ProviderRequest struct {
	InvokeRequest
	Credential Credential
}

// Provider is implemented once per vendor. Adding a vendor registers a new
// Provider; the orchestrator is never touched.
type Provider interface {
	Name() string
	Supports(capability CapabilityType) bool
	Invoke(ctx context.Context, req ProviderRequest) (*InvokeResult, error)
}

// Invoker dispatches a request to the resolved provider.
type Invoker interface {
	Invoke(ctx context.Context, req InvokeRequest) (*InvokeResult, error)
}

// CredentialSource resolves per-account provider credentials. A nil
// credential with nil error means the account has none stored.
type CredentialSource interface {
	CredentialFor(ctx context.Context, accountID snowflake.ID, provider string) (*Credential, error)
}
