package ai

import (
	"context"
	"fmt"

	perrors "github.com/pace-labs/pace-engine/internal/errors"
)

// DisabledClient stands in when no API key is configured. Every call fails
// with ErrUnavailable, so the generation pipeline degrades to static fallback
// copy without special-casing.
type DisabledClient struct{}

// NewDisabledClient returns a client that refuses every completion.
func NewDisabledClient() *DisabledClient { return &DisabledClient{} }

// Complete always fails.
func (DisabledClient) Complete(ctx context.Context, req Request) (*Response, error) {
	return nil, fmt.Errorf("text generation is not configured: %w", perrors.ErrUnavailable)
}

// ModelID identifies the disabled backend in logs.
func (DisabledClient) ModelID() string { return "disabled" }
