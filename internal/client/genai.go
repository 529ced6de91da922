// Package client provides implementations of types.ReasoningClient: a
// Google GenAI-backed client for real deployments and an in-memory mock for
// tests and offline demos.
package client

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"caremind/internal/config"
	"caremind/internal/logging"
	"caremind/internal/types"
)

// GenAIClient talks to the external reasoning service through the Google
// GenAI API. One conversation message per Send; the enrichment bundle is
// already folded into the message text by the composer.
type GenAIClient struct {
	client *genai.Client
	model  string

	mu        sync.RWMutex
	directory map[string]types.AgentIdentity
}

// NewGenAIClient creates a GenAI-backed reasoning client.
func NewGenAIClient(ctx context.Context, cfg config.ClientConfig) (*GenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required (set CAREMIND_API_KEY)")
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	c := &GenAIClient{
		client:    gc,
		model:     cfg.Model,
		directory: make(map[string]types.AgentIdentity),
	}
	c.RegisterAgent(types.AgentIdentity{
		ID:   cfg.AgentID,
		Name: "Care Companion",
		Role: "conversational reasoning agent",
	})
	return c, nil
}

// RegisterAgent adds an entry to the identity directory.
func (c *GenAIClient) RegisterAgent(identity types.AgentIdentity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.directory[identity.ID] = identity
}

// Send delivers one message and returns the reply text.
func (c *GenAIClient) Send(ctx context.Context, targetID, senderID, message string) (string, error) {
	logging.APIDebug("send to %s from %s (%d bytes)", targetID, senderID, len(message))

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(message), nil)
	if err != nil {
		return "", &types.UpstreamError{Op: "send", Attempts: 1, Err: err}
	}

	reply := result.Text()
	if reply == "" {
		return "", &types.UpstreamError{Op: "send", Attempts: 1, Err: fmt.Errorf("empty reply from model %s", c.model)}
	}

	logging.APIDebug("reply from %s (%d bytes)", targetID, len(reply))
	return reply, nil
}

// LookupAgent resolves an agent through the directory.
func (c *GenAIClient) LookupAgent(_ context.Context, agentID string) (types.AgentIdentity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	identity, ok := c.directory[agentID]
	if !ok {
		return types.AgentIdentity{}, types.NewNotFound("agent", agentID)
	}
	return identity, nil
}
