package types

import "context"

// ReasoningClient is the minimal interface the engine uses to talk to the
// external conversational-reasoning service. Mirrored here (rather than in
// internal/client) to avoid import cycles between engine, session, and
// memsync, which all need to send best-effort notices.
type ReasoningClient interface {
	// Send delivers a message to an agent and returns its reply text.
	Send(ctx context.Context, targetID, senderID, message string) (string, error)

	// LookupAgent resolves an agent ID through the identity directory.
	LookupAgent(ctx context.Context, agentID string) (AgentIdentity, error)
}

// AgentIdentity is one entry in the reasoning service's agent directory.
type AgentIdentity struct {
	ID   string
	Name string
	Role string
}

// ResponseAnalyzer scores one completed exchange. Implementations must be
// pure: no network, no shared mutable state.
type ResponseAnalyzer interface {
	Analyze(agentResponse, userMessage, enrichedContext string) QualityMetadata
}
