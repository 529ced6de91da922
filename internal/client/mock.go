package client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"caremind/internal/types"
)

// MockClient is an offline types.ReasoningClient. Replies are scripted when
// a script is set; otherwise it echoes a canned acknowledgement. Every call
// is recorded so tests can assert on traffic.
type MockClient struct {
	mu        sync.Mutex
	replies   []string
	next      int
	failures  int // fail this many Sends before succeeding
	sent      []SentMessage
	directory map[string]types.AgentIdentity
}

// SentMessage records one Send call.
type SentMessage struct {
	TargetID string
	SenderID string
	Message  string
}

// NewMockClient creates the mock with an empty directory.
func NewMockClient() *MockClient {
	return &MockClient{directory: make(map[string]types.AgentIdentity)}
}

// Script sets the reply sequence. After the script is exhausted, the canned
// acknowledgement is used again.
func (m *MockClient) Script(replies ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = replies
	m.next = 0
}

// FailNext makes the next n Send calls fail with an UpstreamError.
func (m *MockClient) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = n
}

// Sent returns a copy of all recorded Send calls.
func (m *MockClient) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// RegisterAgent adds an entry to the identity directory.
func (m *MockClient) RegisterAgent(identity types.AgentIdentity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.directory[identity.ID] = identity
}

// Send returns the next scripted reply or a canned acknowledgement.
func (m *MockClient) Send(_ context.Context, targetID, senderID, message string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, SentMessage{TargetID: targetID, SenderID: senderID, Message: message})

	if m.failures > 0 {
		m.failures--
		return "", &types.UpstreamError{Op: "send", Attempts: 1, Err: fmt.Errorf("mock upstream failure")}
	}

	if m.next < len(m.replies) {
		reply := m.replies[m.next]
		m.next++
		return reply, nil
	}

	// Echo enough of the message that overlap-based scoring has something
	// to chew on in tests.
	first := message
	if idx := strings.Index(message, "\n"); idx > 0 {
		first = message[:idx]
	}
	return "I hear you. Let's look at that together: " + strings.TrimPrefix(first, "CURRENT MESSAGE: "), nil
}

// LookupAgent resolves an agent through the directory.
func (m *MockClient) LookupAgent(_ context.Context, agentID string) (types.AgentIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.directory[agentID]
	if !ok {
		return types.AgentIdentity{}, types.NewNotFound("agent", agentID)
	}
	return identity, nil
}
