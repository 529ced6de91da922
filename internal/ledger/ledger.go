// Package ledger implements the append-only, strictly-ordered per-session
// turn log. Turn numbers are 1-based and gapless; assignment happens under
// the session's lock so no two callers can ever receive the same number.
package ledger

import (
	"sync"
	"time"

	"caremind/internal/logging"
	"caremind/internal/types"
)

// Store is the injected associative store for session logs. Lookups and
// inserts are atomic; mutation of a fetched log is serialized by the log's
// own lock, never by the store.
type Store interface {
	Get(sessionID string) (*SessionLog, bool)
	Put(sessionID string, log *SessionLog)
	Delete(sessionID string)
}

// MemStore is the default in-process Store.
type MemStore struct {
	mu   sync.RWMutex
	logs map[string]*SessionLog
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{logs: make(map[string]*SessionLog)}
}

func (s *MemStore) Get(sessionID string) (*SessionLog, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.logs[sessionID]
	return l, ok
}

func (s *MemStore) Put(sessionID string, log *SessionLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[sessionID] = log
}

func (s *MemStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, sessionID)
}

// SessionLog is one session's turn sequence. The RWMutex serializes appends
// and completions; snapshot reads may proceed concurrently with writes of
// later turns.
type SessionLog struct {
	mu        sync.RWMutex
	sessionID string
	userID    string
	turns     []types.Turn
}

// Ledger owns every session's turn log.
type Ledger struct {
	store Store
}

// New creates a Ledger backed by the given store. A nil store gets the
// in-memory default.
func New(store Store) *Ledger {
	if store == nil {
		store = NewMemStore()
	}
	return &Ledger{store: store}
}

// Open registers a new session log. Opening an already-open session is a
// ConsistencyError: the ledger is the turn-number authority and must never
// be silently reset.
func (l *Ledger) Open(sessionID, userID string) error {
	if sessionID == "" {
		return &types.ValidationError{Field: "sessionID", Reason: "must not be empty"}
	}
	if _, exists := l.store.Get(sessionID); exists {
		return &types.ConsistencyError{Op: "ledger.open", Detail: "session log already exists: " + sessionID}
	}
	l.store.Put(sessionID, &SessionLog{sessionID: sessionID, userID: userID})
	logging.Ledger("opened log for session %s (user %s)", sessionID, userID)
	return nil
}

// Append assigns the next turn number and records the user side of the turn.
// The agent side is filled in later by Complete.
func (l *Ledger) Append(sessionID, userMessage, topicTag, emotionalState string) (types.Turn, error) {
	log, ok := l.store.Get(sessionID)
	if !ok {
		return types.Turn{}, types.NewNotFound("session", sessionID)
	}

	log.mu.Lock()
	defer log.mu.Unlock()

	turn := types.Turn{
		SessionID:      sessionID,
		Number:         len(log.turns) + 1,
		UserMessage:    userMessage,
		TopicTag:       topicTag,
		EmotionalState: emotionalState,
		Timestamp:      time.Now(),
	}
	log.turns = append(log.turns, turn)

	logging.LedgerDebug("session %s: appended turn %d", sessionID, turn.Number)
	return turn, nil
}

// Complete populates the write-once agent side of a turn. Completing a turn
// twice, or a turn that does not exist, is an error.
func (l *Ledger) Complete(sessionID string, turnNumber int, agentResponse string, quality *types.QualityMetadata, enrichment *types.ContextEnrichmentResult) error {
	log, ok := l.store.Get(sessionID)
	if !ok {
		return types.NewNotFound("session", sessionID)
	}

	log.mu.Lock()
	defer log.mu.Unlock()

	if turnNumber < 1 || turnNumber > len(log.turns) {
		return types.NewNotFound("turn", sessionID)
	}
	turn := &log.turns[turnNumber-1]
	if turn.Completed() {
		return &types.ConsistencyError{
			Op:     "ledger.complete",
			Detail: "turn is write-once and already completed",
		}
	}

	turn.AgentResponse = agentResponse
	turn.Quality = quality
	turn.Enrichment = enrichment

	logging.LedgerDebug("session %s: completed turn %d", sessionID, turnNumber)
	return nil
}

// Turns returns a copy of the session's turn sequence.
func (l *Ledger) Turns(sessionID string) ([]types.Turn, error) {
	log, ok := l.store.Get(sessionID)
	if !ok {
		return nil, types.NewNotFound("session", sessionID)
	}

	log.mu.RLock()
	defer log.mu.RUnlock()

	out := make([]types.Turn, len(log.turns))
	copy(out, log.turns)
	return out, nil
}

// History returns a snapshot of the session's full conversation history.
// Status is filled in by the caller, which owns lifecycle state.
func (l *Ledger) History(sessionID string) (types.ConversationHistory, error) {
	log, ok := l.store.Get(sessionID)
	if !ok {
		return types.ConversationHistory{}, types.NewNotFound("session", sessionID)
	}

	log.mu.RLock()
	defer log.mu.RUnlock()

	turns := make([]types.Turn, len(log.turns))
	copy(turns, log.turns)
	return types.ConversationHistory{
		SessionID:  sessionID,
		UserID:     log.userID,
		TotalTurns: len(turns),
		Turns:      turns,
	}, nil
}

// TurnCount returns how many turns the session has without copying them.
func (l *Ledger) TurnCount(sessionID string) (int, error) {
	log, ok := l.store.Get(sessionID)
	if !ok {
		return 0, types.NewNotFound("session", sessionID)
	}
	log.mu.RLock()
	defer log.mu.RUnlock()
	return len(log.turns), nil
}

// Remove drops a session's log, used by the archival sweep.
func (l *Ledger) Remove(sessionID string) {
	l.store.Delete(sessionID)
	logging.Ledger("removed log for session %s", sessionID)
}
