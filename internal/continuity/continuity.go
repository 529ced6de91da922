// Package continuity keeps the per-user ledger of past session summaries.
// Entries are appended only when a session ends; new sessions consult the
// record to carry context across sessions.
package continuity

import (
	"fmt"
	"strings"
	"sync"

	"caremind/internal/logging"
	"caremind/internal/types"
)

// Store holds continuity records for all users. Process-resident; a real
// deployment would back this with durable storage.
type Store struct {
	mu      sync.RWMutex
	records map[string]*types.ContinuityRecord
}

// NewStore creates an empty continuity store.
func NewStore() *Store {
	return &Store{records: make(map[string]*types.ContinuityRecord)}
}

// Append adds one ended session's summary to the user's record and refreshes
// the aggregates.
func (s *Store) Append(userID string, summary types.SessionSummary) {
	if userID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		rec = &types.ContinuityRecord{UserID: userID}
		s.records[userID] = rec
	}
	rec.Sessions = append(rec.Sessions, summary)
	rec.SessionCount = len(rec.Sessions)

	var sum float64
	for _, sess := range rec.Sessions {
		sum += sess.Quality
	}
	rec.AverageQuality = sum / float64(rec.SessionCount)

	logging.Continuity("user %s: recorded session %s (%d sessions, avg quality %.2f)",
		userID, summary.SessionID, rec.SessionCount, rec.AverageQuality)
}

// Get returns a copy of the user's continuity record.
func (s *Store) Get(userID string) (types.ContinuityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return types.ContinuityRecord{}, types.NewNotFound("user", userID)
	}

	cp := *rec
	cp.Sessions = make([]types.SessionSummary, len(rec.Sessions))
	copy(cp.Sessions, rec.Sessions)
	return cp, nil
}

// Greeting renders a short textual carry-over for the start of a new
// session. Empty when the user has no history.
func (s *Store) Greeting(userID string) string {
	rec, err := s.Get(userID)
	if err != nil || rec.SessionCount == 0 {
		return ""
	}

	last := rec.Sessions[len(rec.Sessions)-1]
	var sb strings.Builder
	fmt.Fprintf(&sb, "PRIOR_SESSIONS: %d | AVG_QUALITY: %.2f", rec.SessionCount, rec.AverageQuality)
	if len(last.Topics) > 0 {
		fmt.Fprintf(&sb, " | LAST_TOPICS: %s", strings.Join(last.Topics, ", "))
	}
	fmt.Fprintf(&sb, " | LAST_RESOLVED: %v", last.ResolutionAchieved)
	return sb.String()
}
