// Package session tracks each session's lifecycle status, phase, engagement,
// quality, and boundary flags. The transition table is closed: anything not
// listed in legalTransition is a ConsistencyError and leaves state unchanged.
package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"caremind/internal/config"
	"caremind/internal/logging"
	"caremind/internal/types"
)

// ContinuityRecorder receives a session summary when the session ends.
// Implemented by continuity.Store; declared here so session does not import
// it.
type ContinuityRecorder interface {
	Append(userID string, summary types.SessionSummary)
}

// StateMachine owns the live SessionState records and their lifecycle.
// The session map is thread-safe; per-session field mutation is serialized
// by a per-session lock. Callers must still serialize turn submission per
// session id (one update in flight per session).
type StateMachine struct {
	mu     sync.RWMutex
	live   map[string]*types.SessionState
	ended  map[string]*types.SessionState
	locks  map[string]*sync.Mutex
	audit  map[string][]types.SessionTransition
	cfg    config.SessionConfig
	client types.ReasoningClient // best-effort notices only; may be nil
	cont   ContinuityRecorder    // may be nil

	agentID  string
	senderID string
}

// New creates a StateMachine. client and recorder are optional: a nil client
// skips the best-effort resume/end notices, a nil recorder skips continuity.
func New(cfg config.SessionConfig, clientCfg config.ClientConfig, client types.ReasoningClient, recorder ContinuityRecorder) *StateMachine {
	return &StateMachine{
		live:     make(map[string]*types.SessionState),
		ended:    make(map[string]*types.SessionState),
		locks:    make(map[string]*sync.Mutex),
		audit:    make(map[string][]types.SessionTransition),
		cfg:      cfg,
		client:   client,
		cont:     recorder,
		agentID:  clientCfg.AgentID,
		senderID: clientCfg.SenderID,
	}
}

// legalTransition is the closed lifecycle table. Session creation is handled
// separately by Create (there is no from-state to validate).
func legalTransition(from, to types.SessionStatus) bool {
	switch from {
	case types.StatusInitializing:
		return to == types.StatusActive
	case types.StatusActive:
		return to == types.StatusPaused || to == types.StatusEnded
	case types.StatusPaused:
		return to == types.StatusActive
	case types.StatusEnded:
		return to == types.StatusArchived
	case types.StatusArchived:
		return false
	default:
		return false
	}
}

func (sm *StateMachine) lock(sessionID string) *sync.Mutex {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	l, ok := sm.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		sm.locks[sessionID] = l
	}
	return l
}

// Create registers a new session in INITIALIZING.
func (sm *StateMachine) Create(sessionID, userID string) (*types.SessionState, types.SessionTransition, error) {
	if sessionID == "" || userID == "" {
		return nil, types.SessionTransition{}, &types.ValidationError{Field: "sessionID/userID", Reason: "must not be empty"}
	}

	sm.mu.Lock()
	if _, exists := sm.live[sessionID]; exists {
		sm.mu.Unlock()
		return nil, types.SessionTransition{}, &types.ConsistencyError{Op: "create", Detail: "session already exists: " + sessionID}
	}
	// Ended sessions keep their id until the archival sweep; reusing it would
	// shadow the ENDED status.
	if _, exists := sm.ended[sessionID]; exists {
		sm.mu.Unlock()
		return nil, types.SessionTransition{}, &types.ConsistencyError{Op: "create", Detail: "session awaits archival: " + sessionID}
	}

	now := time.Now()
	state := &types.SessionState{
		SessionID:    sessionID,
		UserID:       userID,
		Status:       types.StatusInitializing,
		Phase:        types.PhaseInitialAssessment,
		Engagement:   types.EngagementLow,
		Flags:        make(map[string]bool),
		Topics:       make(map[string]bool),
		CreatedAt:    now,
		LastActivity: now,
		MemoryUsage:  types.MemoryUsageStats{BlockSizes: make(map[string]int)},
	}
	sm.live[sessionID] = state
	sm.mu.Unlock()

	tr := sm.record(sessionID, types.StatusInitializing, types.StatusInitializing,
		types.TransitionCreate, "session created", "caller", "")
	logging.Session("created session %s for user %s", sessionID, userID)
	return snapshot(state), tr, nil
}

// Activate completes initialization: INITIALIZING -> ACTIVE.
func (sm *StateMachine) Activate(sessionID, trigger string) (types.SessionTransition, error) {
	return sm.transition(sessionID, types.StatusActive, types.TransitionActivate, "init completed", trigger, "")
}

// Pause moves ACTIVE -> PAUSED, attaching a textual context snapshot to the
// transition record.
func (sm *StateMachine) Pause(sessionID, reason string) (types.SessionTransition, error) {
	l := sm.lock(sessionID)
	l.Lock()
	defer l.Unlock()

	state, err := sm.liveState(sessionID)
	if err != nil {
		return types.SessionTransition{}, err
	}
	if !legalTransition(state.Status, types.StatusPaused) {
		return types.SessionTransition{}, types.NewIllegalTransition(state.Status, types.StatusPaused)
	}

	snap := pauseSnapshot(state)
	state.Status = types.StatusPaused
	state.PausedAt = time.Now()

	tr := sm.record(sessionID, types.StatusActive, types.StatusPaused, types.TransitionPause, reason, "user", snap)
	logging.Session("paused session %s: %s", sessionID, reason)
	return tr, nil
}

// Resume moves PAUSED -> ACTIVE and sends a best-effort restoration notice
// to the reasoning service. Notice failure is logged, never fatal.
func (sm *StateMachine) Resume(ctx context.Context, sessionID string) (types.SessionTransition, error) {
	l := sm.lock(sessionID)
	l.Lock()
	defer l.Unlock()

	state, err := sm.liveState(sessionID)
	if err != nil {
		return types.SessionTransition{}, err
	}
	if !legalTransition(state.Status, types.StatusActive) {
		return types.SessionTransition{}, types.NewIllegalTransition(state.Status, types.StatusActive)
	}

	pausedFor := time.Since(state.PausedAt).Round(time.Second)
	state.Status = types.StatusActive
	state.PausedAt = time.Time{}
	state.LastActivity = time.Now()

	if sm.client != nil {
		notice := fmt.Sprintf("SESSION_RESUMED: %s | PAUSED_FOR: %s | PHASE: %s | TURNS: %d",
			sessionID, pausedFor, state.Phase, state.TotalTurns)
		if _, err := sm.client.Send(ctx, sm.agentID, sm.senderID, notice); err != nil {
			logging.SessionWarn("restoration notice for %s failed: %v", sessionID, err)
		}
	}

	tr := sm.record(sessionID, types.StatusPaused, types.StatusActive, types.TransitionResume, "user resume", "user", "")
	logging.Session("resumed session %s after %s", sessionID, pausedFor)
	return tr, nil
}

// End moves ACTIVE -> ENDED: computes the closure record, archives a textual
// summary externally (best-effort), appends to the continuity recorder, and
// removes the live state.
func (sm *StateMachine) End(ctx context.Context, sessionID, reason string) (types.SessionTransition, error) {
	l := sm.lock(sessionID)
	l.Lock()
	defer l.Unlock()

	state, err := sm.liveState(sessionID)
	if err != nil {
		return types.SessionTransition{}, err
	}
	if !legalTransition(state.Status, types.StatusEnded) {
		return types.SessionTransition{}, types.NewIllegalTransition(state.Status, types.StatusEnded)
	}

	state.Status = types.StatusEnded
	duration := time.Since(state.CreatedAt)
	resolved := state.TotalTurns >= 3 && state.Quality.OverallQuality > 0.7

	summary := types.SessionSummary{
		SessionID:          sessionID,
		EndedAt:            time.Now(),
		Duration:           duration,
		TotalTurns:         state.TotalTurns,
		Topics:             sortedTopics(state),
		ResolutionAchieved: resolved,
		Quality:            state.Quality.OverallQuality,
	}

	if sm.client != nil {
		if _, err := sm.client.Send(ctx, sm.agentID, sm.senderID, closureText(state, summary, reason)); err != nil {
			logging.SessionWarn("external archive of session %s failed: %v", sessionID, err)
		}
	}

	if sm.cont != nil {
		sm.cont.Append(state.UserID, summary)
	}

	sm.mu.Lock()
	delete(sm.live, sessionID)
	sm.ended[sessionID] = state
	sm.mu.Unlock()

	tr := sm.record(sessionID, types.StatusActive, types.StatusEnded, types.TransitionEnd, reason, "user", "")
	logging.Session("ended session %s after %d turns (resolved=%v quality=%.2f)",
		sessionID, state.TotalTurns, resolved, state.Quality.OverallQuality)
	return tr, nil
}

// Archive performs the ENDED -> ARCHIVED sweep transition for one session.
func (sm *StateMachine) Archive(sessionID string) (types.SessionTransition, error) {
	l := sm.lock(sessionID)
	l.Lock()
	defer l.Unlock()

	sm.mu.Lock()
	state, ok := sm.ended[sessionID]
	if !ok {
		sm.mu.Unlock()
		if live, stillLive := sm.live[sessionID]; stillLive {
			return types.SessionTransition{}, types.NewIllegalTransition(live.Status, types.StatusArchived)
		}
		return types.SessionTransition{}, types.NewNotFound("session", sessionID)
	}
	if !legalTransition(state.Status, types.StatusArchived) {
		sm.mu.Unlock()
		return types.SessionTransition{}, types.NewIllegalTransition(state.Status, types.StatusArchived)
	}
	state.Status = types.StatusArchived
	delete(sm.ended, sessionID)
	sm.mu.Unlock()

	tr := sm.record(sessionID, types.StatusEnded, types.StatusArchived, types.TransitionArchive, "archival sweep", "system", "")
	logging.Session("archived session %s", sessionID)
	return tr, nil
}

// Get returns a copy of a live session's state.
func (sm *StateMachine) Get(sessionID string) (*types.SessionState, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	state, ok := sm.live[sessionID]
	if !ok {
		return nil, types.NewNotFound("session", sessionID)
	}
	return snapshot(state), nil
}

// Status returns the session's lifecycle status, including ended sessions
// awaiting archival.
func (sm *StateMachine) Status(sessionID string) (types.SessionStatus, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if state, ok := sm.live[sessionID]; ok {
		return state.Status, nil
	}
	if state, ok := sm.ended[sessionID]; ok {
		return state.Status, nil
	}
	return 0, types.NewNotFound("session", sessionID)
}

// Transitions returns the session's append-only audit trail.
func (sm *StateMachine) Transitions(sessionID string) []types.SessionTransition {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make([]types.SessionTransition, len(sm.audit[sessionID]))
	copy(out, sm.audit[sessionID])
	return out
}

func (sm *StateMachine) liveState(sessionID string) (*types.SessionState, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	state, ok := sm.live[sessionID]
	if !ok {
		return nil, types.NewNotFound("session", sessionID)
	}
	return state, nil
}

// transition is the generic path for transitions that need no extra work.
func (sm *StateMachine) transition(sessionID string, to types.SessionStatus, tt types.TransitionType, reason, trigger, snap string) (types.SessionTransition, error) {
	l := sm.lock(sessionID)
	l.Lock()
	defer l.Unlock()

	state, err := sm.liveState(sessionID)
	if err != nil {
		return types.SessionTransition{}, err
	}
	from := state.Status
	if !legalTransition(from, to) {
		return types.SessionTransition{}, types.NewIllegalTransition(from, to)
	}
	state.Status = to
	state.LastActivity = time.Now()

	tr := sm.record(sessionID, from, to, tt, reason, trigger, snap)
	logging.Session("session %s: %s -> %s (%s)", sessionID, from, to, reason)
	return tr, nil
}

func (sm *StateMachine) record(sessionID string, from, to types.SessionStatus, tt types.TransitionType, reason, trigger, snap string) types.SessionTransition {
	tr := types.SessionTransition{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		FromStatus:    from,
		ToStatus:      to,
		Timestamp:     time.Now(),
		Type:          tt,
		Reason:        reason,
		TriggerSource: trigger,
		Snapshot:      snap,
		Success:       true,
	}
	sm.mu.Lock()
	sm.audit[sessionID] = append(sm.audit[sessionID], tr)
	sm.mu.Unlock()
	return tr
}

func pauseSnapshot(state *types.SessionState) string {
	return fmt.Sprintf("TOPIC: %s | PHASE: %s | DURATION: %s | TURNS: %d | LAST_AGENT: %s",
		orNone(state.LastTopic), state.Phase,
		time.Since(state.CreatedAt).Round(time.Second),
		state.TotalTurns, orNone(state.LastAgent))
}

func closureText(state *types.SessionState, summary types.SessionSummary, reason string) string {
	return fmt.Sprintf("SESSION_CLOSED: %s | REASON: %s | TURNS: %d | DURATION: %s | TOPICS: %s | RESOLVED: %v | QUALITY: %.2f",
		state.SessionID, reason, summary.TotalTurns, summary.Duration.Round(time.Second),
		orNone(strings.Join(summary.Topics, ", ")), summary.ResolutionAchieved, summary.Quality)
}

func sortedTopics(state *types.SessionState) []string {
	topics := make([]string, 0, len(state.Topics))
	for t := range state.Topics {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// snapshot deep-copies the mutable parts of a SessionState so callers can't
// reach back into live state.
func snapshot(state *types.SessionState) *types.SessionState {
	cp := *state
	cp.Flags = make(map[string]bool, len(state.Flags))
	for k, v := range state.Flags {
		cp.Flags[k] = v
	}
	cp.Topics = make(map[string]bool, len(state.Topics))
	for k, v := range state.Topics {
		cp.Topics[k] = v
	}
	cp.MemoryUsage.BlockSizes = make(map[string]int, len(state.MemoryUsage.BlockSizes))
	for k, v := range state.MemoryUsage.BlockSizes {
		cp.MemoryUsage.BlockSizes[k] = v
	}
	cp.Interactions = make([]types.AgentInteraction, len(state.Interactions))
	copy(cp.Interactions, state.Interactions)
	return &cp
}
