// Package engine wires the memory subsystems into the session facade:
// ledger append, relevance ranking, the reasoning-service round trip,
// quality analysis, lifecycle update, and memory synchronization, in that
// order for every turn.
package engine

import (
	"context"
	"sync"

	"caremind/internal/config"
	"caremind/internal/continuity"
	"caremind/internal/ledger"
	"caremind/internal/logging"
	"caremind/internal/memsync"
	"caremind/internal/ranking"
	"caremind/internal/session"
	"caremind/internal/types"
)

// TurnResult is what a caller gets back from one submitted turn.
type TurnResult struct {
	Reply             string
	Confidence        float64 // analyzer's confidence in the reply
	RelevantTurnCount int
	ContextConfidence float64 // ranker's confidence in its selection
}

// Engine is the conversation-memory synchronization and session-lifecycle
// facade. All exported methods are safe for concurrent use across sessions;
// turn submission and lifecycle transitions are serialized per session by an
// in-flight latch, so a pause or end can never land in the middle of a turn
// and strand a ledgered turn outside the session state.
type Engine struct {
	cfg *config.Config

	ledger      *ledger.Ledger
	states      *session.StateMachine
	ranker      *ranking.Ranker
	coordinator *memsync.Coordinator
	analyzer    types.ResponseAnalyzer
	client      types.ReasoningClient
	continuity  *continuity.Store
	blocks      *memsync.MemoryBlockStore

	inFlightMu sync.Mutex
	inFlight   map[string]bool
}

// New assembles an engine from its parts. The block store is kept so the
// CLI and tests can inspect what was synchronized.
func New(cfg *config.Config, rc types.ReasoningClient, ra types.ResponseAnalyzer) *Engine {
	blocks := memsync.NewMemoryBlockStore()
	cont := continuity.NewStore()
	return &Engine{
		cfg:         cfg,
		ledger:      ledger.New(nil),
		states:      session.New(cfg.Session, cfg.Client, rc, cont),
		ranker:      ranking.NewRanker(cfg.Ranking),
		coordinator: memsync.NewCoordinator(cfg.Sync, blocks),
		analyzer:    ra,
		client:      rc,
		continuity:  cont,
		blocks:      blocks,
		inFlight:    make(map[string]bool),
	}
}

// Blocks exposes the memory block store for inspection.
func (e *Engine) Blocks() *memsync.MemoryBlockStore { return e.blocks }

// StartSession creates and activates a session, consulting the user's
// continuity record. The continuity carry-over is delivered to the reasoning
// service best-effort; failure never blocks the start.
func (e *Engine) StartSession(ctx context.Context, userID, sessionID string) (*types.SessionState, error) {
	if _, _, err := e.states.Create(sessionID, userID); err != nil {
		return nil, err
	}
	if err := e.ledger.Open(sessionID, userID); err != nil {
		return nil, err
	}
	if _, err := e.states.Activate(sessionID, "startSession"); err != nil {
		return nil, err
	}

	if greeting := e.continuity.Greeting(userID); greeting != "" {
		notice := "SESSION_CONTINUITY: " + sessionID + " | " + greeting
		if _, err := e.client.Send(ctx, e.cfg.Client.AgentID, e.cfg.Client.SenderID, notice); err != nil {
			logging.SessionWarn("continuity notice for %s failed: %v", sessionID, err)
		}
	}

	return e.states.Get(sessionID)
}

// SubmitTurn runs the full per-turn pipeline. An upstream reasoning failure
// substitutes the fallback reply; a memory-sync failure degrades silently.
// Neither blocks the user-visible reply.
func (e *Engine) SubmitTurn(ctx context.Context, sessionID, userMessage string) (TurnResult, error) {
	if userMessage == "" {
		return TurnResult{}, &types.ValidationError{Field: "userMessage", Reason: "must not be empty"}
	}

	if err := e.acquire(sessionID, "submitTurn"); err != nil {
		return TurnResult{}, err
	}
	defer e.release(sessionID)

	status, err := e.states.Status(sessionID)
	if err != nil {
		return TurnResult{}, err
	}
	if status != types.StatusActive {
		return TurnResult{}, &types.ConsistencyError{Op: "submitTurn", Detail: "session is " + status.String() + ", not ACTIVE"}
	}

	turn, err := e.ledger.Append(sessionID, userMessage,
		ranking.DetectTopic(userMessage), ranking.DetectEmotion(userMessage))
	if err != nil {
		return TurnResult{}, err
	}

	history, err := e.ledger.Turns(sessionID)
	if err != nil {
		return TurnResult{}, err
	}
	enrichment := e.ranker.Enrich(history, userMessage, turn.Number)

	reply, sendErr := e.client.Send(ctx, e.cfg.Client.AgentID, e.cfg.Client.SenderID, enrichment.ComposedText)
	if sendErr != nil {
		logging.APIWarn("session %s turn %d: upstream send failed, substituting fallback: %v",
			sessionID, turn.Number, sendErr)
		reply = e.cfg.Client.FallbackReply
	}

	quality := e.analyzer.Analyze(reply, userMessage, enrichment.ComposedText)

	if err := e.ledger.Complete(sessionID, turn.Number, reply, &quality, &enrichment); err != nil {
		return TurnResult{}, err
	}

	turn.AgentResponse = reply
	turn.Quality = &quality
	turn.Enrichment = &enrichment

	if err := e.states.RecordTurn(sessionID, turn, e.cfg.Client.AgentID); err != nil {
		return TurnResult{}, err
	}

	e.synchronize(ctx, sessionID, turn)

	return TurnResult{
		Reply:             reply,
		Confidence:        quality.Confidence,
		RelevantTurnCount: len(enrichment.SelectedTurnNumbers),
		ContextConfidence: enrichment.Confidence,
	}, nil
}

// synchronize runs the memory sync coordinator and folds the outcome into
// the session's usage stats. Failures are recorded, never surfaced.
func (e *Engine) synchronize(ctx context.Context, sessionID string, turn types.Turn) {
	state, err := e.states.Get(sessionID)
	if err != nil {
		return
	}
	history, err := e.ledger.Turns(sessionID)
	if err != nil {
		return
	}

	req := memsync.Request{
		Turn:    turn,
		State:   state,
		History: history,
		AgentID: e.cfg.Client.AgentID,
	}
	result := e.coordinator.Sync(ctx, req)
	e.states.RecordSync(sessionID, result, e.coordinator.BlockSizes(req))

	if !result.Success {
		logging.SyncWarn("session %s turn %d: memory sync %s", sessionID, turn.Number, result.Status)
	}
}

// PauseSession pauses an ACTIVE session. Rejected while a turn is in flight:
// the turn would already be in the ledger, and a mid-turn pause would leave
// it unrecorded in the session state.
func (e *Engine) PauseSession(sessionID, reason string) (types.SessionTransition, error) {
	if err := e.acquire(sessionID, "pauseSession"); err != nil {
		return types.SessionTransition{}, err
	}
	defer e.release(sessionID)
	return e.states.Pause(sessionID, reason)
}

// ResumeSession resumes a PAUSED session.
func (e *Engine) ResumeSession(ctx context.Context, sessionID string) (types.SessionTransition, error) {
	if err := e.acquire(sessionID, "resumeSession"); err != nil {
		return types.SessionTransition{}, err
	}
	defer e.release(sessionID)
	return e.states.Resume(ctx, sessionID)
}

// EndSession ends an ACTIVE session and records continuity. Rejected while a
// turn is in flight, like PauseSession.
func (e *Engine) EndSession(ctx context.Context, sessionID, reason string) (types.SessionTransition, error) {
	if err := e.acquire(sessionID, "endSession"); err != nil {
		return types.SessionTransition{}, err
	}
	defer e.release(sessionID)
	return e.states.End(ctx, sessionID, reason)
}

// ArchiveSession performs the ENDED -> ARCHIVED sweep for one session and
// drops its turn log.
func (e *Engine) ArchiveSession(sessionID string) (types.SessionTransition, error) {
	tr, err := e.states.Archive(sessionID)
	if err != nil {
		return types.SessionTransition{}, err
	}
	e.ledger.Remove(sessionID)
	return tr, nil
}

// GetHistory returns the session's conversation history with lifecycle
// status filled in.
func (e *Engine) GetHistory(sessionID string) (types.ConversationHistory, error) {
	history, err := e.ledger.History(sessionID)
	if err != nil {
		return types.ConversationHistory{}, err
	}
	if status, err := e.states.Status(sessionID); err == nil {
		history.Status = status
	}
	return history, nil
}

// GetSessionState returns a copy of the live session state.
func (e *Engine) GetSessionState(sessionID string) (*types.SessionState, error) {
	return e.states.Get(sessionID)
}

// GetContinuity returns the user's continuity record.
func (e *Engine) GetContinuity(userID string) (types.ContinuityRecord, error) {
	return e.continuity.Get(userID)
}

// Transitions returns the session's lifecycle audit trail.
func (e *Engine) Transitions(sessionID string) []types.SessionTransition {
	return e.states.Transitions(sessionID)
}

// acquire takes the per-session in-flight latch. The engine does not define
// behavior for two concurrent operations on one session, so the second
// caller is rejected rather than queued.
func (e *Engine) acquire(sessionID, op string) error {
	e.inFlightMu.Lock()
	defer e.inFlightMu.Unlock()
	if e.inFlight[sessionID] {
		return &types.ConsistencyError{Op: op, Detail: "another operation is in flight for session " + sessionID}
	}
	e.inFlight[sessionID] = true
	return nil
}

func (e *Engine) release(sessionID string) {
	e.inFlightMu.Lock()
	defer e.inFlightMu.Unlock()
	delete(e.inFlight, sessionID)
}
