package session

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"caremind/internal/logging"
	"caremind/internal/types"
)

// Per-turn recomputation. These are pure functions over the current state
// and the new turn; no external calls happen here.

// Phase thresholds by turn count.
const (
	phaseInitialMax    = 2
	phaseGatheringMax  = 5
	phaseDiscussionMax = 10
	phaseExtendedMax   = 20
)

// Complexity weights. The score is capped at 1.0.
const (
	complexityTurnWeight   = 0.02
	complexityTopicWeight  = 0.08
	complexitySwitchWeight = 0.10
)

// Engagement tiers, from running average user-message length (chars) and
// cumulative question count.
const (
	engagementHighAvgLen    = 100
	engagementHighQuestions = 5
	engagementMedAvgLen     = 40
	engagementMedQuestions  = 2
)

// RecordTurn folds one completed turn into the session's state: turn count,
// phase, complexity, engagement, interaction audit record, and boundary
// flags. The caller guarantees only one update is in flight per session.
func (sm *StateMachine) RecordTurn(sessionID string, turn types.Turn, agentID string) error {
	l := sm.lock(sessionID)
	l.Lock()
	defer l.Unlock()

	state, err := sm.liveState(sessionID)
	if err != nil {
		return err
	}
	if state.Status != types.StatusActive {
		return &types.ConsistencyError{Op: "recordTurn", Detail: "session is " + state.Status.String() + ", not ACTIVE"}
	}

	state.TotalTurns++
	state.LastActivity = time.Now()
	state.UserChars += len(turn.UserMessage)
	state.QuestionCount += strings.Count(turn.UserMessage, "?")

	if turn.TopicTag != "" {
		state.Topics[turn.TopicTag] = true
		state.LastTopic = turn.TopicTag
	}
	if agentID != "" && state.LastAgent != "" && agentID != state.LastAgent {
		state.AgentSwitches++
	}
	if agentID != "" {
		state.LastAgent = agentID
	}

	state.Phase = computePhase(state.TotalTurns)
	state.ComplexityScore = computeComplexity(state.TotalTurns, len(state.Topics), state.AgentSwitches)
	state.Engagement = computeEngagement(state.UserChars, state.TotalTurns, state.QuestionCount)

	state.Quality.Record(turn.Quality)

	quality := 0.0
	if turn.Quality != nil {
		quality = turn.Quality.Quality
	}
	state.Interactions = append(state.Interactions, types.AgentInteraction{
		ID:         uuid.NewString(),
		AgentID:    agentID,
		TurnNumber: turn.Number,
		Timestamp:  time.Now(),
		TopicTag:   turn.TopicTag,
		Quality:    quality,
	})

	sm.refreshFlags(state)

	logging.SessionDebug("session %s turn %d: phase=%s complexity=%.2f engagement=%s",
		sessionID, state.TotalTurns, state.Phase, state.ComplexityScore, state.Engagement)
	return nil
}

// RecordSync folds a memory sync outcome into the usage stats.
func (sm *StateMachine) RecordSync(sessionID string, result types.MemorySyncResult, blockSizes map[string]int) {
	l := sm.lock(sessionID)
	l.Lock()
	defer l.Unlock()

	state, err := sm.liveState(sessionID)
	if err != nil {
		return
	}
	state.MemoryUsage.TotalSyncs++
	state.MemoryUsage.LastSyncTurn = result.TurnNumber
	if !result.Success {
		state.MemoryUsage.SyncFailures++
	}
	for id, size := range blockSizes {
		state.MemoryUsage.BlockSizes[id] = size
	}
}

func computePhase(turnCount int) types.SessionPhase {
	switch {
	case turnCount <= phaseInitialMax:
		return types.PhaseInitialAssessment
	case turnCount <= phaseGatheringMax:
		return types.PhaseInformationGathering
	case turnCount <= phaseDiscussionMax:
		return types.PhaseActiveDiscussion
	case turnCount <= phaseExtendedMax:
		return types.PhaseExtendedConsultation
	default:
		return types.PhaseDeepEngagement
	}
}

func computeComplexity(turnCount, distinctTopics, agentSwitches int) float64 {
	score := complexityTurnWeight*float64(turnCount) +
		complexityTopicWeight*float64(distinctTopics) +
		complexitySwitchWeight*float64(agentSwitches)
	if score > 1.0 {
		return 1.0
	}
	return score
}

func computeEngagement(userChars, turnCount, questions int) types.EngagementLevel {
	if turnCount == 0 {
		return types.EngagementLow
	}
	avgLen := userChars / turnCount
	switch {
	case avgLen >= engagementHighAvgLen || questions >= engagementHighQuestions:
		return types.EngagementHigh
	case avgLen >= engagementMedAvgLen || questions >= engagementMedQuestions:
		return types.EngagementMedium
	default:
		return types.EngagementLow
	}
}

// refreshFlags recomputes the advisory boundary flags. Flags never force a
// transition; callers decide what to do with them.
func (sm *StateMachine) refreshFlags(state *types.SessionState) {
	state.Flags[types.FlagArchivalRequired] = state.TotalTurns >= sm.cfg.ArchivalTriggerTurns
	state.Flags[types.FlagLongRunning] = time.Since(state.CreatedAt) > sm.cfg.ParseLongRunningAfter()
	state.Flags[types.FlagQualityIssues] = state.Quality.RatedTurns > 0 &&
		state.Quality.OverallQuality < sm.cfg.QualityIssueThreshold
}
