// Package types provides shared type definitions used across caremind packages.
// This package exists to break import cycles between engine, session, and memsync.
// Types in this package should be foundational data structures with no complex dependencies.
package types

import (
	"fmt"
	"time"
)

// =============================================================================
// SESSION LIFECYCLE ENUMS
// =============================================================================

// SessionStatus is the lifecycle status of a session. The legal transitions
// form a closed table enforced by session.StateMachine; everything else is a
// ConsistencyError.
type SessionStatus int

const (
	// StatusInitializing - session created, init not yet completed
	StatusInitializing SessionStatus = iota
	// StatusActive - session accepting turns
	StatusActive
	// StatusPaused - user-paused, resumable
	StatusPaused
	// StatusEnded - terminal for turns, awaiting archival sweep
	StatusEnded
	// StatusArchived - terminal
	StatusArchived
)

func (s SessionStatus) String() string {
	switch s {
	case StatusInitializing:
		return "INITIALIZING"
	case StatusActive:
		return "ACTIVE"
	case StatusPaused:
		return "PAUSED"
	case StatusEnded:
		return "ENDED"
	case StatusArchived:
		return "ARCHIVED"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// SessionPhase tracks how deep into a consultation a session is.
// Recomputed from turn count after every turn.
type SessionPhase int

const (
	PhaseInitialAssessment SessionPhase = iota
	PhaseInformationGathering
	PhaseActiveDiscussion
	PhaseExtendedConsultation
	PhaseDeepEngagement
)

func (p SessionPhase) String() string {
	switch p {
	case PhaseInitialAssessment:
		return "Initial Assessment"
	case PhaseInformationGathering:
		return "Information Gathering"
	case PhaseActiveDiscussion:
		return "Active Discussion"
	case PhaseExtendedConsultation:
		return "Extended Consultation"
	case PhaseDeepEngagement:
		return "Deep Engagement"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// EngagementLevel buckets how engaged the user is, from running message
// length and question counts.
type EngagementLevel int

const (
	EngagementLow EngagementLevel = iota
	EngagementMedium
	EngagementHigh
)

func (e EngagementLevel) String() string {
	switch e {
	case EngagementLow:
		return "LOW"
	case EngagementMedium:
		return "MEDIUM"
	case EngagementHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("unknown(%d)", int(e))
	}
}

// TransitionType classifies why a lifecycle transition happened.
type TransitionType int

const (
	TransitionCreate TransitionType = iota
	TransitionActivate
	TransitionPause
	TransitionResume
	TransitionEnd
	TransitionArchive
)

func (t TransitionType) String() string {
	switch t {
	case TransitionCreate:
		return "create"
	case TransitionActivate:
		return "activate"
	case TransitionPause:
		return "pause"
	case TransitionResume:
		return "resume"
	case TransitionEnd:
		return "end"
	case TransitionArchive:
		return "archive"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// =============================================================================
// TURN AND HISTORY
// =============================================================================

// Turn is one user-message/agent-response exchange. Turn numbers are 1-based,
// gapless, and assigned under the session ledger's lock. AgentResponse,
// Quality, and Enrichment are write-once: populated only after the reasoning
// service and analyzer return.
type Turn struct {
	SessionID      string
	Number         int
	UserMessage    string
	AgentResponse  string
	TopicTag       string
	EmotionalState string
	Timestamp      time.Time
	Quality        *QualityMetadata
	Enrichment     *ContextEnrichmentResult
}

// Completed reports whether the agent side of the turn has been filled in.
func (t *Turn) Completed() bool {
	return t.AgentResponse != "" && t.Quality != nil
}

// ConversationHistory is a snapshot of a session's ledger. TotalTurns always
// equals len(Turns).
type ConversationHistory struct {
	SessionID  string
	UserID     string
	Status     SessionStatus
	TotalTurns int
	Turns      []Turn
}

// =============================================================================
// ENRICHMENT AND QUALITY
// =============================================================================

// ContextEnrichmentResult is the ranker/composer output for one turn.
// Immutable once produced.
type ContextEnrichmentResult struct {
	SelectedTurnNumbers []int
	Confidence          float64 // [0,1]
	ComposedText        string
	Reasoning           string
}

// QualityMetadata is the response-quality analyzer's verdict on one exchange.
// The analyzer is a pure function over (agentResponse, userMessage,
// enrichedContext); no field here is populated from network state.
type QualityMetadata struct {
	Quality                  float64 // [0,1] overall
	ContextRelevance         float64
	Confidence               float64
	MedicalAccuracy          float64
	EmotionalAppropriateness float64
	Sentiment                string
	Topics                   []string
	Patterns                 []string
	AddressedConcern         bool
	RequiresFollowUp         bool
}

// HighQuality reports whether the turn should trigger an off-cadence rolling
// summary update.
func (q *QualityMetadata) HighQuality() bool {
	return q != nil && q.Quality >= 0.8
}

// =============================================================================
// SESSION STATE
// =============================================================================

// AgentInteraction is an audit record appended on every turn.
type AgentInteraction struct {
	ID         string
	AgentID    string
	TurnNumber int
	Timestamp  time.Time
	TopicTag   string
	Quality    float64
}

// QualityMetrics carries running quality aggregates for a session.
type QualityMetrics struct {
	OverallQuality      float64
	AvgContextRelevance float64
	RatedTurns          int
	qualitySum          float64
	relevanceSum        float64
}

// Record folds one turn's quality metadata into the running aggregates.
func (m *QualityMetrics) Record(q *QualityMetadata) {
	if q == nil {
		return
	}
	m.RatedTurns++
	m.qualitySum += q.Quality
	m.relevanceSum += q.ContextRelevance
	m.OverallQuality = m.qualitySum / float64(m.RatedTurns)
	m.AvgContextRelevance = m.relevanceSum / float64(m.RatedTurns)
}

// MemoryUsageStats tracks the observable cost of memory synchronization.
type MemoryUsageStats struct {
	BlockSizes   map[string]int // rendered bytes per block ID
	LastSyncTurn int
	TotalSyncs   int
	SyncFailures int
}

// SessionState is the single live mutable record per active session.
// Mutations are serialized by the caller at "one update in flight per
// session" granularity; the state map itself is guarded by the state machine.
type SessionState struct {
	SessionID       string
	UserID          string
	Status          SessionStatus
	Phase           SessionPhase
	ComplexityScore float64 // [0,1]
	Engagement      EngagementLevel
	Quality         QualityMetrics
	MemoryUsage     MemoryUsageStats
	Flags           map[string]bool

	CreatedAt    time.Time
	LastActivity time.Time
	PausedAt     time.Time
	TotalTurns   int

	// Per-turn derived inputs for phase/complexity/engagement recomputation.
	Topics        map[string]bool
	AgentSwitches int
	LastAgent     string
	UserChars     int
	QuestionCount int
	LastTopic     string

	Interactions []AgentInteraction
}

// Advisory flag names. Flags never force a transition; callers decide.
const (
	FlagArchivalRequired = "archivalRequired"
	FlagLongRunning      = "longRunning"
	FlagQualityIssues    = "qualityIssues"
)

// SessionTransition is an append-only audit record of one lifecycle change.
type SessionTransition struct {
	ID            string
	SessionID     string
	FromStatus    SessionStatus
	ToStatus      SessionStatus
	Timestamp     time.Time
	Type          TransitionType
	Reason        string
	TriggerSource string
	Snapshot      string // pause only: textual context snapshot
	Success       bool
}

// =============================================================================
// CONTINUITY
// =============================================================================

// SessionSummary is the per-session entry appended to a user's continuity
// record when the session ends.
type SessionSummary struct {
	SessionID          string
	EndedAt            time.Time
	Duration           time.Duration
	TotalTurns         int
	Topics             []string
	ResolutionAchieved bool
	Quality            float64
}

// ContinuityRecord carries summarized state from a user's prior ended
// sessions into new sessions.
type ContinuityRecord struct {
	UserID         string
	Sessions       []SessionSummary
	SessionCount   int
	AverageQuality float64
}

// =============================================================================
// MEMORY SYNC
// =============================================================================

// SyncStatus is the overall outcome of one coordinator run.
type SyncStatus int

const (
	// SyncSynchronized - every targeted block wrote and every check passed
	SyncSynchronized SyncStatus = iota
	// SyncPartial - at least one write or check failed; degraded, not fatal
	SyncPartial
)

func (s SyncStatus) String() string {
	switch s {
	case SyncSynchronized:
		return "SYNCHRONIZED"
	case SyncPartial:
		return "PARTIAL"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// MemorySyncResult reports one coordinator run. Success is true only when
// every targeted block both wrote successfully and passed its consistency
// check.
type MemorySyncResult struct {
	SessionID         string
	TurnNumber        int
	Status            SyncStatus
	UpdatedBlockIDs   []string
	Success           bool
	ConsistencyChecks map[string]bool
	Errors            []error
}
