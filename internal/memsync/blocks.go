// Package memsync keeps the redundant, size-bounded memory views of a
// session consistent after every turn: parallel writes through a bounded
// worker pool, bounded retries with exponential backoff, and post-write
// consistency verification.
package memsync

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"caremind/internal/ranking"
	"caremind/internal/types"
)

// Logical memory block IDs.
const (
	BlockHistory       = "history"
	BlockSessionDigest = "session_digest"
	BlockSummary       = "rolling_summary"
	BlockUsageMetadata = "usage_metadata"
)

// BlockWriter is the external write operation for one memory block. The
// reasoning service parses block content by convention, so writers must
// store it verbatim.
type BlockWriter interface {
	WriteBlock(ctx context.Context, sessionID, blockID, content string) error
}

// MemoryBlockStore is the in-process BlockWriter. It also serves reads so
// tests and the CLI can inspect what was written.
type MemoryBlockStore struct {
	mu     sync.RWMutex
	blocks map[string]map[string]string // sessionID -> blockID -> content
}

// NewMemoryBlockStore creates an empty block store.
func NewMemoryBlockStore() *MemoryBlockStore {
	return &MemoryBlockStore{blocks: make(map[string]map[string]string)}
}

func (s *MemoryBlockStore) WriteBlock(_ context.Context, sessionID, blockID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocks[sessionID] == nil {
		s.blocks[sessionID] = make(map[string]string)
	}
	s.blocks[sessionID][blockID] = content
	return nil
}

// ReadBlock returns a block's current content.
func (s *MemoryBlockStore) ReadBlock(sessionID, blockID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.blocks[sessionID][blockID]
	return content, ok
}

// =============================================================================
// WIRE FORMAT
// =============================================================================
// Each block is flat lines of `KEY: value |` segments. The reasoning service
// parses this grammar by convention: key names, ordering, and the `|`
// delimiter are all load-bearing. Do not restructure.

// renderHistory renders the full turn history, one line per turn.
func renderHistory(turns []types.Turn, agentID string) string {
	var sb strings.Builder
	for _, t := range turns {
		enriched := "(none)"
		if t.Enrichment != nil {
			enriched = ranking.Digest(t.Enrichment.Reasoning)
		}
		quality := "(pending)"
		if t.Quality != nil {
			quality = fmt.Sprintf("%.2f", t.Quality.Quality)
		}
		fmt.Fprintf(&sb, "TURN_%d: USER: %s | ENRICHED: %s | AGENT: %s | RESPONSE: %s | TOPIC: %s | QUALITY: %s\n",
			t.Number,
			ranking.Digest(t.UserMessage),
			enriched,
			orNone(agentID),
			ranking.Digest(t.AgentResponse),
			orNone(t.TopicTag),
			quality)
	}
	return sb.String()
}

// renderDigest renders the active-session digest as one line.
func renderDigest(state *types.SessionState) string {
	flags := activeFlags(state.Flags)
	return fmt.Sprintf("SESSION: %s | USER: %s | STATUS: %s | PHASE: %s | TURNS: %d | ENGAGEMENT: %s | COMPLEXITY: %.2f | QUALITY: %.2f | FLAGS: %s\n",
		state.SessionID, state.UserID, state.Status, state.Phase, state.TotalTurns,
		state.Engagement, state.ComplexityScore, state.Quality.OverallQuality, flags)
}

// renderSummary renders the rolling summary: per-topic turn spans plus the
// latest enrichment reasoning.
func renderSummary(turns []types.Turn, turn types.Turn) string {
	var sb strings.Builder
	topics := topicSpans(turns)
	fmt.Fprintf(&sb, "SUMMARY_AT_TURN_%d: TOPICS: %s | SPAN: 1-%d",
		turn.Number, orNone(strings.Join(topics, ", ")), turn.Number)
	if turn.Enrichment != nil {
		fmt.Fprintf(&sb, " | CONTEXT: %s", ranking.Digest(turn.Enrichment.Reasoning))
	}
	if turn.Quality != nil {
		fmt.Fprintf(&sb, " | QUALITY: %.2f", turn.Quality.Quality)
	}
	sb.WriteString("\n")
	return sb.String()
}

// renderUsage renders usage metadata for the session.
func renderUsage(state *types.SessionState, turn types.Turn) string {
	ids := make([]string, 0, len(state.MemoryUsage.BlockSizes))
	for id := range state.MemoryUsage.BlockSizes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	fmt.Fprintf(&sb, "USAGE: SESSION: %s | TURN: %d | SYNCS: %d | FAILURES: %d",
		state.SessionID, turn.Number, state.MemoryUsage.TotalSyncs, state.MemoryUsage.SyncFailures)
	for _, id := range ids {
		fmt.Fprintf(&sb, " | SIZE_%s: %d", id, state.MemoryUsage.BlockSizes[id])
	}
	sb.WriteString("\n")
	return sb.String()
}

// rotate trims a block to its size limit by dropping whole lines
// oldest-first. A block whose newest line alone exceeds the limit cannot be
// reduced and fails with RotationError.
func rotate(blockID, content string, limit int) (string, error) {
	if limit <= 0 || len(content) <= limit {
		return content, nil
	}

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	for len(lines) > 1 && totalLen(lines) > limit {
		lines = lines[1:]
	}

	trimmed := strings.Join(lines, "\n") + "\n"
	if len(trimmed) > limit {
		return "", &types.RotationError{BlockID: blockID, Size: len(trimmed), Limit: limit}
	}
	return trimmed, nil
}

func totalLen(lines []string) int {
	n := 0
	for _, l := range lines {
		n += len(l) + 1 // trailing newline
	}
	return n
}

func topicSpans(turns []types.Turn) []string {
	first := make(map[string]int)
	last := make(map[string]int)
	var order []string
	for _, t := range turns {
		if t.TopicTag == "" {
			continue
		}
		if _, ok := first[t.TopicTag]; !ok {
			first[t.TopicTag] = t.Number
			order = append(order, t.TopicTag)
		}
		last[t.TopicTag] = t.Number
	}
	spans := make([]string, 0, len(order))
	for _, topic := range order {
		if first[topic] == last[topic] {
			spans = append(spans, fmt.Sprintf("%s@%d", topic, first[topic]))
		} else {
			spans = append(spans, fmt.Sprintf("%s@%d-%d", topic, first[topic], last[topic]))
		}
	}
	return spans
}

func activeFlags(flags map[string]bool) string {
	var active []string
	for name, on := range flags {
		if on {
			active = append(active, name)
		}
	}
	if len(active) == 0 {
		return "(none)"
	}
	sort.Strings(active)
	return strings.Join(active, ",")
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
