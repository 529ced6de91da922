package memsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"caremind/internal/config"
	"caremind/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// flakyWriter fails a configured number of times per block before
// succeeding, recording every attempt.
type flakyWriter struct {
	mu        sync.Mutex
	failures  map[string]int
	attempts  map[string]int
	succeeded *MemoryBlockStore
}

func newFlakyWriter(failures map[string]int) *flakyWriter {
	return &flakyWriter{
		failures:  failures,
		attempts:  make(map[string]int),
		succeeded: NewMemoryBlockStore(),
	}
}

func (w *flakyWriter) WriteBlock(ctx context.Context, sessionID, blockID, content string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[blockID]++
	if w.failures[blockID] > 0 {
		w.failures[blockID]--
		return fmt.Errorf("injected write failure for %s", blockID)
	}
	return w.succeeded.WriteBlock(ctx, sessionID, blockID, content)
}

func (w *flakyWriter) attemptCount(blockID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attempts[blockID]
}

func testRequest(turnNumber int) Request {
	turn := types.Turn{
		SessionID:     "s1",
		Number:        turnNumber,
		UserMessage:   "my headache is back",
		AgentResponse: "let's track when it happens",
		TopicTag:      "headache",
		Quality:       &types.QualityMetadata{Quality: 0.75, ContextRelevance: 0.6},
		Enrichment:    &types.ContextEnrichmentResult{Confidence: 0.8, Reasoning: "selected 1 turn(s), mean score 0.80"},
	}
	state := &types.SessionState{
		SessionID:   "s1",
		UserID:      "u1",
		Status:      types.StatusActive,
		Phase:       types.PhaseInitialAssessment,
		TotalTurns:  turnNumber,
		Flags:       map[string]bool{},
		Topics:      map[string]bool{"headache": true},
		MemoryUsage: types.MemoryUsageStats{BlockSizes: map[string]int{}},
	}
	var history []types.Turn
	for i := 1; i <= turnNumber; i++ {
		h := turn
		h.Number = i
		history = append(history, h)
	}
	return Request{Turn: turn, State: state, History: history, AgentID: "agent"}
}

func fastSyncConfig() config.SyncConfig {
	cfg := config.DefaultSyncConfig()
	cfg.BaseDelay = "5ms"
	cfg.Deadline = "2s"
	return cfg
}

func TestSync_AllBlocksSynchronized(t *testing.T) {
	store := NewMemoryBlockStore()
	c := NewCoordinator(fastSyncConfig(), store)

	result := c.Sync(context.Background(), testRequest(1))

	require.True(t, result.Success)
	assert.Equal(t, types.SyncSynchronized, result.Status)
	assert.Empty(t, result.Errors)
	// Turn 1 is off the summary cadence but not high-quality, so three blocks.
	assert.Equal(t, []string{BlockHistory, BlockSessionDigest, BlockUsageMetadata}, result.UpdatedBlockIDs)

	for name, ok := range result.ConsistencyChecks {
		assert.True(t, ok, "check %s must pass on the success path", name)
	}
	require.Len(t, result.ConsistencyChecks, 5)
}

func TestSync_SummaryOnCadenceAndOnHighQuality(t *testing.T) {
	store := NewMemoryBlockStore()
	c := NewCoordinator(fastSyncConfig(), store)

	// Every 3rd turn updates the summary.
	result := c.Sync(context.Background(), testRequest(3))
	assert.Contains(t, result.UpdatedBlockIDs, BlockSummary)

	// Off-cadence but high-quality also updates it.
	req := testRequest(4)
	req.Turn.Quality.Quality = 0.9
	result = c.Sync(context.Background(), req)
	assert.Contains(t, result.UpdatedBlockIDs, BlockSummary)

	// Off-cadence, ordinary quality does not.
	result = c.Sync(context.Background(), testRequest(5))
	assert.NotContains(t, result.UpdatedBlockIDs, BlockSummary)
}

func TestSync_RetriesThenSucceeds(t *testing.T) {
	writer := newFlakyWriter(map[string]int{BlockHistory: 2})
	c := NewCoordinator(fastSyncConfig(), writer)

	start := time.Now()
	result := c.Sync(context.Background(), testRequest(1))
	elapsed := time.Since(start)

	require.True(t, result.Success, "two failures within three attempts must still succeed")
	assert.Equal(t, 3, writer.attemptCount(BlockHistory))

	// Backoff lower bound: baseDelay + 2*baseDelay.
	base := 5 * time.Millisecond
	assert.GreaterOrEqual(t, elapsed, base+2*base)
}

func TestSync_RetriesExhausted(t *testing.T) {
	writer := newFlakyWriter(map[string]int{BlockSessionDigest: 10})
	c := NewCoordinator(fastSyncConfig(), writer)

	result := c.Sync(context.Background(), testRequest(1))

	require.False(t, result.Success)
	assert.Equal(t, types.SyncPartial, result.Status)
	assert.NotContains(t, result.UpdatedBlockIDs, BlockSessionDigest)
	assert.Contains(t, result.UpdatedBlockIDs, BlockHistory)

	require.NotEmpty(t, result.Errors)
	var upstream *types.UpstreamError
	require.ErrorAs(t, result.Errors[0], &upstream)
	assert.Equal(t, 3, upstream.Attempts)
}

func TestSync_SuccessImpliesAllChecksTrue(t *testing.T) {
	store := NewMemoryBlockStore()
	c := NewCoordinator(fastSyncConfig(), store)

	// Missing quality metadata: writes succeed but a check fails, so the
	// overall result must be PARTIAL.
	req := testRequest(1)
	req.Turn.Quality = nil

	result := c.Sync(context.Background(), req)

	assert.False(t, result.Success)
	assert.Equal(t, types.SyncPartial, result.Status)
	assert.False(t, result.ConsistencyChecks[CheckQualityPresent])

	anyFailed := false
	for _, ok := range result.ConsistencyChecks {
		if !ok {
			anyFailed = true
		}
	}
	assert.True(t, anyFailed)
}

func TestSync_LinkageCheck(t *testing.T) {
	store := NewMemoryBlockStore()
	c := NewCoordinator(fastSyncConfig(), store)

	req := testRequest(1)
	req.Turn.Enrichment = nil

	result := c.Sync(context.Background(), req)
	assert.False(t, result.Success)
	assert.False(t, result.ConsistencyChecks[CheckLinkage])
}

func TestSync_DeadlineAbandonsOutstandingTasks(t *testing.T) {
	block := make(chan struct{})
	writer := &stallingWriter{unblock: block}
	cfg := fastSyncConfig()
	cfg.Deadline = "50ms"
	c := NewCoordinator(cfg, writer)

	result := c.Sync(context.Background(), testRequest(1))

	assert.False(t, result.Success)
	found := false
	for _, err := range result.Errors {
		var timeout *types.TimeoutError
		if errors.As(err, &timeout) {
			found = true
		}
	}
	assert.True(t, found, "deadline expiry must surface a TimeoutError")

	close(block) // release the stalled writers so goleak stays quiet
	time.Sleep(50 * time.Millisecond)
}

type stallingWriter struct {
	unblock chan struct{}
}

func (w *stallingWriter) WriteBlock(ctx context.Context, sessionID, blockID, content string) error {
	<-w.unblock
	return nil
}

func TestBlockSizes(t *testing.T) {
	c := NewCoordinator(fastSyncConfig(), NewMemoryBlockStore())
	sizes := c.BlockSizes(testRequest(3))

	for _, id := range []string{BlockHistory, BlockSessionDigest, BlockSummary, BlockUsageMetadata} {
		assert.Greater(t, sizes[id], 0, "block %s must have a rendered size", id)
	}
}

func TestRotate_TrimsOldestFirst(t *testing.T) {
	content := "TURN_1: old\nTURN_2: middle\nTURN_3: new\n"
	limit := len("TURN_2: middle\nTURN_3: new\n")

	rotated, err := rotate(BlockHistory, content, limit)
	require.NoError(t, err)
	assert.NotContains(t, rotated, "TURN_1")
	assert.Contains(t, rotated, "TURN_3")
	assert.LessOrEqual(t, len(rotated), limit)
}

func TestRotate_SingleOversizeLineFails(t *testing.T) {
	content := strings.Repeat("x", 100) + "\n"

	_, err := rotate(BlockSummary, content, 10)
	var rotation *types.RotationError
	require.ErrorAs(t, err, &rotation)
	assert.Equal(t, BlockSummary, rotation.BlockID)
}

func TestRotate_UnderLimitUntouched(t *testing.T) {
	content := "SESSION: s1 | TURNS: 3\n"
	rotated, err := rotate(BlockSessionDigest, content, 1000)
	require.NoError(t, err)
	assert.Equal(t, content, rotated)
}

func TestWireFormat_HistoryGrammar(t *testing.T) {
	req := testRequest(2)
	content := renderHistory(req.History, "agent")

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	require.Len(t, lines, 2)

	// The reasoning service parses this grammar by convention; key names,
	// ordering, and the pipe delimiter are all load-bearing.
	assert.True(t, strings.HasPrefix(lines[0], "TURN_1: USER: "))
	for _, key := range []string{" | ENRICHED: ", " | AGENT: ", " | RESPONSE: ", " | TOPIC: ", " | QUALITY: "} {
		assert.Contains(t, lines[0], key)
	}
	assert.Less(t,
		strings.Index(lines[0], "ENRICHED:"), strings.Index(lines[0], "AGENT:"),
		"segment order is fixed")
	assert.Less(t,
		strings.Index(lines[0], "AGENT:"), strings.Index(lines[0], "RESPONSE:"))
}

func TestWireFormat_DigestAndUsage(t *testing.T) {
	req := testRequest(3)

	digest := renderDigest(req.State)
	assert.True(t, strings.HasPrefix(digest, "SESSION: s1 | USER: u1 | STATUS: ACTIVE | PHASE: "))
	assert.Contains(t, digest, "| TURNS: 3 |")

	usage := renderUsage(req.State, req.Turn)
	assert.True(t, strings.HasPrefix(usage, "USAGE: SESSION: s1 | TURN: 3 |"))
	assert.Contains(t, usage, "SYNCS:")
	assert.Contains(t, usage, "FAILURES:")
}

func TestWireFormat_Summary(t *testing.T) {
	req := testRequest(3)
	summary := renderSummary(req.History, req.Turn)

	assert.True(t, strings.HasPrefix(summary, "SUMMARY_AT_TURN_3: TOPICS: "))
	assert.Contains(t, summary, "headache@1-3")
	assert.Contains(t, summary, "| SPAN: 1-3")
}
