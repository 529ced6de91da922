package memsync

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"caremind/internal/config"
	"caremind/internal/logging"
	"caremind/internal/types"
)

// Consistency check names. All five run after dispatch settles; overall
// success requires every one of them to pass.
const (
	CheckTurnNumberPositive = "turn_number_positive"
	CheckSessionIDPresent   = "session_id_present"
	CheckQualityPresent     = "quality_metadata_present"
	CheckBlockSizes         = "block_sizes_within_limit"
	CheckLinkage            = "bidirectional_linkage"
)

// Request carries everything one coordinator run needs.
type Request struct {
	Turn    types.Turn
	State   *types.SessionState
	History []types.Turn
	AgentID string
}

// Coordinator fans out memory-block writes, retries them, and verifies the
// result. One coordinator serves all sessions; the worker pool is shared.
type Coordinator struct {
	cfg    config.SyncConfig
	writer BlockWriter
	pool   *semaphore.Weighted
}

// NewCoordinator creates a coordinator with a worker pool of cfg.Workers.
func NewCoordinator(cfg config.SyncConfig, writer BlockWriter) *Coordinator {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Coordinator{
		cfg:    cfg,
		writer: writer,
		pool:   semaphore.NewWeighted(int64(workers)),
	}
}

// writeTask is one block update dispatched to the pool.
type writeTask struct {
	blockID string
	content string
}

type writeOutcome struct {
	blockID  string
	attempts int
	err      error
}

// Sync runs one coordination pass for a completed turn. It never returns an
// error to the caller: partial failure is reported inside the result, and
// the user-visible reply is never blocked on memory sync.
func (c *Coordinator) Sync(ctx context.Context, req Request) types.MemorySyncResult {
	result := types.MemorySyncResult{
		SessionID:         req.Turn.SessionID,
		TurnNumber:        req.Turn.Number,
		ConsistencyChecks: make(map[string]bool),
	}

	tasks, renderErrs := c.buildTasks(req)
	result.Errors = append(result.Errors, renderErrs...)

	outcomes := c.dispatch(ctx, req.Turn.SessionID, tasks)

	writesOK := len(renderErrs) == 0
	for _, o := range outcomes {
		if o.err != nil {
			writesOK = false
			result.Errors = append(result.Errors, o.err)
			continue
		}
		result.UpdatedBlockIDs = append(result.UpdatedBlockIDs, o.blockID)
	}
	sort.Strings(result.UpdatedBlockIDs)

	checksOK := c.verify(req, tasks, result.ConsistencyChecks)

	result.Success = writesOK && checksOK
	if result.Success {
		result.Status = types.SyncSynchronized
		logging.SyncDebug("session %s turn %d: synchronized %d blocks",
			req.Turn.SessionID, req.Turn.Number, len(result.UpdatedBlockIDs))
		return result
	}

	result.Status = types.SyncPartial
	c.rollback(req, result)
	return result
}

// BlockSizes returns the rendered size per targeted block for usage
// accounting, independent of write success.
func (c *Coordinator) BlockSizes(req Request) map[string]int {
	tasks, _ := c.buildTasks(req)
	sizes := make(map[string]int, len(tasks))
	for _, t := range tasks {
		sizes[t.blockID] = len(t.content)
	}
	return sizes
}

// buildTasks determines the targeted blocks and renders them, applying
// rotation. History, session digest, and usage metadata update on every
// turn; the rolling summary every SummaryCadence turns or on a high-quality
// turn.
func (c *Coordinator) buildTasks(req Request) ([]writeTask, []error) {
	var tasks []writeTask
	var errs []error

	add := func(blockID, content string) {
		rotated, err := rotate(blockID, content, c.cfg.BlockSizeLimit)
		if err != nil {
			errs = append(errs, err)
			return
		}
		tasks = append(tasks, writeTask{blockID: blockID, content: rotated})
	}

	add(BlockHistory, renderHistory(req.History, req.AgentID))
	add(BlockSessionDigest, renderDigest(req.State))
	if c.summaryDue(req.Turn) {
		add(BlockSummary, renderSummary(req.History, req.Turn))
	}
	add(BlockUsageMetadata, renderUsage(req.State, req.Turn))

	return tasks, errs
}

func (c *Coordinator) summaryDue(turn types.Turn) bool {
	cadence := c.cfg.SummaryCadence
	if cadence < 1 {
		cadence = 1
	}
	return turn.Number%cadence == 0 || turn.Quality.HighQuality()
}

// dispatch runs the tasks on the bounded pool and joins them under the
// coordinator deadline. A task still outstanding at the deadline is counted
// failed but not cancelled: abandonment is best-effort by design, and the
// write may still land later.
func (c *Coordinator) dispatch(ctx context.Context, sessionID string, tasks []writeTask) []writeOutcome {
	results := make(chan writeOutcome, len(tasks))
	var wg sync.WaitGroup

	for _, task := range tasks {
		wg.Add(1)
		go func(task writeTask) {
			defer wg.Done()
			if err := c.pool.Acquire(ctx, 1); err != nil {
				results <- writeOutcome{blockID: task.blockID, err: fmt.Errorf("pool acquire for %s: %w", task.blockID, err)}
				return
			}
			defer c.pool.Release(1)
			results <- c.writeWithRetry(ctx, sessionID, task)
		}(task)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	deadline := c.cfg.ParseDeadline()
	var outcomes []writeOutcome
	select {
	case <-done:
		close(results)
		for o := range results {
			outcomes = append(outcomes, o)
		}
	case <-time.After(deadline):
		// Collect whatever settled, mark the rest failed.
		settled := make(map[string]bool)
	drain:
		for {
			select {
			case o := <-results:
				settled[o.blockID] = true
				outcomes = append(outcomes, o)
			default:
				break drain
			}
		}
		for _, task := range tasks {
			if !settled[task.blockID] {
				outcomes = append(outcomes, writeOutcome{
					blockID: task.blockID,
					err:     &types.TimeoutError{Op: "sync of block " + task.blockID, Deadline: deadline},
				})
			}
		}
		logging.SyncWarn("session %s: sync deadline %s expired with %d block(s) outstanding",
			sessionID, deadline, len(tasks)-len(settled))
	}

	return outcomes
}

// writeWithRetry performs the external write with up to MaxAttempts tries
// and exponential backoff baseDelay * 2^(attempt-1) between failures.
func (c *Coordinator) writeWithRetry(ctx context.Context, sessionID string, task writeTask) writeOutcome {
	baseDelay := c.cfg.ParseBaseDelay()
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := c.writer.WriteBlock(ctx, sessionID, task.blockID, task.content); err != nil {
			lastErr = err
			logging.SyncDebug("session %s block %s: attempt %d failed: %v",
				sessionID, task.blockID, attempt, err)
			if attempt < c.cfg.MaxAttempts {
				time.Sleep(baseDelay * (1 << (attempt - 1)))
			}
			continue
		}
		return writeOutcome{blockID: task.blockID, attempts: attempt}
	}

	return writeOutcome{
		blockID:  task.blockID,
		attempts: c.cfg.MaxAttempts,
		err: &types.UpstreamError{
			Op:       "write block " + task.blockID,
			Attempts: c.cfg.MaxAttempts,
			Err:      lastErr,
		},
	}
}

// verify runs the five consistency checks against the Turn/SessionState
// pair. Check results are recorded by name so callers can see exactly what
// failed.
func (c *Coordinator) verify(req Request, tasks []writeTask, checks map[string]bool) bool {
	checks[CheckTurnNumberPositive] = req.Turn.Number > 0
	checks[CheckSessionIDPresent] = req.Turn.SessionID != ""
	checks[CheckQualityPresent] = req.Turn.Quality != nil

	sizesOK := true
	for _, t := range tasks {
		if c.cfg.BlockSizeLimit > 0 && len(t.content) > c.cfg.BlockSizeLimit {
			sizesOK = false
		}
	}
	checks[CheckBlockSizes] = sizesOK

	checks[CheckLinkage] = req.Turn.Enrichment != nil && req.Turn.AgentResponse != ""

	for _, ok := range checks {
		if !ok {
			return false
		}
	}
	return true
}

// rollback is log-only. Without a pre-write snapshot there is nothing to
// restore, so the degraded state is recorded for operators instead.
func (c *Coordinator) rollback(req Request, result types.MemorySyncResult) {
	logging.SyncWarn("session %s turn %d: sync PARTIAL, rollback is log-only (updated=%v, %d error(s))",
		req.Turn.SessionID, req.Turn.Number, result.UpdatedBlockIDs, len(result.Errors))
	for _, err := range result.Errors {
		logging.SyncWarn("session %s turn %d: sync error: %v", req.Turn.SessionID, req.Turn.Number, err)
	}
}
