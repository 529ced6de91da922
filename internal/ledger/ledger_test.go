package ledger

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caremind/internal/types"
)

func TestAppend_GaplessNumbering(t *testing.T) {
	l := New(nil)
	require.NoError(t, l.Open("s1", "u1"))

	for i := 1; i <= 5; i++ {
		turn, err := l.Append("s1", fmt.Sprintf("message %d", i), "", "")
		require.NoError(t, err)
		assert.Equal(t, i, turn.Number)
	}

	history, err := l.History("s1")
	require.NoError(t, err)
	assert.Equal(t, 5, history.TotalTurns)
	assert.Len(t, history.Turns, history.TotalTurns)
}

func TestAppend_ConcurrentCallersNeverShareANumber(t *testing.T) {
	l := New(nil)
	require.NoError(t, l.Open("s1", "u1"))

	const n = 100
	var wg sync.WaitGroup
	numbers := make(chan int, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			turn, err := l.Append("s1", "m", "", "")
			if err == nil {
				numbers <- turn.Number
			}
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[int]bool)
	count := 0
	for num := range numbers {
		assert.False(t, seen[num], "turn number %d assigned twice", num)
		seen[num] = true
		count++
	}
	require.Equal(t, n, count)
	for i := 1; i <= n; i++ {
		assert.True(t, seen[i], "turn number %d missing: sequence has a gap", i)
	}
}

func TestComplete_WriteOnce(t *testing.T) {
	l := New(nil)
	require.NoError(t, l.Open("s1", "u1"))

	turn, err := l.Append("s1", "hello", "", "")
	require.NoError(t, err)

	quality := &types.QualityMetadata{Quality: 0.9}
	enrichment := &types.ContextEnrichmentResult{Confidence: 0.8}
	require.NoError(t, l.Complete("s1", turn.Number, "hi", quality, enrichment))

	err = l.Complete("s1", turn.Number, "hi again", quality, enrichment)
	var consistency *types.ConsistencyError
	require.ErrorAs(t, err, &consistency)

	turns, err := l.Turns("s1")
	require.NoError(t, err)
	assert.Equal(t, "hi", turns[0].AgentResponse, "first write must stand")
}

func TestComplete_UnknownTurn(t *testing.T) {
	l := New(nil)
	require.NoError(t, l.Open("s1", "u1"))

	err := l.Complete("s1", 7, "x", nil, nil)
	var validation *types.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestOpen_Duplicate(t *testing.T) {
	l := New(nil)
	require.NoError(t, l.Open("s1", "u1"))

	err := l.Open("s1", "u1")
	var consistency *types.ConsistencyError
	assert.ErrorAs(t, err, &consistency)
}

func TestLookups_UnknownSession(t *testing.T) {
	l := New(nil)

	_, err := l.Turns("missing")
	var validation *types.ValidationError
	assert.True(t, errors.As(err, &validation))

	_, err = l.History("missing")
	assert.Error(t, err)

	_, err = l.Append("missing", "m", "", "")
	assert.Error(t, err)
}

func TestHistory_SnapshotIsACopy(t *testing.T) {
	l := New(nil)
	require.NoError(t, l.Open("s1", "u1"))
	_, err := l.Append("s1", "original", "", "")
	require.NoError(t, err)

	history, err := l.History("s1")
	require.NoError(t, err)
	history.Turns[0].UserMessage = "mutated"

	fresh, err := l.History("s1")
	require.NoError(t, err)
	assert.Equal(t, "original", fresh.Turns[0].UserMessage)
}

func TestRemove(t *testing.T) {
	l := New(nil)
	require.NoError(t, l.Open("s1", "u1"))
	l.Remove("s1")

	_, err := l.History("s1")
	assert.Error(t, err)
}
