package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mshroom/RecordManager/internal/record"
)

func TestSyncPoolIsTransparent(t *testing.T) {
	p := New[int, int]("sync", 0, 0, func(i int) int { return i * 2 }, nil)

	for i := 1; i <= 5; i++ {
		require.NoError(t, p.AddRequest(i))
	}

	assert.Equal(t, []int{2, 4, 6, 8, 10}, p.Results())
}

func TestParallelPoolProcessesAllSubmissions(t *testing.T) {
	p := New[int, int]("par", 4, 8, func(i int) int { return i * i }, nil)

	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, p.AddRequest(i))
	}
	require.NoError(t, p.WaitUntilDone())

	results := p.Results()
	require.Len(t, results, n)

	seen := make(map[int]bool, n)
	for _, r := range results {
		seen[r] = true
	}
	for i := 0; i < n; i++ {
		assert.True(t, seen[i*i], "missing square for %d", i)
	}
}

func TestWorkerCrashSurfacesWorkerDied(t *testing.T) {
	p := New[int, int]("crash", 4, 8, func(i int) int {
		if i == 5 {
			panic("simulated worker crash")
		}
		return i
	}, nil)

	var lastErr error
	deadline := time.Now().Add(2 * time.Second)
	for i := 0; i < 10; i++ {
		if err := p.AddRequest(i); err != nil {
			lastErr = err
			break
		}
	}
	for lastErr == nil && time.Now().Before(deadline) {
		lastErr = p.WaitUntilDone()
		if lastErr != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
		lastErr = p.handleRequests()
	}

	require.Error(t, lastErr)
	var died *record.WorkerDiedError
	assert.ErrorAs(t, lastErr, &died)
	assert.Equal(t, 2, died.Code)
}

func TestDestroyClosesAllWorkerChannels(t *testing.T) {
	p := New[int, int]("teardown", 3, 8, func(i int) int { return i }, nil)
	require.NoError(t, p.AddRequest(1))
	require.NoError(t, p.Destroy())
	assert.Empty(t, p.pending)
}
