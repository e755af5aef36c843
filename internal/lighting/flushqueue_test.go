package lighting_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/taikolights/internal/lighting"
)

func waitErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("flush callback never ran")
		return nil
	}
}

func TestFlushQueue_NewestFrameWins(t *testing.T) {
	var (
		mu      sync.Mutex
		batches []map[lighting.DeviceID]int
	)
	started := make(chan struct{}, 4)
	release := make(chan struct{})

	q := lighting.NewFlushQueue(func(batch map[lighting.DeviceID]int) error {
		mu.Lock()
		batches = append(batches, batch)
		first := len(batches) == 1
		mu.Unlock()
		started <- struct{}{}
		if first {
			<-release
		}
		return nil
	})
	defer q.Close()

	results := make(chan error, 3)
	done := func(err error) { results <- err }

	q.Submit(map[lighting.DeviceID]int{"a": 1}, done)
	<-started

	// Queued while the first send is in flight.
	q.Submit(map[lighting.DeviceID]int{"a": 2, "b": 2}, done)
	q.Submit(map[lighting.DeviceID]int{"a": 3}, done)
	close(release)

	for i := 0; i < 3; i++ {
		require.NoError(t, waitErr(t, results))
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, batches, 2)
	assert.Equal(t, map[lighting.DeviceID]int{"a": 1}, batches[0])
	assert.Equal(t, map[lighting.DeviceID]int{"a": 3, "b": 2}, batches[1])
}

func TestFlushQueue_SendsInSubmitOrder(t *testing.T) {
	var (
		mu   sync.Mutex
		last = map[lighting.DeviceID]int{}
	)
	q := lighting.NewFlushQueue(func(batch map[lighting.DeviceID]int) error {
		mu.Lock()
		defer mu.Unlock()
		for id, v := range batch {
			last[id] = v
		}
		return nil
	})
	defer q.Close()

	const n = 200
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 1; i <= n; i++ {
		q.Submit(map[lighting.DeviceID]int{"a": i, "b": -i}, func(error) { wg.Done() })
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, n, last["a"])
	assert.Equal(t, -n, last["b"])
}

func TestFlushQueue_Results(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		sendErr error
		frames  map[lighting.DeviceID]int
		wantErr error
	}{
		{"success", nil, map[lighting.DeviceID]int{"a": 1}, nil},
		{"send error", boom, map[lighting.DeviceID]int{"a": 1}, boom},
		{"empty batch", nil, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := lighting.NewFlushQueue(func(map[lighting.DeviceID]int) error { return tt.sendErr })
			defer q.Close()

			results := make(chan error, 1)
			q.Submit(tt.frames, func(err error) { results <- err })
			assert.ErrorIs(t, waitErr(t, results), tt.wantErr)
		})
	}
}

func TestFlushQueue_SubmitAfterClose(t *testing.T) {
	q := lighting.NewFlushQueue(func(map[lighting.DeviceID]int) error { return nil })
	q.Close()
	q.Close()

	results := make(chan error, 1)
	q.Submit(map[lighting.DeviceID]int{"a": 1}, func(err error) { results <- err })
	assert.True(t, lighting.IsNotConnected(waitErr(t, results)))

	// A nil callback is allowed.
	q.Submit(map[lighting.DeviceID]int{"a": 1}, nil)
}
