package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Tech/patternpreview/internal/pattern"
)

// mockRenderer simulates colorway rendering for testing
type mockRenderer struct {
	delay     time.Duration
	fail      map[string]bool // colorways that should fail
	callCount atomic.Int32
}

func (m *mockRenderer) RenderColorway(ctx context.Context, cw pattern.Colorway) (string, error) {
	m.callCount.Add(1)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(m.delay):
	}

	if m.fail != nil && m.fail[cw.Name] {
		return "", errors.New("simulated failure")
	}

	return "/tmp/" + cw.Slug() + ".png", nil
}

func colorways(names ...string) []pattern.Colorway {
	out := make([]pattern.Colorway, len(names))
	for i, n := range names {
		out[i] = pattern.Colorway{Name: n, Colors: []string{"white", "black"}}
	}
	return out
}

func TestPool_BasicExecution(t *testing.T) {
	r := &mockRenderer{delay: 10 * time.Millisecond}

	pool := New(Config{
		Workers:  2,
		Renderer: r,
	})

	tasks := Tasks(colorways("Dawn", "Dusk", "Night"))
	results := pool.Run(context.Background(), tasks)

	if len(results) != len(tasks) {
		t.Fatalf("Expected %d results, got %d", len(tasks), len(results))
	}

	for i, res := range results {
		if res.Err != nil {
			t.Errorf("Unexpected error for %s: %v", res.Task.Colorway.Name, res.Err)
		}
		if res.Task.Index != i {
			t.Errorf("Expected results in input order, got index %d at %d", res.Task.Index, i)
		}
	}

	if results[1].Output != "/tmp/dusk.png" {
		t.Errorf("Unexpected output %q", results[1].Output)
	}

	if r.callCount.Load() != int32(len(tasks)) {
		t.Errorf("Expected %d render calls, got %d", len(tasks), r.callCount.Load())
	}
}

func TestPool_Parallelism(t *testing.T) {
	r := &mockRenderer{delay: 50 * time.Millisecond}

	pool := New(Config{
		Workers:  4,
		Renderer: r,
	})

	tasks := Tasks(colorways("a", "b", "c", "d", "e", "f", "g", "h"))

	start := time.Now()
	results := pool.Run(context.Background(), tasks)
	elapsed := time.Since(start)

	// 4 workers, 8 tasks of 50ms: two rounds
	if elapsed > 200*time.Millisecond {
		t.Errorf("Expected parallel execution in ~100ms, took %v", elapsed)
	}

	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}
}

func TestPool_ErrorHandling(t *testing.T) {
	r := &mockRenderer{
		delay: 10 * time.Millisecond,
		fail:  map[string]bool{"Dusk": true},
	}

	pool := New(Config{
		Workers:  2,
		Renderer: r,
	})

	results := pool.Run(context.Background(), Tasks(colorways("Dawn", "Dusk", "Night")))

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}

	var failCount int
	for _, res := range results {
		if res.Err != nil {
			failCount++
			if res.Task.Colorway.Name != "Dusk" {
				t.Errorf("Unexpected failure for %s", res.Task.Colorway.Name)
			}
		}
	}

	if failCount != 1 {
		t.Errorf("Expected 1 failure, got %d", failCount)
	}
}

func TestPool_Cancellation(t *testing.T) {
	r := &mockRenderer{delay: 100 * time.Millisecond}

	pool := New(Config{
		Workers:  2,
		Renderer: r,
	})

	tasks := Tasks(colorways("a", "b", "c", "d", "e", "f", "g", "h", "i", "j"))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	results := pool.Run(ctx, tasks)
	elapsed := time.Since(start)

	if elapsed > 200*time.Millisecond {
		t.Errorf("Expected early cancellation, took %v", elapsed)
	}

	var cancelled int
	for _, res := range results {
		if errors.Is(res.Err, context.Canceled) {
			cancelled++
		}
	}
	if cancelled == 0 {
		t.Error("Expected at least one cancelled result")
	}
}

func TestPool_ProgressCallback(t *testing.T) {
	r := &mockRenderer{delay: 10 * time.Millisecond}

	var progressCalls atomic.Int32
	var lastCompleted, lastTotal int
	seen := map[string]bool{}

	pool := New(Config{
		Workers:  2,
		Renderer: r,
		OnProgress: func(res Result, completed, total int) {
			progressCalls.Add(1)
			lastCompleted = completed
			lastTotal = total
			seen[res.Task.Colorway.Name] = true
		},
	})

	pool.Run(context.Background(), Tasks(colorways("a", "b", "c")))

	if len(seen) != 3 {
		t.Errorf("Expected a result for each colorway, got %v", seen)
	}

	if progressCalls.Load() != 3 {
		t.Errorf("Expected 3 progress callbacks, got %d", progressCalls.Load())
	}
	if lastCompleted != 3 || lastTotal != 3 {
		t.Errorf("Expected final progress 3/3, got %d/%d", lastCompleted, lastTotal)
	}
}

func TestPool_EmptyTasks(t *testing.T) {
	r := &mockRenderer{}

	pool := New(Config{
		Workers:  2,
		Renderer: r,
	})

	results := pool.Run(context.Background(), nil)

	if len(results) != 0 {
		t.Errorf("Expected 0 results for empty tasks, got %d", len(results))
	}
	if r.callCount.Load() != 0 {
		t.Errorf("Expected 0 render calls, got %d", r.callCount.Load())
	}
}
