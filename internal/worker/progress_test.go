package worker

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/patternpreview/internal/pattern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(name string, elapsed time.Duration, err error) Result {
	return Result{
		Task:    Task{Colorway: pattern.Colorway{Name: name}},
		Elapsed: elapsed,
		Err:     err,
	}
}

// fixedClock makes elapsed time deterministic.
func fixedClock(p *Progress, elapsed time.Duration) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.start = start
	p.now = func() time.Time { return start.Add(elapsed) }
}

func TestProgressLineShowsLastColorway(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(4, true)
	p.out = &buf
	fixedClock(p, 10*time.Second)

	p.Observe(result("Dusk", time.Second, nil), 1, 4)
	p.Observe(result("Sea Glass", time.Second, errors.New("boom")), 2, 4)

	lines := strings.Split(buf.String(), "\r")
	last := lines[len(lines)-1]
	assert.Contains(t, last, "[############............] 2/4")
	assert.Contains(t, last, "1 failed")
	assert.Contains(t, last, "eta 10s")
	assert.Contains(t, last, "Sea Glass")
}

func TestProgressSummaryNamesFailures(t *testing.T) {
	p := NewProgress(3, false)
	fixedClock(p, 4*time.Second)

	p.Observe(result("Dusk", 300*time.Millisecond, nil), 1, 3)
	p.Observe(result("Noon", 900*time.Millisecond, nil), 2, 3)
	p.Observe(result("Ember", 2*time.Second, errors.New("decode failed")), 3, 3)

	assert.Equal(t, []string{"Ember"}, p.Failed())
	assert.Equal(t, `Rendered 2 of 3 colorways in 4s; slowest "Noon" took 900ms; failed: Ember`, p.Summary())
}

func TestProgressSummaryWithoutFailures(t *testing.T) {
	p := NewProgress(1, false)
	fixedClock(p, time.Second)

	p.Observe(result("Dusk", 250*time.Millisecond, nil), 1, 1)

	assert.NotContains(t, p.Summary(), "failed")
	assert.Empty(t, p.Failed())
}

func TestProgressDisabledWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(2, false)
	p.out = &buf

	p.Observe(result("Dusk", time.Second, nil), 1, 2)
	p.Done()

	assert.Zero(t, buf.Len())
}

func TestProgressDoneEndsLine(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(1, true)
	p.out = &buf

	p.Observe(result("Dusk", time.Second, nil), 1, 1)
	buf.Reset()
	p.Done()

	out := buf.String()
	assert.Contains(t, out, "[########################] 1/1")
	assert.NotContains(t, out, "eta")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestProgressZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(0, true)
	p.out = &buf

	p.Done()
	assert.Contains(t, buf.String(), "0/0")
}

func TestProgressFromPool(t *testing.T) {
	p := NewProgress(3, false)
	pool := New(Config{
		Workers:    2,
		Renderer:   &mockRenderer{fail: map[string]bool{"b": true}},
		OnProgress: p.Callback(),
	})

	results := pool.Run(t.Context(), Tasks(colorways("a", "b", "c")))
	require.Len(t, results, 3)

	assert.Equal(t, []string{"b"}, p.Failed())
	assert.Contains(t, p.Summary(), "Rendered 2 of 3 colorways")
}
