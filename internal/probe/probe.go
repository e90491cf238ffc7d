package probe

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ligustah/batchdl/internal/metrics"
	"github.com/ligustah/batchdl/internal/netx"
)

// Snapshot reports accumulated probe overhead.
type Snapshot struct {
	Count  int64 `json:"count"`
	CostMs int64 `json:"costMs"`
}

// Probe issues minimum-cost 1-byte Range GETs on a configurable cadence.
// Errors are swallowed: a probe must never impair the batch it observes.
type Probe struct {
	client     *netx.Client
	everyN     int
	scratchDir string

	mu        sync.Mutex
	fastUntil time.Time

	count  atomic.Int64
	costMs atomic.Int64
}

// New creates a Probe that probes whenever the index passed to MaybeProbe
// is a multiple of everyN, using scratchDir for best-effort scratch files
// (everyN<2 is clamped to 2).
func New(client *netx.Client, everyN int, scratchDir string) *Probe {
	if everyN < 2 {
		everyN = 2
	}
	return &Probe{client: client, everyN: everyN, scratchDir: scratchDir}
}

// MaybeProbe issues a probe if index falls on the current effective
// cadence, halved while a boost window (see BoostShort) is active. It
// reports whether a probe was actually issued.
func (p *Probe) MaybeProbe(ctx context.Context, index int, sampleURL string) bool {
	n := p.everyN
	p.mu.Lock()
	boosted := time.Now().Before(p.fastUntil)
	p.mu.Unlock()
	if boosted {
		n = n / 2
		if n < 2 {
			n = 2
		}
	}

	if index%n != 0 {
		return false
	}

	p.run(ctx, sampleURL)
	return true
}

func (p *Probe) run(ctx context.Context, sampleURL string) {
	scratch := filepath.Join(p.scratchDir, fmt.Sprintf("probe-%d.tmp", time.Now().UnixNano()))
	os.Remove(scratch)
	defer os.Remove(scratch)

	start := time.Now()
	result, err := p.client.Probe(ctx, sampleURL)
	if err != nil {
		elapsed := time.Since(start)
		p.count.Add(1)
		p.costMs.Add(elapsed.Milliseconds())
		metrics.ProbesTotal.Inc()
		metrics.ProbeCostSeconds.Add(elapsed.Seconds())
		return
	}
	defer result.Body.Close()

	if f, ferr := os.Create(scratch); ferr == nil {
		io.Copy(f, result.Body)
		f.Close()
	} else {
		io.Copy(io.Discard, result.Body)
	}

	elapsed := time.Since(start)
	p.count.Add(1)
	p.costMs.Add(elapsed.Milliseconds())
	metrics.ProbesTotal.Inc()
	metrics.ProbeCostSeconds.Add(elapsed.Seconds())
}

// BoostShort extends the fast-cadence window to at least d from now.
func (p *Probe) BoostShort(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	until := time.Now().Add(d)
	if until.After(p.fastUntil) {
		p.fastUntil = until
	}
}

// Snapshot reports the accumulated probe count and cost in milliseconds.
func (p *Probe) Snapshot() Snapshot {
	return Snapshot{Count: p.count.Load(), CostMs: p.costMs.Load()}
}
