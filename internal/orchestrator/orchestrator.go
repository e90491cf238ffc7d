package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ligustah/batchdl/internal/linkprovider"
	"github.com/ligustah/batchdl/internal/metrics"
	"github.com/ligustah/batchdl/internal/netx"
	"github.com/ligustah/batchdl/internal/probe"
	"github.com/ligustah/batchdl/internal/transfer"
	"github.com/ligustah/batchdl/pkg/taskpool"
	"github.com/ligustah/batchdl/pkg/weaklink"
)

// Mode selects whether the batch may migrate links mid-run.
type Mode string

const (
	WifiOnly   Mode = "WIFI_ONLY"
	AutoSwitch Mode = "AUTO_SWITCH"
)

// MigrationState tracks the batch-scoped migration lifecycle.
type MigrationState int

const (
	Normal MigrationState = iota
	Draining
	Switched
)

// ErrInvalidConfig is returned for batch-entry configuration faults.
var ErrInvalidConfig = errors.New("orchestrator: invalid configuration")

// Default pool concurrency tiers, used when Options does not override
// them.
const (
	defaultConcBefore = 3
	defaultConcWeak   = 2
	defaultConcAfter  = 8
)

// SmallFilePredicate tags a URL as small (high priority) or large. index
// is the URL's zero-based enqueue position.
type SmallFilePredicate func(url string, index int) bool

var imgIndexPattern = regexp.MustCompile(`^img_(\d+)\.jpg$`)

// DefaultSmallFilePredicate implements the workload-specific heuristic: a
// URL is small iff its basename contains "thumb", "_s", "_small", ends in
// "_128.jpg", or matches img_DDD.jpg with DDD <= 16.
func DefaultSmallFilePredicate(url string, index int) bool {
	base := path.Base(url)
	if strings.Contains(base, "thumb") || strings.Contains(base, "_small") || strings.Contains(base, "_s") {
		return true
	}
	if strings.HasSuffix(base, "_128.jpg") {
		return true
	}
	if m := imgIndexPattern.FindStringSubmatch(base); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n <= 16 {
			return true
		}
	}
	return false
}

// PerFile is one URL's outcome in the batch result.
type PerFile struct {
	URL       string  `json:"url"`
	T         float64 `json:"t"`
	Bytes     int64   `json:"bytes"`
	Path      string  `json:"path"`
	UsedRange bool    `json:"used_range"`
	Retried   bool    `json:"retried"`
}

// SchedulerCounts reports how many per-URL completions were recorded
// under each concurrency tier.
type SchedulerCounts struct {
	Before int `json:"before"`
	Weak   int `json:"weak"`
	After  int `json:"after"`
}

// Result is the orchestrator's output for one batch.
type Result struct {
	WallTimeS       float64         `json:"wallTime"`
	PausedMs        int64           `json:"pausedMs"`
	TotalTimeS      float64         `json:"totalTime"`
	TotalBytes      int64           `json:"totalBytes"`
	PerFile         []PerFile       `json:"perFile"`
	WeakDetectIndex int             `json:"weak_detect_index"`
	SwitchTriggerTs int64           `json:"switch_trigger_ts"`
	Scheduler       SchedulerCounts `json:"scheduler"`
	Probes          probe.Snapshot  `json:"probes"`
}

// Options configures a batch run.
type Options struct {
	BaseURL string
	Count   int
	Mode    Mode

	DestDir     string
	ProbeEveryN int

	// Pool concurrency tiers. Zero means "use the default" (see
	// defaultConcBefore/defaultConcWeak/defaultConcAfter).
	ConcBefore int
	ConcWeak   int
	ConcAfter  int

	Client       *netx.Client
	LinkProvider linkprovider.Provider
	Detector     weaklink.Config

	SmallFilePredicate SmallFilePredicate
	Logger             *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.ProbeEveryN <= 0 {
		o.ProbeEveryN = 10
	}
	if o.ConcBefore <= 0 {
		o.ConcBefore = defaultConcBefore
	}
	if o.ConcWeak <= 0 {
		o.ConcWeak = defaultConcWeak
	}
	if o.ConcAfter <= 0 {
		o.ConcAfter = defaultConcAfter
	}
	if o.Detector == (weaklink.Config{}) {
		o.Detector = weaklink.DefaultConfig()
	}
	if o.Client == nil {
		o.Client = netx.NewClient(netx.DefaultOptions())
	}
	if o.LinkProvider == nil {
		o.LinkProvider = linkprovider.NewHeadless(1)
	}
	if o.SmallFilePredicate == nil {
		o.SmallFilePredicate = DefaultSmallFilePredicate
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.DestDir == "" {
		o.DestDir = "."
	}
}

// Orchestrator runs batches of URL-to-file transfers with optional
// weak-link-triggered migration between links.
type Orchestrator struct {
	opts Options
}

// New creates an Orchestrator with the given options.
func New(opts Options) *Orchestrator {
	opts.applyDefaults()
	return &Orchestrator{opts: opts}
}

// RunBatch executes one batch to completion. Per-URL failures never
// surface here; configuration faults do, as do a canceled ctx and a task
// panic reported by the pool.
func (o *Orchestrator) RunBatch(ctx context.Context) (Result, error) {
	if o.opts.Count <= 0 {
		return Result{}, fmt.Errorf("%w: count must be positive, got %d", ErrInvalidConfig, o.opts.Count)
	}
	if o.opts.Mode != WifiOnly && o.opts.Mode != AutoSwitch {
		return Result{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, o.opts.Mode)
	}

	wallStart := time.Now()
	base := strings.TrimSuffix(o.opts.BaseURL, "/")
	urls := make([]string, o.opts.Count)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/img_%03d.jpg", base, i+1)
	}

	b := &batch{
		opts:            o.opts,
		pool:            taskpool.New(o.opts.ConcBefore),
		detector:        weaklink.New(o.opts.Detector),
		lightProbe:      probe.New(o.opts.Client, o.opts.ProbeEveryN, o.opts.DestDir),
		perFile:         make([]PerFile, len(urls)),
		state:           Normal,
		promptsLeft:     1,
		weakDetectIndex: -1,
	}

	for i, url := range urls {
		idx, u := i, url
		small := o.opts.SmallFilePredicate(u, idx)
		b.pool.Push(func() { b.runURL(ctx, idx, u, small) }, small)
	}

	if err := b.pool.Idle(ctx); err != nil {
		return Result{}, fmt.Errorf("orchestrator: await idle: %w", err)
	}

	wallTime := time.Since(wallStart).Seconds()
	pausedMs := b.pausedMs.Load()
	totalTime := wallTime - float64(pausedMs)/1000.0
	if totalTime < 0 {
		totalTime = 0
	}

	return Result{
		WallTimeS:       wallTime,
		PausedMs:        pausedMs,
		TotalTimeS:      totalTime,
		TotalBytes:      b.totalBytes.Load(),
		PerFile:         b.perFile,
		WeakDetectIndex: b.weakDetectIndex,
		SwitchTriggerTs: b.switchTriggerTs.Load(),
		Scheduler: SchedulerCounts{
			Before: int(b.schedBefore.Load()),
			Weak:   int(b.schedWeak.Load()),
			After:  int(b.schedAfter.Load()),
		},
		Probes: b.lightProbe.Snapshot(),
	}, nil
}

// batch holds the mutable state of one in-flight RunBatch call.
type batch struct {
	opts       Options
	pool       *taskpool.Pool
	lightProbe *probe.Probe

	detMu    sync.Mutex
	detector *weaklink.Detector

	stateMu         sync.Mutex
	state           MigrationState
	promptsLeft     int
	weakDetectIndex int

	pausedMs        atomic.Int64
	switchTriggerTs atomic.Int64
	totalBytes      atomic.Int64
	schedBefore     atomic.Int32
	schedWeak       atomic.Int32
	schedAfter      atomic.Int32

	mu      sync.Mutex
	perFile []PerFile
}

func (b *batch) runURL(ctx context.Context, idx int, url string, small bool) {
	b.lightProbe.MaybeProbe(ctx, idx+1, url)

	dst := filepath.Join(b.opts.DestDir, path.Base(url))
	t0 := time.Now()
	rec, err := transfer.Transfer(ctx, b.opts.Client, url, dst)
	elapsed := time.Since(t0).Seconds()

	b.stateMu.Lock()
	currentState := b.state
	b.stateMu.Unlock()

	currentPath := "wifi"
	if currentState == Switched {
		currentPath = "cell"
	}
	b.recordScheduler(currentState)

	var verdict weaklink.Verdict
	if err != nil {
		b.opts.Logger.Warn("transfer failed", "url", url, "error", err)
		b.setPerFile(idx, PerFile{URL: url, T: -1, Bytes: 0, Path: currentPath})
		b.detMu.Lock()
		verdict = b.detector.Feed(0, false)
		b.detMu.Unlock()
		metrics.TransfersTotal.WithLabelValues("failure").Inc()
		metrics.TransferDuration.WithLabelValues("failure").Observe(elapsed)
	} else {
		b.setPerFile(idx, PerFile{
			URL:       url,
			T:         rec.ElapsedS,
			Bytes:     rec.BytesWritten,
			Path:      currentPath,
			UsedRange: rec.UsedRange,
			Retried:   rec.Retried,
		})
		b.totalBytes.Add(rec.BytesWritten)
		speed := float64(rec.BytesWritten) / 1024.0 / math.Max(0.001, elapsed)
		b.detMu.Lock()
		verdict = b.detector.Feed(speed, true)
		b.detMu.Unlock()
		metrics.TransfersTotal.WithLabelValues("success").Inc()
		metrics.TransferBytesTotal.WithLabelValues(currentPath).Add(float64(rec.BytesWritten))
		metrics.TransferDuration.WithLabelValues("success").Observe(rec.ElapsedS)
	}

	metrics.DetectorVerdictsTotal.WithLabelValues(strconv.FormatBool(verdict.IsWeak)).Inc()
	metrics.DetectorConfidence.WithLabelValues(strconv.FormatBool(verdict.IsWeak)).Observe(verdict.Confidence)

	snap := b.pool.Snapshot()
	metrics.PoolRunning.Set(float64(snap.Running))
	metrics.PoolQueueDepth.WithLabelValues("small").Set(float64(snap.SmallQ))
	metrics.PoolQueueDepth.WithLabelValues("large").Set(float64(snap.LargeQ))
	metrics.PoolLimit.Set(float64(snap.Limit))

	if b.opts.Mode != AutoSwitch || !verdict.IsWeak {
		return
	}

	triggered := false
	b.stateMu.Lock()
	if b.state == Normal && b.promptsLeft > 0 {
		b.state = Draining
		b.weakDetectIndex = idx
		triggered = true
	}
	b.stateMu.Unlock()

	if triggered {
		b.opts.Logger.Info("weak link detected, starting migration", "url", url, "confidence", verdict.Confidence)
		metrics.MigrationTransitionsTotal.WithLabelValues("draining").Inc()
		b.migrate(ctx, verdict.Confidence)
	}
}

func (b *batch) recordScheduler(state MigrationState) {
	switch state {
	case Normal:
		b.schedBefore.Add(1)
	case Draining:
		b.schedWeak.Add(1)
	case Switched:
		b.schedAfter.Add(1)
	}
}

func (b *batch) setPerFile(idx int, pf PerFile) {
	b.mu.Lock()
	b.perFile[idx] = pf
	b.mu.Unlock()
}

// migrate drives the staged migration protocol: drain small
// work at a reduced limit, prompt the link provider, wait for the active
// network to change, then resume at the elevated post-switch limit.
func (b *batch) migrate(ctx context.Context, confidence float64) {
	if confidence >= 0.5 {
		b.lightProbe.BoostShort(15 * time.Second)
	}

	b.pool.SetLimit(b.opts.ConcWeak)

	drainTicker := time.NewTicker(100 * time.Millisecond)
	for {
		snap := b.pool.Snapshot()
		if snap.SmallQ == 0 && snap.Running <= b.opts.ConcWeak {
			break
		}
		select {
		case <-ctx.Done():
			drainTicker.Stop()
			return
		case <-drainTicker.C:
		}
	}
	drainTicker.Stop()

	prevNetID, _ := b.opts.LinkProvider.DefaultNetID(ctx)
	pauseStart := time.Now()

	b.opts.LinkProvider.OpenLinkSettings(ctx)

	deadline := time.Now().Add(120 * time.Second)
	pollTicker := time.NewTicker(time.Second)
	for {
		select {
		case <-ctx.Done():
			pollTicker.Stop()
			return
		case <-pollTicker.C:
		}
		netID, _ := b.opts.LinkProvider.DefaultNetID(ctx)
		if netID != prevNetID || !time.Now().Before(deadline) {
			break
		}
	}
	pollTicker.Stop()

	pauseDuration := time.Since(pauseStart)
	b.pausedMs.Add(pauseDuration.Milliseconds())
	metrics.MigrationPauseSeconds.Observe(pauseDuration.Seconds())

	b.stateMu.Lock()
	b.state = Switched
	b.promptsLeft--
	b.stateMu.Unlock()
	b.switchTriggerTs.Store(time.Now().UnixMilli())
	metrics.MigrationTransitionsTotal.WithLabelValues("switched").Inc()

	b.pool.SetLimit(b.opts.ConcAfter)
	b.opts.Logger.Info("migration complete")
}
