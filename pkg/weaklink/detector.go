package weaklink

import (
	"math"
	"sort"
)

// Config holds the immutable tuning constants for a Detector.
type Config struct {
	EWMAAlpha float64 // weight of the newest sample in the EWMA (default 0.2)
	CUSUMK    float64 // CUSUM slack (default 0.3)
	CUSUMH    float64 // CUSUM decision threshold (default 1.2)
	GateRatio float64 // EWMA-below-baseline gate ratio (default 0.5)
	FuseAlpha float64 // fused-score weight on -zSpeed (default 0.7)
	FuseGamma float64 // fused-score weight on failRate (default 0.3)
	WinSize   int     // failure-window capacity (default 20)
	WarmupMin int     // minimum samples before a verdict can be weak (default 10)

	// HistoryCap bounds the retained speed history to the last N samples.
	// Must be >= 4*WarmupMin to keep baseline semantics intact; 0 means
	// "compute a default from WarmupMin".
	HistoryCap int
}

// DefaultConfig returns the default tuning constants.
func DefaultConfig() Config {
	return Config{
		EWMAAlpha: 0.2,
		CUSUMK:    0.3,
		CUSUMH:    1.2,
		GateRatio: 0.5,
		FuseAlpha: 0.7,
		FuseGamma: 0.3,
		WinSize:   20,
		WarmupMin: 10,
	}
}

func (c Config) historyCap() int {
	if c.HistoryCap > 0 {
		return c.HistoryCap
	}
	cap := 4 * c.WarmupMin
	if cap < 200 {
		cap = 200
	}
	return cap
}

// Verdict is the result of feeding one sample to a Detector.
type Verdict struct {
	IsWeak     bool
	Confidence float64
}

// Detector is a single-owner EWMA/CUSUM/failure-rate classifier. It must
// not be shared across goroutines without external synchronization.
type Detector struct {
	cfg Config

	ewma       float64
	history    []float64
	failWindow []int
	cusumPos   float64
	cusumNeg   float64
}

// New creates a Detector with the given configuration.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Reset restores the Detector to its initial state, preserving its Config.
func (d *Detector) Reset() {
	d.ewma = 0
	d.history = nil
	d.failWindow = nil
	d.cusumPos = 0
	d.cusumNeg = 0
}

const safeDivEps = 1e-3

// safeDiv divides a by b, treating |b| < eps as signed eps.
func safeDiv(a, b float64) float64 {
	if math.Abs(b) < safeDivEps {
		if b < 0 {
			return a / -safeDivEps
		}
		return a / safeDivEps
	}
	return a / b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Feed processes one sample (speedKBps, ok) and returns the fused verdict.
// NaN and negative speeds are treated as zero.
func (d *Detector) Feed(speedKBps float64, ok bool) Verdict {
	v := speedKBps
	if math.IsNaN(v) || v < 0 {
		v = 0
	}

	// 1. EWMA update.
	if len(d.history) == 0 {
		d.ewma = v
	} else {
		d.ewma = d.cfg.EWMAAlpha*v + (1-d.cfg.EWMAAlpha)*d.ewma
	}
	d.history = append(d.history, v)
	if cap := d.cfg.historyCap(); len(d.history) > cap {
		d.history = d.history[len(d.history)-cap:]
	}

	// 2. Failure window.
	flag := 0
	if !ok {
		flag = 1
	}
	d.failWindow = append(d.failWindow, flag)
	if len(d.failWindow) > d.cfg.WinSize {
		d.failWindow = d.failWindow[len(d.failWindow)-d.cfg.WinSize:]
	}
	failRate := meanInt(d.failWindow)

	// 3. Baseline: mean of the lowest 25% of the reference history. The
	// reference excludes the samples still inside the failure window so a
	// degradation episode cannot pollute its own baseline; while history
	// is shorter than the window, the warm-up prefix serves as reference.
	baseRaw := lowQuartileMean(d.baselineRef())
	base := baseRaw
	if base <= 0 {
		if v > 0 {
			base = v
		} else {
			base = 1e-3
		}
	}

	// 4. Relative change.
	x := safeDiv(v-base, math.Max(1e-3, base))

	// 5. CUSUM.
	d.cusumPos = math.Max(0, d.cusumPos+x-d.cfg.CUSUMK)
	d.cusumNeg = math.Min(0, d.cusumNeg+x+d.cfg.CUSUMK)
	change := d.cusumPos > d.cfg.CUSUMH || math.Abs(d.cusumNeg) > d.cfg.CUSUMH

	// 6. Fused score.
	zSpeed := x
	score := d.cfg.FuseAlpha*(-zSpeed) + d.cfg.FuseGamma*failRate
	weakByScore := score > 0.5

	// 7. Gate.
	gate := d.ewma < d.cfg.GateRatio*base

	// 8. Warm-up.
	enough := len(d.history) >= maxInt(3, d.cfg.WarmupMin)

	// 9. Verdict.
	isWeak := enough && change && weakByScore && gate

	// 10. Confidence.
	confDrop := 0.0
	if base > 0 {
		confDrop = clamp01((base - d.ewma) / base)
	}
	cusumMag := clamp01(math.Max(d.cusumPos, math.Abs(d.cusumNeg)) / (2 * d.cfg.CUSUMH))
	confidence := clamp01(0.45*confDrop + 0.35*failRate + 0.20*cusumMag)

	// 11. Hysteresis.
	if isWeak {
		d.cusumPos *= 0.25
		d.cusumNeg *= 0.25
	}

	return Verdict{IsWeak: isWeak, Confidence: confidence}
}

// baselineRef returns the slice of history the baseline is computed over:
// everything older than the failure window, or the oldest WarmupMin
// samples when history has not yet outgrown the window.
func (d *Detector) baselineRef() []float64 {
	if n := len(d.history) - d.cfg.WinSize; n > 0 {
		return d.history[:n]
	}
	ref := d.history
	if wm := maxInt(1, d.cfg.WarmupMin); len(ref) > wm {
		ref = ref[:wm]
	}
	return ref
}

func meanInt(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}

func lowQuartileMean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	n := int(math.Ceil(float64(len(sorted)) * 0.25))
	if n < 1 {
		n = 1
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += sorted[i]
	}
	return sum / float64(n)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
