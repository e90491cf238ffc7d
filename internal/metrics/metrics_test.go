package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	TransfersTotal.WithLabelValues("success").Inc()
	TransferBytesTotal.WithLabelValues("wifi").Add(1024)
	ProbesTotal.Inc()
	ProbeCostSeconds.Add(0.02)
	MigrationTransitionsTotal.WithLabelValues("switched").Inc()

	if got := testutil.ToFloat64(ProbesTotal); got < 1 {
		t.Errorf("ProbesTotal = %v, want >= 1", got)
	}
}

func TestHistogramsObserve(t *testing.T) {
	TransferDuration.WithLabelValues("success").Observe(1.5)
	DetectorConfidence.WithLabelValues("true").Observe(0.8)
	MigrationPauseSeconds.Observe(12.0)
}

func TestGaugesSet(t *testing.T) {
	PoolRunning.Set(3)
	PoolLimit.Set(8)
	PoolQueueDepth.WithLabelValues("small").Set(2)

	if got := testutil.ToFloat64(PoolRunning); got != 3 {
		t.Errorf("PoolRunning = %v, want 3", got)
	}
}

func TestCollectorsRegisterWithoutError(t *testing.T) {
	reg := prometheus.NewRegistry()
	collectors := []prometheus.Collector{
		TransfersTotal, TransferBytesTotal, TransferDuration,
		DetectorVerdictsTotal, DetectorConfidence,
		PoolRunning, PoolQueueDepth, PoolLimit,
		ProbesTotal, ProbeCostSeconds,
		MigrationTransitionsTotal, MigrationPauseSeconds,
	}
	for _, c := range collectors {
		// These collectors are already registered via promauto against the
		// default registry; re-registering a fresh one must still succeed,
		// proving each is a well-formed, collectible metric.
		if err := reg.Register(c); err != nil {
			t.Errorf("register %T: %v", c, err)
		}
	}
}
