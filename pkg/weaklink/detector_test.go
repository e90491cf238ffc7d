package weaklink

import "testing"

func TestWarmupNotMet(t *testing.T) {
	d := New(DefaultConfig())

	var last Verdict
	for i := 0; i < 9; i++ {
		last = d.Feed(100, true)
		if last.IsWeak {
			t.Fatalf("sample %d: expected isWeak=false during warm-up", i)
		}
	}

	last = d.Feed(1, true)
	if last.IsWeak {
		t.Fatal("expected isWeak=false: one slow sample right at the end of warm-up cannot trip CUSUM")
	}
}

func TestWeakDetectionAfterWarmup(t *testing.T) {
	d := New(DefaultConfig())

	for i := 0; i < 15; i++ {
		d.Feed(100, true)
	}

	var sawWeak bool
	var maxConfidence float64
	for i := 0; i < 10; i++ {
		v := d.Feed(5, true)
		if v.IsWeak {
			sawWeak = true
			if v.Confidence > maxConfidence {
				maxConfidence = v.Confidence
			}
		}
	}

	if !sawWeak {
		t.Fatal("expected at least one isWeak=true verdict after sustained degradation")
	}
	if maxConfidence <= 0.4 {
		t.Fatalf("expected confidence > 0.4 on a weak verdict, got %f", maxConfidence)
	}
}

func TestConfidenceAlwaysInUnitRange(t *testing.T) {
	d := New(DefaultConfig())

	speeds := []float64{100, 95, 110, 0, 200, -5, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	for i, s := range speeds {
		v := d.Feed(s, i%3 != 0)
		if v.Confidence < 0 || v.Confidence > 1 {
			t.Fatalf("sample %d: confidence %f out of [0,1]", i, v.Confidence)
		}
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	d := New(DefaultConfig())
	for i := 0; i < 20; i++ {
		d.Feed(100, true)
	}
	for i := 0; i < 10; i++ {
		d.Feed(1, false)
	}

	d.Reset()

	if d.ewma != 0 || len(d.history) != 0 || len(d.failWindow) != 0 || d.cusumPos != 0 || d.cusumNeg != 0 {
		t.Fatal("Reset did not restore initial zero state")
	}

	// Post-reset, warm-up must be re-established before a weak verdict.
	v := d.Feed(1, false)
	if v.IsWeak {
		t.Fatal("expected isWeak=false immediately after Reset")
	}
}

func TestNaNAndNegativeSpeedTreatedAsZero(t *testing.T) {
	d := New(DefaultConfig())
	v := d.Feed(-5, true)
	if v.Confidence < 0 || v.Confidence > 1 {
		t.Fatalf("confidence out of range for negative input: %f", v.Confidence)
	}
}
