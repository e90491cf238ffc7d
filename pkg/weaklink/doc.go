// Package weaklink classifies link quality from a stream of per-transfer
// throughput and failure samples.
//
// A [Detector] fuses an EWMA of recent speed, a CUSUM change detector
// against a rolling baseline, and a failure-rate window into a single
// (isWeak, confidence) verdict. It is a single-owner accumulator: one
// Detector belongs to exactly one batch and is never shared across
// goroutines without external synchronization.
//
// # Usage
//
//	d := weaklink.New(weaklink.DefaultConfig())
//	v := d.Feed(speedKBps, ok)
//	if v.IsWeak {
//	    // start migration
//	}
//
// Feed is deterministic in the sense that it is a pure function of the
// sample history plus a small set of accumulators (ewma, cusum_pos,
// cusum_neg); there is no hidden global state. Call [Detector.Reset] to
// reuse a Detector across independent rounds.
package weaklink
