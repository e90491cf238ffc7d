// Package probe implements LightProbe: periodic minimum-cost RTT sampling
// kept apart from the weak-link detector's throughput statistics. Probe
// timings are accumulated only as a count and a cost (see Snapshot and the
// probe metrics); they are not fed to the detector. A probe is a 1-byte
// Range GET issued on a configurable cadence, which can be temporarily
// shortened after a weak verdict via BoostShort.
package probe
