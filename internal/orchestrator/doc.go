// Package orchestrator implements BatchOrchestrator: it enqueues a batch
// of URLs into a priority pool, routes transfer results into a weak-link
// detector, and on a weak verdict drives the staged migration protocol
// (drain -> prompt -> await link change -> resume). It composes
// pkg/taskpool, pkg/weaklink, internal/transfer, internal/probe, and
// internal/linkprovider.
package orchestrator
