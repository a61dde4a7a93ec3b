// Package orchestrator drives the lifecycle of one cloud environment.
//
// A run is a Pipeline: an ordered list of stages executed strictly in
// sequence over a shared State. Every stage ends with a status (Success,
// Warning, Fatal or Skipped). The first Fatal stage stops the run; stages
// marked Always (cleanup and summary) still execute afterwards.
//
// # Pipelines
//
// Provision:
//
//  1. prerequisites, initialize, validate
//  2. plan, then confirm-apply (the apply gate)
//  3. apply, outputs, connect
//  4. deploy-manifests, await-rollout
//  5. summary
//
// Teardown:
//
//  1. prerequisites, initialize
//  2. confirm-namespace-delete (the namespace gate)
//  3. outputs, connect, backup, delete-cluster-objects
//  4. destroy-plan, then confirm-destroy (the destroy gate)
//  5. destroy, cleanup, summary
//
// Backup failures never stop a teardown. Cluster object deletion failures
// do, so the resource graph is never destroyed under live workloads.
//
// # Plans
//
// No mutating engine call happens without a plan that was approved at a
// gate. Apply consumes the approved plan exactly once. Destroy consumes the
// approved destroy plan and then applies it one graph node at a time, leaf
// to root; each per-node plan must be a subset of the reviewed one or the
// run fails with a drift error.
//
// # Errors
//
// Stage failures are *StageError values carrying a Kind, the stage name and
// the failing resource when known. Use IsKind or KindOf to inspect them.
package orchestrator
