// Package workers computes bounded worker-pool sizes from available CPUs.
//
// Pool sizes are always fixed for the lifetime of a pool; nothing in this
// service spawns per-item goroutines against an unbounded queue.
package workers
