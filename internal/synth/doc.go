// Package synth generates the synthetic project-management and source
// control records that feed the benchmark warehouse.
//
// A Generator is seeded once per run. Each pipeline stage draws from its own
// Stream, derived from the run seed, the stage name, and the simulated day,
// so stages running concurrently still produce reproducible data.
package synth
