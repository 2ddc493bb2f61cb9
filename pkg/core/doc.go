// Package core defines the shared language of lineagebench.
//
// This package contains:
//   - Service interfaces (Adapter, Store)
//   - Configuration types (TargetConfig, AdapterConfig)
//   - Benchmark result types (Run, DayTiming, TableStats)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
