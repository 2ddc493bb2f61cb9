// Package adapter provides the warehouse adapter contract and shared
// database/sql plumbing for lineagebench.
//
// Concrete adapter implementations are in pkg/adapters/ subdirectories and
// register themselves in their init() functions.
package adapter

import "github.com/leapstack-labs/lineagebench/pkg/core"

// Type aliases so callers can depend on pkg/adapter alone.
type (
	// Adapter is an alias for core.Adapter.
	Adapter = core.Adapter

	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig

	// Rows is an alias for core.Rows.
	Rows = core.Rows
)
