// Package warehouse owns the layered benchmark schema (ods, dwd, dwm, dws),
// the transforms that populate it one simulated day at a time, and the
// append-only lineage log written alongside every transform.
//
// All SQL is built with squirrel using the placeholder format of the target
// adapter, so the same code runs against DuckDB and PostgreSQL.
package warehouse
