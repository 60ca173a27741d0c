// Package store provides SQLite-backed storage for household workspaces.
//
// Every household owns at most two workspaces, live and sandbox, each
// holding a complete graph:
//   - Nodes: kind, label, parent link and a JSON metadata column
//   - Rules and rule allocations
//   - Edges: manual or rule-owned
//
// Alongside the graphs the store keeps editing sessions, pending change
// diffs and an append-only audit log.
//
// # Patterns
//
// Whole-graph replace
//   - Replace deletes a workspace's graph and inserts the submitted one in
//     the same transaction
//   - Submitted entities carry client ids; Replace returns the mapping to
//     persisted ids
//   - Rows with unresolved references are skipped and counted
//
// Deterministic reads
//   - Graph queries order by sort_order ASC, id COLLATE BINARY ASC
//   - The audit log orders by seq, never by timestamp
//   - Empty results are empty slices, never nil
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Workspace deletes cascade to their graphs
//
// Both the cgo driver (mattn/go-sqlite3) and the pure-Go driver
// (modernc.org/sqlite) are registered; OpenDriver picks one.
package store
