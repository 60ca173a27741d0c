// Package graph defines the Money Map data model: nodes, flows, rules and
// allocations, and the snapshot that bundles them into one editing state.
//
// The package has no behavior beyond value contracts and the predicates other
// packages need to enforce them:
//
//   - Clone: deep copies that never share positions, allocations or selections
//   - ValidateAllocations / ValidateRule: percentage and target invariants
//   - ValidateStructure: parent links and dangling references
//   - Signature: order-independent identity of an allocation set
//   - AnalyzeCycles: multi-hop money cycles, reported as warnings
//
// # Allocation Invariants
//
// A rule sourced at an income node must allocate exactly 100 percent. Rules
// sourced anywhere else may allocate up to 100 percent; the remainder stays at
// the source. Comparisons use AllocationTolerance and decimal arithmetic so
// that 33.333 + 33.333 + 33.334 is exactly 100.
//
// # Cycles
//
// Only the immediate cases are blocked: a node targeting itself, a pod
// targeting its own parent, and a parent targeting one of its own pods.
// Longer cycles are legal and surface through AnalyzeCycles.
package graph
