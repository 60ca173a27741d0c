// Package harness runs scripted editing sessions against the canvas editor
// and checks the graph they leave behind.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: paycheck_split
//	description: "Income split 70/30 between two accounts"
//	household: h1        # optional; enables load/save steps
//	variant: sandbox     # optional; defaults to live
//	steps:
//	  - action: add_node
//	    ref: pay
//	    node: { kind: income, label: Paycheck, inflow: { amount: 1000, cadence: monthly } }
//	  - action: add_flow
//	    from: pay
//	    to: checking
//	  - action: save_rule
//	    from: pay
//	    allocations: [{ to: checking, percentage: 80 }]
//	    expect_error: ALLOCATION_SUM
//	assertions:
//	  - type: rule
//	    from: pay
//	    allocations: { checking: 70, savings: 30 }
//
// Steps refer to nodes and flows by the ref an earlier step bound. A ref
// that was never bound is passed through as a literal id, which lets a
// scenario exercise unknown-node errors.
//
// # Step Actions
//
//   - add_node, update_node, remove_nodes
//   - add_flow, remove_flow
//   - save_rule, remove_rule, allocate (through the allocation drawer)
//   - select, drag, marquee, key, undo, redo
//   - load, save, reset_sandbox, apply_sandbox (household scenarios only)
//
// # Assertion Types
//
//   - node_count, flow_count: counts, flow_count optionally rule-owned only
//   - node: label, parent and position of one node
//   - flow, no_flow: presence of a flow between two nodes
//   - rule, no_rule: a source's rule, trigger and exact allocations
//   - selection: the selected nodes in order
//   - valid: graph.ValidateStructure passes
//   - persisted_count: nodes stored for a variant
//
// # Deterministic Testing
//
// Editor ids come from testutil.SequentialIDs ("node-1", "flow-1", ...),
// persisted ids from a second sequence ("row-1", ...), and timestamps from
// testutil.StepClock. Household scenarios run against a fresh in-memory
// SQLite database. Identical scenarios therefore yield identical graphs,
// which RunWithGolden compares against testdata/golden.
package harness
