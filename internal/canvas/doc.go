// Package canvas is the client-side Money Map editing engine.
//
// An Editor is one explicit editing session. It owns the node, flow and rule
// store and composes four collaborators:
//
//   - history.Manager: snapshot undo/redo, one entry per committed mutation
//   - Selection, DragState, Marquee: pointer-driven selection and movement
//   - Composer: the flow-drawing state machine
//
// Drag, marquee and composer are mutually exclusive. Starting any one of
// them cancels the others, and every snapshot application (undo, redo,
// load) resets all three.
//
// A Session pairs an Editor with a Backend and implements load and save:
// a failed load leaves an empty canvas, a failed save leaves local state and
// history untouched, and a successful save rewrites client ids to server ids
// across the whole history stack.
//
// Editors are not safe for concurrent use; they model a single-threaded,
// event-driven client. Session serializes its own access.
package canvas
