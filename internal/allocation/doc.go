// Package allocation implements the rule editor behind a node's detail
// drawer.
//
// An Editor works on one focused node at a time. It seeds one allocation
// draft per outbound target, keeps the drafts in step with the canvas as
// flows appear and disappear, validates on every change and commits through
// the canvas only when the normalized allocation signature has changed.
//
// Text fields for balance, income amount, cadence and return rate use Field,
// which holds local edits until they are committed so that updates arriving
// from the canvas do not overwrite in-progress typing.
package allocation
