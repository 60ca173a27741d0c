// Package workspace manages a household's live and sandbox workspaces.
//
// Live is the authoritative graph. Sandbox is a scratch copy where changes
// are proposed before being promoted:
//
//	ResetSandbox   live    -> sandbox
//	ApplySandbox   sandbox -> live (behind an ApprovalGate)
//
// Every operation runs in a single store transaction and appends an audit
// event. Events are published and metrics recorded only after the
// transaction commits.
package workspace
