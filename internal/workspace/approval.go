package workspace

import (
	"context"

	"github.com/roach88/moneymap/internal/graph"
)

// ApprovalRequest describes an apply about to overwrite live.
type ApprovalRequest struct {
	HouseholdID string
	ActorID     string
	Live        graph.Snapshot
	Sandbox     graph.Snapshot
}

// ApprovalGate decides whether promoting sandbox to live must wait for a
// reviewer. An error aborts the apply.
type ApprovalGate interface {
	RequiresApproval(ctx context.Context, req ApprovalRequest) (bool, error)
}

// NoApproval lets every apply through.
type NoApproval struct{}

func (NoApproval) RequiresApproval(context.Context, ApprovalRequest) (bool, error) {
	return false, nil
}

// ApprovalFunc adapts a function to ApprovalGate.
type ApprovalFunc func(ctx context.Context, req ApprovalRequest) (bool, error)

func (f ApprovalFunc) RequiresApproval(ctx context.Context, req ApprovalRequest) (bool, error) {
	return f(ctx, req)
}
