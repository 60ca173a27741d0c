package workspace

import "errors"

var (
	// ErrNoPair is returned by variant operations on a household that
	// does not have both a live and a sandbox workspace.
	ErrNoPair = errors.New("household has no live/sandbox pair")

	// ErrLiveDelete is returned when deleting a live workspace.
	ErrLiveDelete = errors.New("live workspace cannot be deleted")

	// ErrPendingRequest is returned when deleting a sandbox that carries a
	// change request awaiting review.
	ErrPendingRequest = errors.New("sandbox has a pending change request")

	// ErrApprovalRequired is returned by ApplySandbox when the approval
	// gate holds the apply back. Nothing is changed.
	ErrApprovalRequired = errors.New("apply requires approval")

	// ErrInvalidVariant is returned for a variant other than live or sandbox.
	ErrInvalidVariant = errors.New("invalid workspace variant")
)
