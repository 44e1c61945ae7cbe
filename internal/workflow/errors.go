package workflow

import "errors"

// Sentinel errors returned by the engine. Services wrap them with context and
// handlers translate them to HTTP status codes with errors.Is.
var (
	// ErrNoApprovers means a flow could not be created because neither a
	// manager nor any elevated-role pool member exists. Fatal to submission.
	ErrNoApprovers = errors.New("no eligible approvers configured")

	// ErrNotAuthorized means the deciding user is not part of the flow's
	// sequence (or, in sequential mode, is not the active approver).
	ErrNotAuthorized = errors.New("approver is not authorized to decide on this flow")

	// ErrDuplicateDecision means the approver already has a recorded decision.
	ErrDuplicateDecision = errors.New("approver has already decided on this flow")

	// ErrFlowClosed means the flow has reached a terminal state.
	ErrFlowClosed = errors.New("approval flow is already closed")

	// ErrConcurrentModification means another writer won the race on the same
	// flow. Safe to retry.
	ErrConcurrentModification = errors.New("approval flow was modified concurrently")

	// ErrInconsistentState means a flow and its expense diverged at a terminal
	// state. Indicates a bug; never expected in normal operation.
	ErrInconsistentState = errors.New("expense and approval flow status diverge")
)
