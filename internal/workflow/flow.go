// Package workflow implements the expense approval engine: sequence
// resolution, the flow state machine and the decision evaluator. The package
// never touches the database, so every rule is testable in isolation;
// persistence and transaction boundaries live in the service layer.
package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Flow status enum constants. PENDING and IN_PROGRESS are open; APPROVED and
// REJECTED are terminal.
const (
	StatusPending    = "PENDING"
	StatusInProgress = "IN_PROGRESS"
	StatusApproved   = "APPROVED"
	StatusRejected   = "REJECTED"
)

// Decision enum constants
const (
	DecisionApproved = "APPROVED"
	DecisionRejected = "REJECTED"
)

// Approver is one member of a flow's sequence.
type Approver struct {
	ID   uuid.UUID
	Role string
}

// Step is descriptive metadata about one stage of the pipeline.
type Step struct {
	Number int
	Role   string
}

// Approval is one recorded decision.
type Approval struct {
	ApproverID uuid.UUID
	Decision   string
	Comment    string
	DecidedAt  time.Time
}

// Policy holds the configurable closure rules applied to a flow. Required
// approvers must decide APPROVED regardless of the percentage threshold.
type Policy struct {
	Percentage int
	Sequential bool
	Required   []Approver
}

// DefaultPolicy is applied when a company has not configured an approval
// rule: every approver in the sequence must approve, in any order.
func DefaultPolicy() Policy {
	return Policy{Percentage: 100}
}

// Flow is the in-memory state of one approval workflow, detached from
// persistence. The service layer maps the stored record into a Flow, applies
// decisions, and writes the result back in one transaction.
type Flow struct {
	Sequence    []uuid.UUID
	Required    []uuid.UUID
	Percentage  int
	Sequential  bool
	CurrentStep int
	Status      string
	Approvals   []Approval
}

// Terminal reports whether status permits no further decisions.
func Terminal(status string) bool {
	return status == StatusApproved || status == StatusRejected
}

// Decided returns the approver's recorded decision, if any.
func (f *Flow) Decided(approverID uuid.UUID) (Approval, bool) {
	for _, a := range f.Approvals {
		if a.ApproverID == approverID {
			return a, true
		}
	}
	return Approval{}, false
}

// InSequence reports whether the given user is eligible to decide on f.
func (f *Flow) InSequence(approverID uuid.UUID) bool {
	for _, id := range f.Sequence {
		if id == approverID {
			return true
		}
	}
	return false
}

// Submit validates and records one approver decision, then re-evaluates the
// flow. On success the flow's Approvals, Status and CurrentStep are updated
// in place and the resulting outcome is returned. The flow is left untouched
// on any error.
func (f *Flow) Submit(approverID uuid.UUID, decision, comment string, now time.Time) (Outcome, error) {
	if Terminal(f.Status) {
		return Outcome{}, ErrFlowClosed
	}
	if !f.InSequence(approverID) {
		return Outcome{}, ErrNotAuthorized
	}
	if _, ok := f.Decided(approverID); ok {
		return Outcome{}, ErrDuplicateDecision
	}
	if decision != DecisionApproved && decision != DecisionRejected {
		return Outcome{}, fmt.Errorf("invalid decision %q", decision)
	}
	if f.Sequential {
		idx := f.CurrentStep - 1
		if idx < 0 || idx >= len(f.Sequence) || f.Sequence[idx] != approverID {
			return Outcome{}, fmt.Errorf("not the active approver for step %d: %w", f.CurrentStep, ErrNotAuthorized)
		}
	}

	f.Approvals = append(f.Approvals, Approval{
		ApproverID: approverID,
		Decision:   decision,
		Comment:    comment,
		DecidedAt:  now,
	})

	out := Evaluate(f)
	f.Status = out.Status
	f.CurrentStep = out.CurrentStep
	return out, nil
}
