package workflow

import "github.com/google/uuid"

// Outcome is the evaluator's verdict: the status the flow should hold and the
// step cursor after this evaluation.
type Outcome struct {
	Status      string
	CurrentStep int
}

// Evaluate recomputes a flow's status from its recorded approvals. Pure;
// never mutates f.
//
// Closure rules, in order:
//   - A REJECTED decision from a required approver closes the flow REJECTED.
//     When no required approvers are configured, any REJECTED decision does.
//   - Once every required approver has decided APPROVED and the approval
//     count meets the percentage threshold over the full sequence, the flow
//     closes APPROVED. The comparison is integer-exact:
//     approvedCount*100 >= percentage*len(sequence).
//   - If the threshold can no longer be met even if every undecided approver
//     approves, the flow closes REJECTED instead of hanging open forever.
//   - Otherwise the flow stays IN_PROGRESS (PENDING while no decision has
//     been recorded). In sequential mode the step cursor advances past every
//     decided approver, approved or rejected, so a non-closing rejection
//     hands the turn to the next approver instead of stalling the pipeline.
func Evaluate(f *Flow) Outcome {
	step := f.CurrentStep
	if step < 1 {
		step = 1
	}
	if len(f.Approvals) == 0 {
		return Outcome{Status: StatusPending, CurrentStep: step}
	}

	required := make(map[uuid.UUID]bool, len(f.Required))
	for _, id := range f.Required {
		required[id] = true
	}

	approved := make(map[uuid.UUID]bool, len(f.Approvals))
	decided := make(map[uuid.UUID]bool, len(f.Approvals))
	for _, a := range f.Approvals {
		decided[a.ApproverID] = true
		switch a.Decision {
		case DecisionRejected:
			if len(f.Required) == 0 || required[a.ApproverID] {
				return Outcome{Status: StatusRejected, CurrentStep: step}
			}
		case DecisionApproved:
			approved[a.ApproverID] = true
		}
	}

	requiredApproved := true
	for _, id := range f.Required {
		if !approved[id] {
			requiredApproved = false
			break
		}
	}

	approvedCount := 0
	for _, id := range f.Sequence {
		if approved[id] {
			approvedCount++
		}
	}

	total := len(f.Sequence)
	if requiredApproved && approvedCount*100 >= f.Percentage*total {
		return Outcome{Status: StatusApproved, CurrentStep: step}
	}

	// Threshold unreachable: every remaining approver approving still falls
	// short, so the flow can never close APPROVED.
	undecided := total - len(f.Approvals)
	if (approvedCount+undecided)*100 < f.Percentage*total {
		return Outcome{Status: StatusRejected, CurrentStep: step}
	}

	if f.Sequential {
		for step <= total && decided[f.Sequence[step-1]] {
			step++
		}
	}

	return Outcome{Status: StatusInProgress, CurrentStep: step}
}
