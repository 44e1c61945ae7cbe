package workflow

import "github.com/google/uuid"

// BuildSequence computes the ordered approver sequence and step metadata for
// a new flow: the employee's manager first (if any), followed by the company
// approver pool in its original order, duplicates removed. Required approvers
// from the policy that the pool did not supply are appended at the end, since
// a required approver outside the sequence could never decide and would
// deadlock the flow.
//
// Resolution is deterministic: the same inputs always yield the same sequence.
func BuildSequence(manager *Approver, pool []Approver, policy Policy) ([]Approver, []Step, error) {
	seen := make(map[uuid.UUID]bool)
	var sequence []Approver

	if manager != nil {
		sequence = append(sequence, *manager)
		seen[manager.ID] = true
	}
	for _, a := range pool {
		if seen[a.ID] {
			continue
		}
		sequence = append(sequence, a)
		seen[a.ID] = true
	}
	for _, r := range policy.Required {
		if seen[r.ID] {
			continue
		}
		sequence = append(sequence, r)
		seen[r.ID] = true
	}

	if len(sequence) == 0 {
		return nil, nil, ErrNoApprovers
	}

	return sequence, buildSteps(sequence), nil
}

// buildSteps derives the pipeline shape from the resolved sequence: one step
// per run of consecutive identical roles, numbered from 1.
func buildSteps(sequence []Approver) []Step {
	var steps []Step
	for _, a := range sequence {
		if n := len(steps); n > 0 && steps[n-1].Role == a.Role {
			continue
		}
		steps = append(steps, Step{Number: len(steps) + 1, Role: a.Role})
	}
	return steps
}

// RequiredIDs extracts the identity set of a policy's required approvers.
func (p Policy) RequiredIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.Required))
	for _, r := range p.Required {
		ids = append(ids, r.ID)
	}
	return ids
}
