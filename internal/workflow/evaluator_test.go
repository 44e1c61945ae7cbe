package workflow

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlow(approvers int, percentage int) *Flow {
	sequence := make([]uuid.UUID, approvers)
	for i := range sequence {
		sequence[i] = uuid.New()
	}
	return &Flow{
		Sequence:    sequence,
		Percentage:  percentage,
		CurrentStep: 1,
		Status:      StatusPending,
	}
}

func approve(f *Flow, approverID uuid.UUID) {
	f.Approvals = append(f.Approvals, Approval{
		ApproverID: approverID,
		Decision:   DecisionApproved,
		DecidedAt:  time.Now(),
	})
}

func reject(f *Flow, approverID uuid.UUID) {
	f.Approvals = append(f.Approvals, Approval{
		ApproverID: approverID,
		Decision:   DecisionRejected,
		DecidedAt:  time.Now(),
	})
}

func TestEvaluateNoApprovalsStaysPending(t *testing.T) {
	f := newFlow(3, 100)

	out := Evaluate(f)

	assert.Equal(t, StatusPending, out.Status)
	assert.Equal(t, 1, out.CurrentStep)
}

func TestEvaluatePercentage100RequiresAll(t *testing.T) {
	f := newFlow(3, 100)

	approve(f, f.Sequence[0])
	approve(f, f.Sequence[1])
	assert.Equal(t, StatusInProgress, Evaluate(f).Status, "2 of 3 must not close at 100%")

	approve(f, f.Sequence[2])
	assert.Equal(t, StatusApproved, Evaluate(f).Status)
}

func TestEvaluatePercentage60Boundary(t *testing.T) {
	f := newFlow(3, 60)

	approve(f, f.Sequence[0])
	assert.Equal(t, StatusInProgress, Evaluate(f).Status, "33% must stay in progress")

	approve(f, f.Sequence[1])
	assert.Equal(t, StatusApproved, Evaluate(f).Status, "66% meets a 60% threshold")
}

func TestEvaluateSingleApproverDegenerateCase(t *testing.T) {
	f := newFlow(1, 100)
	approve(f, f.Sequence[0])
	assert.Equal(t, StatusApproved, Evaluate(f).Status)

	f = newFlow(1, 100)
	reject(f, f.Sequence[0])
	assert.Equal(t, StatusRejected, Evaluate(f).Status)
}

func TestEvaluateAnyRejectionHaltsUnderDefaultPolicy(t *testing.T) {
	f := newFlow(3, 100)

	reject(f, f.Sequence[1])

	assert.Equal(t, StatusRejected, Evaluate(f).Status)
}

func TestEvaluateRequiredApproverRejectionHalts(t *testing.T) {
	f := newFlow(3, 60)
	f.Required = []uuid.UUID{f.Sequence[0]}

	reject(f, f.Sequence[0])

	assert.Equal(t, StatusRejected, Evaluate(f).Status)
}

func TestEvaluateRequiredApproverMustApproveDespiteThreshold(t *testing.T) {
	f := newFlow(3, 60)
	f.Required = []uuid.UUID{f.Sequence[2]}

	// 66% approved but the required approver has not decided yet.
	approve(f, f.Sequence[0])
	approve(f, f.Sequence[1])
	assert.Equal(t, StatusInProgress, Evaluate(f).Status)

	approve(f, f.Sequence[2])
	assert.Equal(t, StatusApproved, Evaluate(f).Status)
}

func TestEvaluateNonRequiredRejectionCountsAgainstThreshold(t *testing.T) {
	f := newFlow(2, 100)
	f.Required = []uuid.UUID{f.Sequence[0]}

	// The non-required approver rejects; 100% can never be reached.
	reject(f, f.Sequence[1])

	assert.Equal(t, StatusRejected, Evaluate(f).Status)
}

func TestEvaluateSequentialAdvancesCursor(t *testing.T) {
	f := newFlow(3, 100)
	f.Sequential = true

	approve(f, f.Sequence[0])
	out := Evaluate(f)

	assert.Equal(t, StatusInProgress, out.Status)
	assert.Equal(t, 2, out.CurrentStep)
}

func TestSubmitGuards(t *testing.T) {
	now := time.Now()

	t.Run("closed flow rejects further decisions", func(t *testing.T) {
		f := newFlow(2, 100)
		f.Status = StatusRejected
		before := len(f.Approvals)

		_, err := f.Submit(f.Sequence[0], DecisionApproved, "", now)

		require.ErrorIs(t, err, ErrFlowClosed)
		assert.Len(t, f.Approvals, before, "approvals must stay immutable after closure")
	})

	t.Run("outsider is not authorized", func(t *testing.T) {
		f := newFlow(2, 100)

		_, err := f.Submit(uuid.New(), DecisionApproved, "", now)

		require.ErrorIs(t, err, ErrNotAuthorized)
		assert.Empty(t, f.Approvals)
		assert.Equal(t, StatusPending, f.Status)
	})

	t.Run("second decision by the same approver fails", func(t *testing.T) {
		f := newFlow(2, 100)

		_, err := f.Submit(f.Sequence[0], DecisionApproved, "lgtm", now)
		require.NoError(t, err)

		_, err = f.Submit(f.Sequence[0], DecisionApproved, "again", now)
		require.ErrorIs(t, err, ErrDuplicateDecision)
		assert.Len(t, f.Approvals, 1)
	})

	t.Run("invalid decision value fails", func(t *testing.T) {
		f := newFlow(2, 100)

		_, err := f.Submit(f.Sequence[0], "MAYBE", "", now)

		require.Error(t, err)
		assert.Empty(t, f.Approvals)
	})

	t.Run("sequential mode blocks out-of-turn approvers", func(t *testing.T) {
		f := newFlow(3, 100)
		f.Sequential = true

		_, err := f.Submit(f.Sequence[1], DecisionApproved, "", now)

		require.ErrorIs(t, err, ErrNotAuthorized)
	})
}

func TestSubmitFullApprovalScenario(t *testing.T) {
	// Scenario: manager + CFO, percentage 100, no required approvers.
	f := newFlow(2, 100)
	now := time.Now()

	out, err := f.Submit(f.Sequence[0], DecisionApproved, "ok", now)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, out.Status)

	out, err = f.Submit(f.Sequence[1], DecisionApproved, "approved", now)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, out.Status)
	assert.Equal(t, StatusApproved, f.Status)
	assert.Len(t, f.Approvals, 2)
}

func TestSubmitRejectionClosesImmediately(t *testing.T) {
	f := newFlow(2, 100)
	now := time.Now()

	out, err := f.Submit(f.Sequence[0], DecisionRejected, "no receipt", now)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, out.Status)

	// The second approver's attempt must fail and leave state untouched.
	_, err = f.Submit(f.Sequence[1], DecisionApproved, "", now)
	require.ErrorIs(t, err, ErrFlowClosed)
	assert.Len(t, f.Approvals, 1)
	assert.Equal(t, StatusRejected, f.Status)
}

func TestSubmitSequentialWalkthrough(t *testing.T) {
	f := newFlow(3, 100)
	f.Sequential = true
	now := time.Now()

	out, err := f.Submit(f.Sequence[0], DecisionApproved, "", now)
	require.NoError(t, err)
	assert.Equal(t, 2, out.CurrentStep)

	out, err = f.Submit(f.Sequence[1], DecisionApproved, "", now)
	require.NoError(t, err)
	assert.Equal(t, 3, out.CurrentStep)

	out, err = f.Submit(f.Sequence[2], DecisionApproved, "", now)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, out.Status)
}

func TestApproverAppearsAtMostOnceInvariant(t *testing.T) {
	f := newFlow(4, 60)
	now := time.Now()

	for _, id := range f.Sequence {
		_, _ = f.Submit(id, DecisionApproved, "", now)
		_, err := f.Submit(id, DecisionApproved, "", now)
		if !Terminal(f.Status) {
			require.ErrorIs(t, err, ErrDuplicateDecision)
		}
	}

	seen := make(map[uuid.UUID]int)
	for _, a := range f.Approvals {
		seen[a.ApproverID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "approver %s recorded %d times", id, n)
	}
}
