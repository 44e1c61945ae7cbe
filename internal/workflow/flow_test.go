package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openFlow(sequence ...uuid.UUID) *Flow {
	return &Flow{
		Sequence:    sequence,
		Percentage:  100,
		CurrentStep: 1,
		Status:      StatusPending,
	}
}

func TestSubmitRejectsClosedFlow(t *testing.T) {
	a := uuid.New()
	f := openFlow(a)
	f.Status = StatusApproved

	_, err := f.Submit(a, DecisionApproved, "", time.Now())
	assert.ErrorIs(t, err, ErrFlowClosed)
	assert.Empty(t, f.Approvals)
}

func TestSubmitRejectsOutsider(t *testing.T) {
	f := openFlow(uuid.New(), uuid.New())

	_, err := f.Submit(uuid.New(), DecisionApproved, "", time.Now())
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestSubmitRejectsSecondDecision(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	f := openFlow(a, b)

	_, err := f.Submit(a, DecisionApproved, "lgtm", time.Now())
	require.NoError(t, err)

	_, err = f.Submit(a, DecisionRejected, "changed my mind", time.Now())
	assert.ErrorIs(t, err, ErrDuplicateDecision)
	assert.Len(t, f.Approvals, 1)
}

func TestSubmitRejectsUnknownDecision(t *testing.T) {
	a := uuid.New()
	f := openFlow(a)

	_, err := f.Submit(a, "MAYBE", "", time.Now())
	require.Error(t, err)
	assert.Empty(t, f.Approvals)
}

func TestSubmitSequentialOutOfTurn(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	f := openFlow(a, b)
	f.Sequential = true

	// b is in the sequence but step 1 belongs to a.
	_, err := f.Submit(b, DecisionApproved, "", time.Now())
	assert.True(t, errors.Is(err, ErrNotAuthorized))
	assert.Equal(t, StatusPending, f.Status)
}

func TestSubmitSequentialAdvancesCursor(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	f := openFlow(a, b)
	f.Sequential = true

	out, err := f.Submit(a, DecisionApproved, "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, out.Status)
	assert.Equal(t, 2, out.CurrentStep)

	out, err = f.Submit(b, DecisionApproved, "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, out.Status)
}

func TestSubmitSequentialNonClosingRejectionPassesTurn(t *testing.T) {
	b, a, c := uuid.New(), uuid.New(), uuid.New()
	f := &Flow{
		Sequence:    []uuid.UUID{b, a, c},
		Required:    []uuid.UUID{a},
		Percentage:  33,
		Sequential:  true,
		CurrentStep: 1,
		Status:      StatusPending,
	}

	// b is not required and the threshold is still reachable, so the
	// rejection leaves the flow open. The turn must pass to a; otherwise
	// every approver would be blocked and the flow could never close.
	out, err := f.Submit(b, DecisionRejected, "duplicate claim", time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, out.Status)
	assert.Equal(t, 2, out.CurrentStep)

	out, err = f.Submit(a, DecisionApproved, "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, out.Status)
}

func TestSubmitRecordsDecisionDetails(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	f := openFlow(a, b)
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	out, err := f.Submit(a, DecisionApproved, "verified receipt", at)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, out.Status)

	require.Len(t, f.Approvals, 1)
	assert.Equal(t, a, f.Approvals[0].ApproverID)
	assert.Equal(t, "verified receipt", f.Approvals[0].Comment)
	assert.Equal(t, at, f.Approvals[0].DecidedAt)
	assert.Equal(t, StatusInProgress, f.Status)
}

func TestSubmitRejectionClosesFlow(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	f := openFlow(a, b)

	out, err := f.Submit(b, DecisionRejected, "missing receipt", time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, out.Status)
	assert.True(t, Terminal(f.Status))
}
