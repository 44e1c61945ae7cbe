package workflow

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approver(role string) Approver {
	return Approver{ID: uuid.New(), Role: role}
}

func ids(sequence []Approver) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(sequence))
	for _, a := range sequence {
		out = append(out, a.ID)
	}
	return out
}

func TestBuildSequenceManagerFirst(t *testing.T) {
	manager := approver("Manager")
	cfo := approver("CFO")
	admin := approver("Admin")

	sequence, steps, err := BuildSequence(&manager, []Approver{cfo, admin}, DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{manager.ID, cfo.ID, admin.ID}, ids(sequence))
	assert.Equal(t, []Step{
		{Number: 1, Role: "Manager"},
		{Number: 2, Role: "CFO"},
		{Number: 3, Role: "Admin"},
	}, steps)
}

func TestBuildSequenceDeduplicatesManagerInPool(t *testing.T) {
	manager := approver("Manager")
	cfo := approver("CFO")

	// Pool contains the manager again; it must not appear twice.
	sequence, _, err := BuildSequence(&manager, []Approver{manager, cfo}, DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{manager.ID, cfo.ID}, ids(sequence))
}

func TestBuildSequenceNoManager(t *testing.T) {
	cfo := approver("CFO")
	admin := approver("Admin")

	sequence, steps, err := BuildSequence(nil, []Approver{cfo, admin}, DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{cfo.ID, admin.ID}, ids(sequence))
	assert.Equal(t, "CFO", steps[0].Role)
}

func TestBuildSequenceEmptyPoolFails(t *testing.T) {
	sequence, steps, err := BuildSequence(nil, nil, DefaultPolicy())

	require.ErrorIs(t, err, ErrNoApprovers)
	assert.Nil(t, sequence)
	assert.Nil(t, steps)
}

func TestBuildSequenceAppendsMissingRequiredApprovers(t *testing.T) {
	manager := approver("Manager")
	director := approver("Director")

	policy := Policy{Percentage: 60, Required: []Approver{director}}
	sequence, _, err := BuildSequence(&manager, nil, policy)
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{manager.ID, director.ID}, ids(sequence))
}

func TestBuildSequenceGroupsConsecutiveRolesIntoSteps(t *testing.T) {
	cfo1 := approver("CFO")
	cfo2 := approver("CFO")
	admin := approver("Admin")

	_, steps, err := BuildSequence(nil, []Approver{cfo1, cfo2, admin}, DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, []Step{
		{Number: 1, Role: "CFO"},
		{Number: 2, Role: "Admin"},
	}, steps)
}

func TestBuildSequenceIsDeterministic(t *testing.T) {
	manager := approver("Manager")
	pool := []Approver{approver("CFO"), approver("Director"), approver("Admin")}

	first, _, err := BuildSequence(&manager, pool, DefaultPolicy())
	require.NoError(t, err)
	second, _, err := BuildSequence(&manager, pool, DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
