package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiml/probar/internal/machine"
	"github.com/paiml/probar/internal/runner"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func sampleResult(id string) *runner.Result {
	return &runner.Result{
		RunID:     id,
		Playbook:  "login-flow",
		Passed:    true,
		StatePath: []machine.StateID{"logged_out", "authenticating", "logged_in"},
		Variables: map[string]string{"landing": "https://example.com/home"},
	}
}

func TestStore_WriteAndGetRun(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.WriteRun(ctx, sampleResult("run-001")))

	rec, err := st.GetRun(ctx, "run-001")
	require.NoError(t, err)
	assert.Equal(t, "run-001", rec.ID)
	assert.Equal(t, "login-flow", rec.Playbook)
	assert.True(t, rec.Passed)
	assert.Equal(t, []machine.StateID{"logged_out", "authenticating", "logged_in"}, rec.StatePath)
	assert.Equal(t, map[string]string{"landing": "https://example.com/home"}, rec.Variables)
	assert.NotEmpty(t, rec.CreatedAt)
}

func TestStore_FailedRunRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	result := sampleResult("run-002")
	result.Passed = false
	result.FailureCause = `forbidden transition logged_out -> logged_in observed via "bypass"`
	result.AssertionFailures = []runner.AssertionFailure{
		{Kind: "path", Target: "logged_in", Expected: "state visited", Actual: "never entered"},
	}
	result.ForbiddenViolations = []runner.ForbiddenViolation{
		{From: "logged_out", To: "logged_in", Transition: "bypass", Reason: "authentication bypass"},
	}
	require.NoError(t, st.WriteRun(ctx, result))

	rec, err := st.GetRun(ctx, "run-002")
	require.NoError(t, err)
	assert.False(t, rec.Passed)
	assert.Equal(t, result.FailureCause, rec.FailureCause)
	require.Len(t, rec.AssertionFailures, 1)
	assert.Equal(t, "path", rec.AssertionFailures[0].Kind)
	require.Len(t, rec.ForbiddenViolations, 1)
	assert.Equal(t, "bypass", rec.ForbiddenViolations[0].Transition)
}

func TestStore_GetRun_NotFound(t *testing.T) {
	st := openTestStore(t)

	_, err := st.GetRun(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestStore_WriteRun_Idempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.WriteRun(ctx, sampleResult("run-001")))
	require.NoError(t, st.WriteRun(ctx, sampleResult("run-001")))

	records, err := st.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestStore_ListRuns_FilterAndLimit(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.WriteRun(ctx, sampleResult("run-001")))
	require.NoError(t, st.WriteRun(ctx, sampleResult("run-002")))
	other := sampleResult("run-003")
	other.Playbook = "checkout-flow"
	require.NoError(t, st.WriteRun(ctx, other))

	all, err := st.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	filtered, err := st.ListRuns(ctx, "login-flow", 0)
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	for _, rec := range filtered {
		assert.Equal(t, "login-flow", rec.Playbook)
	}

	limited, err := st.ListRuns(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestStore_OpenExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runs.db")

	st, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, st.WriteRun(context.Background(), sampleResult("run-001")))
	require.NoError(t, st.Close())

	// Reopening applies the schema idempotently and keeps the data.
	st2, err := Open(path)
	require.NoError(t, err)
	defer st2.Close()

	rec, err := st2.GetRun(context.Background(), "run-001")
	require.NoError(t, err)
	assert.Equal(t, "login-flow", rec.Playbook)
}
