package swap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeStateMachine drives through a fixed sequence of named steps,
// persisting the name of the most recently completed step. crashAfter, if
// >= 0, makes Next fail the first time it is called at that step index,
// simulating a process crash mid-step; a fresh fakeStateMachine built with
// step already set to the last persisted index and crashAfter disabled
// models resuming from the durable checkpoint.
type fakeStateMachine struct {
	steps      []string
	step       int
	crashAfter int
	persisted  *[]string
}

func (f *fakeStateMachine) Next(_ context.Context) error {
	if f.step == f.crashAfter {
		return errors.New("simulated crash")
	}
	f.step++
	return nil
}

func (f *fakeStateMachine) Done() bool {
	return f.step >= len(f.steps)
}

func (f *fakeStateMachine) Persist() error {
	*f.persisted = append(*f.persisted, f.steps[f.step-1])
	return nil
}

var _ StateMachine = (*fakeStateMachine)(nil)

func TestRunUntilCompletesAllSteps(t *testing.T) {
	var persisted []string
	sm := &fakeStateMachine{steps: []string{"a", "b", "c"}, crashAfter: -1, persisted: &persisted}

	err := RunUntil(context.Background(), sm)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, persisted)
}

// TestRunUntilCrashThenResume exercises Scenario 5 (crash-resume): a run
// that fails partway through only has its completed steps persisted, and a
// second RunUntil rehydrated from that last persisted step completes the
// remaining ones without re-running or skipping any.
func TestRunUntilCrashThenResume(t *testing.T) {
	var persisted []string
	steps := []string{"a", "b", "c", "d"}

	sm := &fakeStateMachine{steps: steps, crashAfter: 2, persisted: &persisted}
	err := RunUntil(context.Background(), sm)
	require.Error(t, err)
	require.Equal(t, []string{"a", "b"}, persisted)

	resumed := &fakeStateMachine{steps: steps, step: len(persisted), crashAfter: -1, persisted: &persisted}
	err = RunUntil(context.Background(), resumed)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c", "d"}, persisted)
}

func TestRunUntilStopsOnCancelledContext(t *testing.T) {
	var persisted []string
	sm := &fakeStateMachine{steps: []string{"a", "b"}, crashAfter: -1, persisted: &persisted}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunUntil(ctx, sm)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, persisted)
}

func TestRunUntilPropagatesStepError(t *testing.T) {
	var persisted []string
	sm := &fakeStateMachine{steps: []string{"a", "b"}, crashAfter: 0, persisted: &persisted}

	err := RunUntil(context.Background(), sm)
	require.Error(t, err)
	require.Empty(t, persisted)
}
