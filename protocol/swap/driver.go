package swap

import (
	"context"
	"fmt"
)

// StateMachine is the minimal shape RunUntil drives: something that
// advances one step at a time, reports whether it has reached a terminal
// state, and can persist a snapshot of itself. protocol/alice and
// protocol/bob do not use it: they drive their own swapStates through
// HandleMessage dispatch and call SwapManager().WriteSwapToDB directly
// after every stage transition instead of through a StateMachine value. RunUntil exists here as the
// generic form of that same contract, exercised directly by
// driver_test.go's fakeStateMachine.
type StateMachine interface {
	// Next advances the state machine by exactly one step.
	Next(ctx context.Context) error
	// Done reports whether the state machine has reached a terminal state.
	Done() bool
	// Persist writes the state machine's current snapshot to durable
	// storage. Called once after every successful Next, before the next
	// iteration's Next begins.
	Persist() error
}

// RunUntil repeatedly calls sm.Next, persisting sm's snapshot after every
// successful step, until sm reports Done, ctx is cancelled, or a step
// fails. Persist always runs strictly after Next and strictly before the
// following iteration's Next, so a crash can never lose a completed step:
// a state machine rehydrated from its last persisted snapshot resumes at
// worst the single step that was in flight when the crash happened, never
// re-executing or silently dropping an earlier one.
func RunUntil(ctx context.Context, sm StateMachine) error {
	for !sm.Done() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := sm.Next(ctx); err != nil {
			return fmt.Errorf("state machine step failed: %w", err)
		}

		if err := sm.Persist(); err != nil {
			return fmt.Errorf("failed to persist state machine snapshot: %w", err)
		}
	}

	return nil
}
