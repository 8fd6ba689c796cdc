package mutate

import (
	"context"
	"fmt"
	"sync"

	"github.com/paiml/probar/internal/machine"
	"github.com/paiml/probar/internal/runner"
)

// ExecutorFactory supplies a fresh ActionExecutor per mutant run. Each
// runner owns its executor for exactly one run, so live scoring needs a
// new instance per mutant.
type ExecutorFactory func() runner.ActionExecutor

// ScoreLive replays the playbook once per mutant against a real executor.
// A mutant is killed when its run does not pass: a failing path or output
// assertion, a guard that no longer holds, or the forbidden-transition
// safety check firing at run time. This is the expensive, secondary
// scoring mode; Score's static falsification is the primary contract.
//
// Mutants that static validation already kills are replayed anyway, so the
// two mechanisms stay independently observable in the per-mutant results.
func ScoreLive(ctx context.Context, pb *machine.Playbook, mutants []Mutant, newExecutor ExecutorFactory, workers int) (ScoreResult, error) {
	if workers < 1 {
		workers = 1
	}

	results := make([]MutantResult, len(mutants))
	errs := make([]error, len(mutants))

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i], errs[i] = replayOne(ctx, pb, mutants[i], newExecutor())
			}
		}()
	}
	for i := range mutants {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return ScoreResult{}, err
		}
	}
	return aggregate(results), nil
}

// replayOne runs the playbook steps against one mutant's machine.
func replayOne(ctx context.Context, pb *machine.Playbook, m Mutant, exec runner.ActionExecutor) (MutantResult, error) {
	res := MutantResult{ID: m.ID, Class: m.Class, Description: m.Description}

	// The mutant playbook shares the immutable flow sections and swaps in
	// the mutated machine.
	mpb := *pb
	mpb.Machine = *m.Spec

	r := runner.New(&mpb, exec, runner.Config{ContinueOnError: true})
	result, err := r.Run(ctx)
	if err != nil {
		return res, fmt.Errorf("replaying mutant %s: %w", m.ID, err)
	}

	if result.Passed {
		return res, nil
	}
	res.Killed = true
	res.KilledBy = KilledByExecution
	switch {
	case len(result.ForbiddenViolations) > 0:
		v := result.ForbiddenViolations[0]
		res.Detail = fmt.Sprintf("forbidden transition %s -> %s observed via %q", v.From, v.To, v.Transition)
	case result.FailureCause != "":
		res.Detail = result.FailureCause
	case len(result.AssertionFailures) > 0:
		res.Detail = result.AssertionFailures[0].String()
	default:
		res.Detail = "run failed"
	}
	return res, nil
}
