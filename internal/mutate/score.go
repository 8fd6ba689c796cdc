package mutate

import (
	"fmt"
	"sync"

	"github.com/paiml/probar/internal/machine"
	"github.com/paiml/probar/internal/validate"
)

// Kill mechanisms reported in MutantResult.KilledBy.
const (
	KilledByValidation = "validation"
	KilledByPath       = "path_assertions"
	KilledByExecution  = "execution"
)

// MutantResult is the verdict for one mutant.
type MutantResult struct {
	ID          string `json:"id"`
	Class       Class  `json:"class"`
	Description string `json:"description"`

	Killed bool `json:"killed"`

	// KilledBy names the mechanism that detected the defect, empty for
	// survivors.
	KilledBy string `json:"killed_by,omitempty"`

	// Detail explains the kill in human terms.
	Detail string `json:"detail,omitempty"`
}

// ClassCount aggregates kill statistics for one operator class.
type ClassCount struct {
	Total  int `json:"total"`
	Killed int `json:"killed"`
}

// ScoreResult aggregates the mutation score across all mutants.
type ScoreResult struct {
	Total   int                  `json:"total"`
	Killed  int                  `json:"killed"`
	Score   float64              `json:"score"`
	ByClass map[Class]ClassCount `json:"by_class"`
	Results []MutantResult       `json:"results"`
}

// Score applies static falsification to every mutant: a mutant is killed
// iff (a) validating it produces an Error-severity issue absent from the
// base spec, or (b) the playbook's path assertions cannot be satisfied by
// any path through the mutant's transition graph from its initial state.
//
// Scoring is read-only against the base playbook and embarrassingly
// parallel; workers mutants are evaluated concurrently, each writing its
// own result slot. workers < 1 means one worker.
func Score(pb *machine.Playbook, mutants []Mutant, workers int) ScoreResult {
	if workers < 1 {
		workers = 1
	}

	base := baselineErrors(&pb.Machine)
	results := make([]MutantResult, len(mutants))

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = scoreOne(pb, mutants[i], base)
			}
		}()
	}
	for i := range mutants {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return aggregate(results)
}

// scoreOne evaluates one mutant against the static falsification rule.
func scoreOne(pb *machine.Playbook, m Mutant, base map[string]bool) MutantResult {
	res := MutantResult{ID: m.ID, Class: m.Class, Description: m.Description}

	issues, err := validate.Validate(m.Spec)
	if err != nil {
		// Mutation operators keep mutants referentially closed, but a
		// dangling reference is still a kill if one ever appears.
		res.Killed = true
		res.KilledBy = KilledByValidation
		res.Detail = err.Error()
		return res
	}
	for _, issue := range issues {
		if issue.Severity != validate.SeverityError {
			continue
		}
		if !base[issueKey(issue)] {
			res.Killed = true
			res.KilledBy = KilledByValidation
			res.Detail = issue.Error()
			return res
		}
	}

	if !pb.Path.Empty() && !PathSatisfiable(m.Spec, pb.Path) {
		res.Killed = true
		res.KilledBy = KilledByPath
		res.Detail = "no path through the mutant satisfies the declared path assertions"
	}
	return res
}

// baselineErrors collects the Error-severity issues of the base spec so
// mutant issues can be compared against them. A base spec with dangling
// references has no baseline; mutants are judged against an empty set.
func baselineErrors(spec *machine.StateMachineSpec) map[string]bool {
	base := make(map[string]bool)
	issues, err := validate.Validate(spec)
	if err != nil {
		return base
	}
	for _, issue := range issues {
		if issue.Severity == validate.SeverityError {
			base[issueKey(issue)] = true
		}
	}
	return base
}

func issueKey(i validate.Issue) string {
	return fmt.Sprintf("%s/%s", i.Category, i.Target)
}

func aggregate(results []MutantResult) ScoreResult {
	sr := ScoreResult{
		Total:   len(results),
		ByClass: make(map[Class]ClassCount, len(Classes)),
		Results: results,
	}
	for _, c := range Classes {
		sr.ByClass[c] = ClassCount{}
	}
	for _, r := range results {
		cc := sr.ByClass[r.Class]
		cc.Total++
		if r.Killed {
			cc.Killed++
			sr.Killed++
		}
		sr.ByClass[r.Class] = cc
	}
	if sr.Total > 0 {
		sr.Score = float64(sr.Killed) / float64(sr.Total)
	}
	return sr
}

// PathSatisfiable reports whether any path through spec's transition graph
// from its initial state satisfies the path assertions: visiting every
// must_visit state, avoiding every must_not_visit state, and ending at
// ends_at when one is declared.
//
// The search runs breadth-first over (state, visited-subset)
// configurations, ignoring guards: this is graph search, not live
// execution.
func PathSatisfiable(spec *machine.StateMachineSpec, pa machine.PathAssertions) bool {
	if pa.Empty() {
		return true
	}

	banned := make(map[machine.StateID]bool, len(pa.MustNotVisit))
	for _, id := range pa.MustNotVisit {
		banned[id] = true
	}
	if banned[spec.Initial] {
		return false
	}
	if pa.EndsAt != "" && (banned[pa.EndsAt] || !spec.HasState(pa.EndsAt)) {
		return false
	}

	// Bit per must_visit state; a configuration is accepting when all bits
	// are set and the state matches ends_at (or ends_at is unconstrained).
	bit := make(map[machine.StateID]uint, len(pa.MustVisit))
	for i, id := range pa.MustVisit {
		bit[id] = 1 << uint(i)
	}
	full := uint(1<<uint(len(pa.MustVisit))) - 1

	type config struct {
		state machine.StateID
		seen  uint
	}
	start := config{state: spec.Initial, seen: bit[spec.Initial]}
	accepting := func(c config) bool {
		return c.seen == full && (pa.EndsAt == "" || c.state == pa.EndsAt)
	}
	if accepting(start) {
		return true
	}

	visited := map[config]bool{start: true}
	queue := []config{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, t := range spec.Transitions {
			if t.From != cur.state || banned[t.To] {
				continue
			}
			next := config{state: t.To, seen: cur.seen | bit[t.To]}
			if visited[next] {
				continue
			}
			if accepting(next) {
				return true
			}
			visited[next] = true
			queue = append(queue, next)
		}
	}
	return false
}
