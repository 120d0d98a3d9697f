// Package judge scores submitted code against a problem's fixed test set,
// either through the Judge0 REST API or a local heuristic grader. Both
// paths produce the same Outcome; callers never learn which one ran.
package judge

import (
	"context"
	"math/rand"

	"github.com/shibacoder/shibacoder-backend/internal/problem"
)

// Outcome is the result of judging one submission against a test set.
type Outcome struct {
	Passed    int
	Total     int
	Completed bool
	Runtime   int // average runtime in ms; synthetic when unmeasured
	Errors    []string
}

// Runner is the judging contract. Run never fails: an external judge
// failure is recovered internally by falling back to the heuristic
// grader, so the caller always gets a usable Outcome.
type Runner interface {
	Run(ctx context.Context, code string, tests []problem.TestCase) Outcome
}

// syntheticRuntime fabricates a plausible runtime for graders that do not
// execute anything. Presentation only; it never feeds a pass/fail call.
func syntheticRuntime(lo, hi int) int {
	return lo + rand.Intn(hi-lo)
}
