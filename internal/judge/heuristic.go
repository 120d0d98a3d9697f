package judge

import (
	"context"
	"strings"

	"github.com/shibacoder/shibacoder-backend/internal/problem"
)

// Heuristic grades a submission by structural inspection of the code text
// instead of executing it. It keeps the duel playable when no external
// judge is configured, and it is what tests should treat it as: a
// deterministic mock oracle, not a correctness verifier. Identical code
// and test set always yield the identical pass count and error list.
type Heuristic struct{}

func NewHeuristic() *Heuristic { return &Heuristic{} }

// signals are the structural features the grader looks for in a Two Sum
// attempt, in the order the rule table consults them.
type signals struct {
	hasFunction   bool // a def somewhere
	hasReturn     bool
	hasTarget     bool // touches the target parameter
	hasNumsAccess bool // indexes or iterates the nums array
	hasIndices    bool // returns something index-shaped
	hasIteration  bool // loop or hash table
	hasEnumerate  bool
}

func inspect(code string) signals {
	lower := strings.ToLower(code)
	anyOf := func(patterns ...string) bool {
		for _, p := range patterns {
			if strings.Contains(code, p) {
				return true
			}
		}
		return false
	}
	return signals{
		hasFunction:   strings.Contains(code, "def "),
		hasReturn:     strings.Contains(code, "return"),
		hasTarget:     strings.Contains(lower, "target"),
		hasNumsAccess: anyOf("nums[", "nums.", "enumerate(nums"),
		hasIndices:    anyOf("[i,", "[0,", "[1,", "i,", "j,", "return ["),
		hasIteration:  anyOf("for", "while", "dict", "{}"),
		hasEnumerate:  strings.Contains(code, "enumerate"),
	}
}

// grade is the rule table: a graduated pass count plus the diagnostic for
// the first missing signal. Total comes from the test set.
func grade(sig signals, total int) (passed int, errs []string) {
	switch {
	case !sig.hasFunction:
		return 0, []string{"Solution must be defined as a function"}
	case !sig.hasReturn:
		return 0, []string{"Function must return a value"}
	case !sig.hasTarget:
		return 1, []string{"Function doesn't seem to use the target parameter"}
	case !sig.hasNumsAccess:
		return 1, []string{"Function doesn't properly access the nums array"}
	case !sig.hasIndices:
		return 2, []string{"Function doesn't return proper indices format"}
	case !sig.hasIteration:
		return 3, []string{"Solution needs iteration or hash table for efficiency"}
	case sig.hasEnumerate:
		return total, nil
	default:
		return total - 1, nil
	}
}

func (h *Heuristic) Run(_ context.Context, code string, tests []problem.TestCase) Outcome {
	total := len(tests)
	passed, errs := grade(inspect(code), total)
	if passed > total {
		passed = total
	}
	if errs == nil {
		errs = []string{}
	}
	return Outcome{
		Passed:    passed,
		Total:     total,
		Completed: passed == total,
		Runtime:   syntheticRuntime(50, 200),
		Errors:    errs,
	}
}
