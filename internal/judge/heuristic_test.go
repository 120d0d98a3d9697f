package judge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shibacoder/shibacoder-backend/internal/problem"
)

// The heuristic grader is a deterministic mock oracle: it inspects code
// text, it does not execute anything, and these tests pin the rule table
// rather than any notion of real correctness.

const optimalSolution = `def two_sum(nums, target):
    seen = {}
    for i, n in enumerate(nums):
        if target - n in seen:
            return [seen[target - n], i]
        seen[n] = i`

const bruteForceSolution = `def two_sum(nums, target):
    for x in range(len(nums)):
        for y in range(x + 1, len(nums)):
            if nums[x] + nums[y] == target:
                return [x, y]`

func TestHeuristic_RuleTable(t *testing.T) {
	cases := []struct {
		name       string
		code       string
		wantPassed int
		wantError  string
	}{
		{
			name:       "no function definition",
			code:       "print('hello')",
			wantPassed: 0,
			wantError:  "Solution must be defined as a function",
		},
		{
			name:       "function without return",
			code:       "def two_sum(a, b):\n    pass",
			wantPassed: 0,
			wantError:  "Function must return a value",
		},
		{
			name:       "ignores the target parameter",
			code:       "def solve(xs):\n    give = 1\n    return give",
			wantPassed: 1,
			wantError:  "Function doesn't seem to use the target parameter",
		},
		{
			name:       "never touches the nums array",
			code:       "def solve(xs, target):\n    return target",
			wantPassed: 1,
			wantError:  "Function doesn't properly access the nums array",
		},
		{
			name:       "no index-shaped result",
			code:       "def solve(nums, target):\n    return nums[0] + target",
			wantPassed: 2,
			wantError:  "Function doesn't return proper indices format",
		},
		{
			name:       "full solution with enumerate",
			code:       optimalSolution,
			wantPassed: 5,
		},
		{
			name:       "loop-based solution without enumerate",
			code:       bruteForceSolution,
			wantPassed: 4,
		},
	}

	h := NewHeuristic()
	tests := problem.TwoSumTestCases()

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := h.Run(context.Background(), tc.code, tests)
			assert.Equal(t, tc.wantPassed, out.Passed)
			assert.Equal(t, len(tests), out.Total)
			assert.Equal(t, tc.wantPassed == len(tests), out.Completed)
			if tc.wantError == "" {
				assert.Empty(t, out.Errors)
			} else {
				require.Len(t, out.Errors, 1)
				assert.Equal(t, tc.wantError, out.Errors[0])
			}
		})
	}
}

func TestHeuristic_MissingIterationDiagnostic(t *testing.T) {
	// Index-shaped return but no loop and no hash table.
	code := "def solve(nums, target):\n    return [0, target - nums[0]]"

	out := NewHeuristic().Run(context.Background(), code, problem.TwoSumTestCases())
	assert.Equal(t, 3, out.Passed)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "Solution needs iteration or hash table for efficiency", out.Errors[0])
}

func TestHeuristic_Deterministic(t *testing.T) {
	h := NewHeuristic()
	tests := problem.TwoSumTestCases()

	first := h.Run(context.Background(), optimalSolution, tests)
	for i := 0; i < 10; i++ {
		again := h.Run(context.Background(), optimalSolution, tests)
		// Runtime is synthetic and presentation-only; everything that
		// feeds a decision must be stable.
		assert.Equal(t, first.Passed, again.Passed)
		assert.Equal(t, first.Total, again.Total)
		assert.Equal(t, first.Completed, again.Completed)
		assert.Equal(t, first.Errors, again.Errors)
	}
	assert.True(t, first.Completed)
}
