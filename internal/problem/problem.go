// Package problem holds the static exercise catalog. There is exactly one
// problem today; a real catalog is future work.
package problem

// Problem is the immutable descriptor attached to a lobby when its game
// starts and shipped to both clients inside game_start.
type Problem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Examples    []Example `json:"examples"`
	Template    string    `json:"template"`
	TimeLimit   int       `json:"timeLimit"` // seconds
}

type Example struct {
	Input       string `json:"input"`
	Output      string `json:"output"`
	Explanation string `json:"explanation"`
}

// TestCase pairs stdin with the output the judge expects.
type TestCase struct {
	Input          string
	ExpectedOutput string
}

const twoSumTemplate = `# Read input
import sys
lines = sys.stdin.read().strip().split('\n')
nums = eval(lines[0])  # Parse array from string
target = int(lines[1])

# Your solution here
def two_sum(nums, target):
    # Write your solution here
    pass

# Call function and print result
result = two_sum(nums, target)
print(result)`

// TwoSum returns the hardcoded exercise every duel plays.
func TwoSum() *Problem {
	return &Problem{
		ID:    "two-sum",
		Title: "Two Sum",
		Description: "Given an array of integers nums and an integer target, " +
			"return indices of the two numbers such that they add up to target. " +
			"Input: First line contains the array as a string (e.g., [2,7,11,15]), " +
			"second line contains the target integer.",
		Examples: []Example{
			{
				Input:       "[2,7,11,15]\n9",
				Output:      "[0, 1]",
				Explanation: "Because nums[0] + nums[1] == 9, we return [0, 1].",
			},
		},
		Template:  twoSumTemplate,
		TimeLimit: 300,
	}
}

// TwoSumTestCases returns the fixed judging set for TwoSum.
func TwoSumTestCases() []TestCase {
	return []TestCase{
		{Input: "[2,7,11,15]\n9", ExpectedOutput: "[0, 1]"},
		{Input: "[3,2,4]\n6", ExpectedOutput: "[1, 2]"},
		{Input: "[3,3]\n6", ExpectedOutput: "[0, 1]"},
		{Input: "[1,2,3,4,5]\n9", ExpectedOutput: "[3, 4]"},
		{Input: "[2,5,5,11]\n10", ExpectedOutput: "[1, 2]"},
	}
}

// TestCasesFor resolves a problem id to its judging set, defaulting to the
// Two Sum set for anything unknown.
func TestCasesFor(id string) []TestCase {
	switch id {
	case "two-sum":
		return TwoSumTestCases()
	default:
		return TwoSumTestCases()
	}
}
