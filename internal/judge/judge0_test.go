package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shibacoder/shibacoder-backend/internal/problem"
)

// fakeJudge0 simulates the submit/poll API: each submission token yields
// a scripted sequence of poll results, the last one repeating.
type fakeJudge0 struct {
	mu      sync.Mutex
	submits int
	polls   map[string]int
	script  func(submission int) []submissionResult
}

func newFakeJudge0(script func(int) []submissionResult) *fakeJudge0 {
	return &fakeJudge0{polls: map[string]int{}, script: script}
}

func (f *fakeJudge0) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /submissions", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.submits++
		token := fmt.Sprintf("tok-%d", f.submits)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
	})
	mux.HandleFunc("GET /submissions/{token}", func(w http.ResponseWriter, r *http.Request) {
		token := r.PathValue("token")
		var n int
		fmt.Sscanf(token, "tok-%d", &n)

		f.mu.Lock()
		seq := f.script(n)
		i := f.polls[token]
		if i >= len(seq) {
			i = len(seq) - 1
		}
		f.polls[token]++
		f.mu.Unlock()

		_ = json.NewEncoder(w).Encode(seq[i])
	})
	return mux
}

func accepted(runtime string) submissionResult {
	var r submissionResult
	r.Status.ID = statusAccepted
	r.Status.Description = "Accepted"
	r.Time = runtime
	return r
}

func verdict(id int, desc, stdout, stderr string) submissionResult {
	var r submissionResult
	r.Status.ID = id
	r.Status.Description = desc
	r.Stdout = stdout
	r.Stderr = stderr
	return r
}

func newTestClient(t *testing.T, url string) *Judge0 {
	t.Helper()
	j := NewJudge0(url, "test-key", "test-host", zap.NewNop())
	j.PollInterval = time.Millisecond
	j.MaxPolls = 5
	return j
}

func TestJudge0_AllAccepted(t *testing.T) {
	fake := newFakeJudge0(func(int) []submissionResult {
		return []submissionResult{accepted("0.002")}
	})
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	out := newTestClient(t, srv.URL).Run(context.Background(), "code", problem.TwoSumTestCases())

	assert.Equal(t, 5, out.Passed)
	assert.Equal(t, 5, out.Total)
	assert.True(t, out.Completed)
	assert.Empty(t, out.Errors)
	assert.Equal(t, 2, out.Runtime, "average of reported 2ms runtimes")
}

func TestJudge0_WrongAnswerDiff(t *testing.T) {
	fake := newFakeJudge0(func(int) []submissionResult {
		return []submissionResult{verdict(4, "Wrong Answer", "[1, 1]", "")}
	})
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	tests := problem.TwoSumTestCases()[:1]
	out := newTestClient(t, srv.URL).Run(context.Background(), "code", tests)

	assert.Zero(t, out.Passed)
	assert.False(t, out.Completed)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "Test 1: Wrong Answer - Expected: [0, 1], Got: [1, 1]", out.Errors[0])
}

func TestJudge0_RuntimeErrorUsesStderr(t *testing.T) {
	fake := newFakeJudge0(func(int) []submissionResult {
		return []submissionResult{verdict(11, "Runtime Error (NZEC)", "", "Traceback: boom")}
	})
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	out := newTestClient(t, srv.URL).Run(context.Background(), "code", problem.TwoSumTestCases()[:1])

	require.Len(t, out.Errors, 1)
	assert.Equal(t, "Test 1: Runtime Error (NZEC) - Traceback: boom", out.Errors[0])
}

func TestJudge0_WaitsThroughQueue(t *testing.T) {
	fake := newFakeJudge0(func(int) []submissionResult {
		return []submissionResult{
			verdict(statusInQueue, "In Queue", "", ""),
			verdict(statusProcessing, "Processing", "", ""),
			accepted("0.010"),
		}
	})
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	out := newTestClient(t, srv.URL).Run(context.Background(), "code", problem.TwoSumTestCases()[:1])

	assert.Equal(t, 1, out.Passed)
	assert.True(t, out.Completed)
}

func TestJudge0_PollBudgetExhausted(t *testing.T) {
	fake := newFakeJudge0(func(int) []submissionResult {
		return []submissionResult{verdict(statusProcessing, "Processing", "", "")}
	})
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	j := newTestClient(t, srv.URL)
	j.MaxPolls = 3
	out := j.Run(context.Background(), "code", problem.TwoSumTestCases()[:2])

	assert.Zero(t, out.Passed)
	require.Len(t, out.Errors, 2)
	assert.Equal(t, "Test 1: Timeout waiting for result", out.Errors[0])
	assert.Equal(t, "Test 2: Timeout waiting for result", out.Errors[1])
}

func TestJudge0_RejectedSubmissionScoresZero(t *testing.T) {
	// The judge answers but refuses: a per-test failure, not a transport
	// failure, so no fallback.
	mux := http.NewServeMux()
	mux.HandleFunc("POST /submissions", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "submission quota exceeded", http.StatusBadRequest)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out := newTestClient(t, srv.URL).Run(context.Background(), "code", problem.TwoSumTestCases()[:1])

	assert.Zero(t, out.Passed)
	require.Len(t, out.Errors, 1)
	assert.True(t, strings.HasPrefix(out.Errors[0], "Test 1: submission quota exceeded"))
}

func TestJudge0_TransportFailureFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // nothing listening: every request is a transport error

	j := newTestClient(t, url)
	tests := problem.TwoSumTestCases()

	out := j.Run(context.Background(), optimalSolution, tests)

	// The heuristic grader judged the whole submission instead.
	want := NewHeuristic().Run(context.Background(), optimalSolution, tests)
	assert.Equal(t, want.Passed, out.Passed)
	assert.Equal(t, want.Completed, out.Completed)
	assert.Equal(t, want.Errors, out.Errors)
}

func TestJudge0_SubmitPayload(t *testing.T) {
	var got submissionRequest
	var gotKey, gotHost string

	mux := http.NewServeMux()
	mux.HandleFunc("POST /submissions", func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-RapidAPI-Key")
		gotHost = r.Header.Get("X-RapidAPI-Host")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
	})
	mux.HandleFunc("GET /submissions/tok-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(accepted("0.001"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tests := problem.TwoSumTestCases()[:1]
	newTestClient(t, srv.URL).Run(context.Background(), "my code", tests)

	assert.Equal(t, PythonLanguageID, got.LanguageID)
	assert.Equal(t, "my code", got.SourceCode)
	assert.Equal(t, tests[0].Input, got.Stdin)
	assert.Equal(t, "[0, 1]", got.ExpectedOutput)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "test-host", gotHost)
}
