package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shibacoder/shibacoder-backend/internal/problem"
)

// PythonLanguageID is the Judge0 id for Python 3.8.1, the only submission
// language today.
const PythonLanguageID = 71

// Judge0 status ids. 1 and 2 are non-terminal; 3 is accepted; everything
// above is a terminal failure of some flavor.
const (
	statusInQueue    = 1
	statusProcessing = 2
	statusAccepted   = 3
)

// Judge0 submits each test case to the Judge0 API and polls the returned
// token until a terminal verdict. Any transport-level failure aborts the
// external run and hands the whole submission to the fallback grader.
type Judge0 struct {
	BaseURL string
	APIKey  string
	APIHost string

	// Tunable so tests can run against httptest without real delays.
	PollInterval time.Duration
	MaxPolls     int

	HTTPClient *http.Client
	Fallback   Runner
	Logger     *zap.Logger
}

func NewJudge0(baseURL, apiKey, apiHost string, logger *zap.Logger) *Judge0 {
	return &Judge0{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		APIKey:       apiKey,
		APIHost:      apiHost,
		PollInterval: time.Second,
		MaxPolls:     15,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
		Fallback:     NewHeuristic(),
		Logger:       logger,
	}
}

type submissionRequest struct {
	LanguageID     int    `json:"language_id"`
	SourceCode     string `json:"source_code"`
	Stdin          string `json:"stdin"`
	ExpectedOutput string `json:"expected_output"`
}

type submissionCreated struct {
	Token string `json:"token"`
}

type submissionResult struct {
	Status struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	CompileOutput string `json:"compile_output"`
	Time          string `json:"time"` // seconds, as a decimal string
}

// transportError marks failures that abort the whole external run, as
// opposed to per-test verdicts that merely score zero for one case.
type transportError struct{ err error }

func (e transportError) Error() string { return e.err.Error() }

func (j *Judge0) Run(ctx context.Context, code string, tests []problem.TestCase) Outcome {
	total := len(tests)
	passed := 0
	totalRuntime := 0.0
	errs := []string{}

	for i, tc := range tests {
		pass, runtime, verdictErr, err := j.runCase(ctx, code, tc, i+1)
		if err != nil {
			j.Logger.Warn("judge0 unreachable, falling back to heuristic grader",
				zap.Int("test", i+1), zap.Error(err))
			return j.Fallback.Run(ctx, code, tests)
		}
		if pass {
			passed++
			totalRuntime += runtime
		} else if verdictErr != "" {
			errs = append(errs, verdictErr)
		}
	}

	avg := 0
	if total > 0 && totalRuntime > 0 {
		avg = int(totalRuntime / float64(total))
	} else {
		avg = syntheticRuntime(50, 300)
	}

	return Outcome{
		Passed:    passed,
		Total:     total,
		Completed: passed == total && total > 0,
		Runtime:   avg,
		Errors:    errs,
	}
}

// runCase submits one test case and polls to a terminal verdict. The
// returned runtime is in milliseconds. A non-nil error is transport-level
// and aborts the external path for the whole submission.
func (j *Judge0) runCase(ctx context.Context, code string, tc problem.TestCase, n int) (pass bool, runtimeMS float64, verdictErr string, err error) {
	token, submitErr := j.submit(ctx, code, tc)
	if submitErr != nil {
		var te transportError
		if errors.As(submitErr, &te) {
			return false, 0, "", te.err
		}
		// Judge rejected this one submission; score the case as failed.
		return false, 0, fmt.Sprintf("Test %d: %s", n, submitErr.Error()), nil
	}

	for poll := 0; poll < j.MaxPolls; poll++ {
		select {
		case <-ctx.Done():
			return false, 0, "", ctx.Err()
		case <-time.After(j.PollInterval):
		}

		res, pollErr := j.result(ctx, token)
		if pollErr != nil {
			var te transportError
			if errors.As(pollErr, &te) {
				return false, 0, "", te.err
			}
			continue // transient non-200, keep polling
		}

		switch res.Status.ID {
		case statusInQueue, statusProcessing:
			continue
		case statusAccepted:
			ms := 0.0
			if res.Time != "" {
				if secs, convErr := strconv.ParseFloat(res.Time, 64); convErr == nil {
					ms = secs * 1000
				}
			}
			return true, ms, "", nil
		default:
			return false, 0, describeFailure(res, tc, n), nil
		}
	}

	return false, 0, fmt.Sprintf("Test %d: Timeout waiting for result", n), nil
}

// describeFailure builds the per-test error string, preferring an
// expected-vs-got diff, then stderr, then compiler output.
func describeFailure(res *submissionResult, tc problem.TestCase, n int) string {
	desc := res.Status.Description
	if desc == "" {
		desc = "Unknown error"
	}
	msg := fmt.Sprintf("Test %d: %s", n, desc)

	actual := strings.TrimSpace(res.Stdout)
	expected := strings.TrimSpace(tc.ExpectedOutput)
	switch {
	case actual != "" && actual != expected:
		msg += fmt.Sprintf(" - Expected: %s, Got: %s", expected, actual)
	case strings.TrimSpace(res.Stderr) != "":
		msg += " - " + strings.TrimSpace(res.Stderr)
	case strings.TrimSpace(res.CompileOutput) != "":
		msg += " - " + strings.TrimSpace(res.CompileOutput)
	}
	return msg
}

func (j *Judge0) submit(ctx context.Context, code string, tc problem.TestCase) (string, error) {
	body, _ := json.Marshal(submissionRequest{
		LanguageID:     PythonLanguageID,
		SourceCode:     code,
		Stdin:          tc.Input,
		ExpectedOutput: strings.TrimSpace(tc.ExpectedOutput),
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.BaseURL+"/submissions", bytes.NewReader(body))
	if err != nil {
		return "", transportError{err}
	}
	j.setHeaders(req)

	resp, err := j.HTTPClient.Do(req)
	if err != nil {
		return "", transportError{err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		text := strings.TrimSpace(string(raw))
		if text == "" {
			text = "Submission failed"
		}
		return "", fmt.Errorf("%s", text)
	}

	var created submissionCreated
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", transportError{err}
	}
	return created.Token, nil
}

func (j *Judge0) result(ctx context.Context, token string) (*submissionResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.BaseURL+"/submissions/"+token, nil)
	if err != nil {
		return nil, transportError{err}
	}
	j.setHeaders(req)

	resp, err := j.HTTPClient.Do(req)
	if err != nil {
		return nil, transportError{err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("judge0 result status %d", resp.StatusCode)
	}

	var res submissionResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, transportError{err}
	}
	return &res, nil
}

func (j *Judge0) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if j.APIKey != "" {
		req.Header.Set("X-RapidAPI-Key", j.APIKey)
		req.Header.Set("X-RapidAPI-Host", j.APIHost)
	}
}
