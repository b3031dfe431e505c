package feature

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"scenctl/internal/scenario"
	"scenctl/pkg/logging"
)

const (
	subsystem = "Feature"
	// maxCapture bounds how much of a response body or process output is
	// kept for expectation checks.
	maxCapture = 1 << 20
)

// stepResult is the outcome of a single step attempt. failure marks an
// expectation mismatch; err marks a step that could not be performed.
type stepResult struct {
	failure string
	err     error
}

func (r stepResult) ok() bool {
	return r.failure == "" && r.err == nil
}

// executor runs the steps of a scenario
type executor struct {
	client *http.Client
	vars   *expander
	// baseDir is the directory relative exec.dir values resolve against
	baseDir string
}

// runSteps executes steps in order and stops at the first step that does
// not succeed.
func (x *executor) runSteps(ctx context.Context, steps []Step) scenario.Outcome {
	for i, step := range steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
		}

		res := x.runStep(ctx, step)
		switch {
		case res.err != nil:
			return scenario.Error(fmt.Sprintf("step '%s': %v", name, res.err), errorCause(res.err))
		case res.failure != "":
			return scenario.Failure(fmt.Sprintf("step '%s': %s", name, res.failure))
		}
	}
	return scenario.Success()
}

// runStep executes a single step with its retry policy
func (x *executor) runStep(ctx context.Context, step Step) stepResult {
	stepCtx := ctx
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	maxAttempts := 1
	if step.Retry != nil && step.Retry.Count > 0 {
		maxAttempts = step.Retry.Count + 1
	}

	var res stepResult
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 && step.Retry != nil && step.Retry.Delay > 0 {
			delay := step.Retry.Delay
			if step.Retry.BackoffMultiplier > 0 {
				for i := 1; i < attempt; i++ {
					delay = time.Duration(float64(delay) * step.Retry.BackoffMultiplier)
				}
			}

			logging.Debug(subsystem, "Retrying step '%s' in %v (attempt %d/%d)", step.Name, delay, attempt+1, maxAttempts)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-stepCtx.Done():
				timer.Stop()
				return stepResult{err: fmt.Errorf("step cancelled during retry delay: %w", stepCtx.Err())}
			}
		}

		res = x.attempt(stepCtx, step)
		if res.ok() {
			return res
		}
		if stepCtx.Err() != nil {
			break
		}
	}

	return res
}

func (x *executor) attempt(ctx context.Context, step Step) stepResult {
	switch {
	case step.HTTP != nil:
		return x.doHTTP(ctx, step.HTTP, step.Expect)
	case step.Exec != nil:
		return x.doExec(ctx, step.Exec, step.Expect)
	default:
		return stepResult{err: errors.New("step has neither http nor exec action")}
	}
}

func (x *executor) doHTTP(ctx context.Context, req *HTTPRequest, expect Expectation) stepResult {
	url, err := x.vars.expand(req.URL)
	if err != nil {
		return stepResult{err: err}
	}
	body, err := x.vars.expand(req.Body)
	if err != nil {
		return stepResult{err: err}
	}
	headers, err := x.vars.expandMap(req.Headers)
	if err != nil {
		return stepResult{err: err}
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return stepResult{err: fmt.Errorf("invalid request: %w", err)}
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := x.client.Do(httpReq)
	if err != nil {
		return stepResult{err: fmt.Errorf("%s %s failed: %w", method, url, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCapture))
	if err != nil {
		return stepResult{err: fmt.Errorf("reading response body: %w", err)}
	}

	if expect.Status != 0 {
		if resp.StatusCode != expect.Status {
			return stepResult{failure: fmt.Sprintf("expected status %d, got %d", expect.Status, resp.StatusCode)}
		}
	} else if resp.StatusCode >= 400 {
		return stepResult{failure: fmt.Sprintf("expected a successful status, got %d", resp.StatusCode)}
	}

	return checkText(string(data), expect)
}

func (x *executor) doExec(ctx context.Context, c *Command, expect Expectation) stepResult {
	args, err := x.vars.expandAll(c.Command)
	if err != nil {
		return stepResult{err: err}
	}
	env, err := x.vars.expandMap(c.Env)
	if err != nil {
		return stepResult{err: err}
	}
	stdin, err := x.vars.expand(c.Stdin)
	if err != nil {
		return stepResult{err: err}
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = x.baseDir
	if c.Dir != "" {
		dir, err := x.vars.expand(c.Dir)
		if err != nil {
			return stepResult{err: err}
		}
		if !filepath.IsAbs(dir) && x.baseDir != "" {
			dir = filepath.Join(x.baseDir, dir)
		}
		cmd.Dir = dir
	}
	if len(env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var output limitedBuffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	exitCode := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return stepResult{err: fmt.Errorf("running %s: %w", args[0], err)}
		}
		if ctx.Err() != nil {
			return stepResult{err: fmt.Errorf("running %s: %w", args[0], ctx.Err())}
		}
		exitCode = exitErr.ExitCode()
	}

	if exitCode != expect.ExitCode {
		return stepResult{failure: fmt.Sprintf("expected exit code %d, got %d", expect.ExitCode, exitCode)}
	}

	return checkText(output.String(), expect)
}

// checkText applies the contains / not_contains expectations
func checkText(text string, expect Expectation) stepResult {
	lower := strings.ToLower(text)
	for _, want := range expect.Contains {
		if !strings.Contains(lower, strings.ToLower(want)) {
			return stepResult{failure: fmt.Sprintf("expected output to contain %q", want)}
		}
	}
	for _, unwanted := range expect.NotContains {
		if strings.Contains(lower, strings.ToLower(unwanted)) {
			return stepResult{failure: fmt.Sprintf("expected output not to contain %q", unwanted)}
		}
	}
	return stepResult{}
}

// errorCause returns the innermost error message when it adds information
func errorCause(err error) string {
	inner := err
	for {
		next := errors.Unwrap(inner)
		if next == nil {
			break
		}
		inner = next
	}
	if inner == err {
		return ""
	}
	return inner.Error()
}

// limitedBuffer keeps the first maxCapture bytes written to it
type limitedBuffer struct {
	buf bytes.Buffer
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := maxCapture - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}
