// Package scheduler executes scenario units on a bounded pool of workers.
//
// Units are placed on a buffered channel that is closed before the workers
// start, so each unit is received by exactly one worker. A worker converts
// anything that goes wrong inside a unit (panic, timeout, cancellation) into
// an Error outcome; no unit can stop the batch. Execute returns once every
// unit has an outcome.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"scenctl/internal/scenario"
	"scenctl/pkg/logging"
)

const subsystem = "Scheduler"

// Options control a single Execute call
type Options struct {
	// Parallelism is the number of concurrent workers; values below 1 mean 1
	Parallelism int
	// DefaultTimeout applies to units without their own timeout; 0 disables it
	DefaultTimeout time.Duration
	// OnStart is called by a worker before it runs a unit
	OnStart func(workerID int, unit *scenario.Unit)
	// OnComplete is called by a worker after a unit produced its outcome
	OnComplete func(workerID int, result scenario.Result)
}

// Execute runs every unit once and returns the results in completion order.
// Callbacks in opts are invoked concurrently from worker goroutines.
func Execute(ctx context.Context, units []*scenario.Unit, opts Options) []scenario.Result {
	results := make([]scenario.Result, 0, len(units))
	if len(units) == 0 {
		return results
	}

	unitChan := make(chan *scenario.Unit, len(units))
	resultChan := make(chan scenario.Result, len(units))

	for _, u := range units {
		unitChan <- u
	}
	close(unitChan)

	numWorkers := opts.Parallelism
	if numWorkers < 1 {
		numWorkers = 1
	}
	if numWorkers > len(units) {
		numWorkers = len(units)
	}

	logging.Debug(subsystem, "Executing %d scenarios with %d workers", len(units), numWorkers)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for u := range unitChan {
				if opts.OnStart != nil {
					opts.OnStart(workerID, u)
				}
				logging.Debug(subsystem, "Worker %d executing scenario: %s", workerID, u.ID)

				result := runUnit(ctx, u, opts.DefaultTimeout)
				if opts.OnComplete != nil {
					opts.OnComplete(workerID, result)
				}
				resultChan <- result
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for result := range resultChan {
		results = append(results, result)
	}

	return results
}

// runUnit executes a single unit under its timeout. If the deadline passes
// the body is abandoned: its context is cancelled but the worker does not
// wait for it.
func runUnit(ctx context.Context, u *scenario.Unit, defaultTimeout time.Duration) scenario.Result {
	started := time.Now()

	if err := ctx.Err(); err != nil {
		return scenario.NewResult(u, scenario.Error(fmt.Sprintf("not started: %v", err), ""), started, 0)
	}

	timeout := u.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var unitCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		unitCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		unitCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan scenario.Outcome, 1)
	go func() {
		done <- guard(unitCtx, u.Run)
	}()

	var outcome scenario.Outcome
	select {
	case outcome = <-done:
	case <-unitCtx.Done():
		if ctx.Err() == nil && errors.Is(unitCtx.Err(), context.DeadlineExceeded) {
			outcome = scenario.Error(fmt.Sprintf("timed out after %v", timeout), "")
		} else {
			outcome = scenario.Error(fmt.Sprintf("cancelled: %v", context.Cause(ctx)), "")
		}
		logging.Warn(subsystem, "Abandoning scenario %s: %s", u.ID, outcome.Message)
	}

	return scenario.NewResult(u, outcome, started, time.Since(started))
}

// guard runs fn and turns a panic or a missing outcome into an Error outcome
func guard(ctx context.Context, fn scenario.RunFunc) (outcome scenario.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = scenario.Error(fmt.Sprintf("panic: %v", r), string(debug.Stack()))
		}
	}()

	if fn == nil {
		return scenario.Error("scenario has no body", "")
	}

	outcome = fn(ctx)
	switch outcome.Kind {
	case scenario.KindSuccess, scenario.KindFailure, scenario.KindError:
		return outcome
	default:
		return scenario.Error(fmt.Sprintf("scenario returned unknown outcome kind %q", outcome.Kind), outcome.Message)
	}
}

// SortByDiscovery orders results by the discovery index of their unit
func SortByDiscovery(results []scenario.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Index < results[j].Index
	})
}
