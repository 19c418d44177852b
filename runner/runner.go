// Package runner runs puzzle solvers against their inputs.
//
// A Runner fetches the input for a part, calls the solver, optionally submits
// the answer and prints the result. Across all parts started on one Runner it
// enforces the ordering policy from its Options: by default solvers run one
// after another in the order their parts were started; with Concurrency they
// overlap, and with ResultsInOrder (the default) their results are still
// reported in start order.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/aocd/config"
	"github.com/isdmx/aocd/source"
)

// Solver computes an answer from the puzzle input. Returning the zero
// source.Answer means the solver has no answer yet.
type Solver func(ctx context.Context, input string) (source.Answer, error)

// IntSolver adapts a function returning an integer answer.
func IntSolver(fn func(input string) int) Solver {
	return func(_ context.Context, input string) (source.Answer, error) {
		return source.Int(fn(input)), nil
	}
}

// StringSolver adapts a function returning a string answer.
func StringSolver(fn func(input string) string) Solver {
	return func(_ context.Context, input string) (source.Answer, error) {
		return source.String(fn(input)), nil
	}
}

// Options control submission, output and scheduling.
type Options struct {
	// Submit answers after solving.
	Submit bool
	// Concurrency lets solvers of different parts overlap.
	Concurrency bool
	// PrintResults writes a line per part to the output.
	PrintResults bool
	// ResultsInOrder reports results in start order even with Concurrency.
	ResultsInOrder bool
	// Time reports how long each solver took.
	Time bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Submit:         false,
		Concurrency:    false,
		PrintResults:   true,
		ResultsInOrder: true,
		Time:           false,
	}
}

// OptionsFromConfig converts the runner section of the application config.
func OptionsFromConfig(cfg config.RunnerConfig) Options {
	return Options{
		Submit:         cfg.Submit,
		Concurrency:    cfg.Concurrency,
		PrintResults:   cfg.PrintResults,
		ResultsInOrder: cfg.ResultsInOrder,
		Time:           cfg.Time,
	}
}

// PartialOptions sets only some options; nil fields keep their base value.
// Older callers that only know a subset of the options use this shape.
type PartialOptions struct {
	Submit         *bool
	Concurrency    *bool
	PrintResults   *bool
	ResultsInOrder *bool
	Time           *bool
}

// Apply overlays p on base.
func (p PartialOptions) Apply(base Options) Options {
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&base.Submit, p.Submit)
	set(&base.Concurrency, p.Concurrency)
	set(&base.PrintResults, p.PrintResults)
	set(&base.ResultsInOrder, p.ResultsInOrder)
	set(&base.Time, p.Time)
	return base
}

// Config is what a Runner is built from.
type Config struct {
	Source source.Source
	// Base defaults to DefaultOptions.
	Base *Options
	// Options are applied over Base.
	Options PartialOptions
	// Output defaults to os.Stdout.
	Output io.Writer
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// PartResult is the outcome of running one part.
type PartResult struct {
	Answer source.Answer
	// Correct is nil unless the answer was submitted.
	Correct  *bool
	Duration time.Duration
}

// Runner schedules solvers. It is safe for concurrent use.
type Runner struct {
	source  source.Source
	options Options
	logger  *zap.Logger

	outMu sync.Mutex
	out   io.Writer

	// tasksComplete is closed once every chained part started so far is done.
	mu            sync.Mutex
	tasksComplete <-chan struct{}
}

// New creates a Runner.
func New(cfg Config) (*Runner, error) {
	if cfg.Source == nil {
		return nil, errors.New("runner requires a source")
	}

	base := DefaultOptions()
	if cfg.Base != nil {
		base = *cfg.Base
	}
	r := &Runner{
		source:  cfg.Source,
		options: cfg.Options.Apply(base),
		logger:  cfg.Logger,
		out:     cfg.Output,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.out == nil {
		r.out = os.Stdout
	}

	done := make(chan struct{})
	close(done)
	r.tasksComplete = done
	return r, nil
}

// Source returns the source the runner reads from.
func (r *Runner) Source() source.Source {
	return r.source
}

// Options returns the effective options.
func (r *Runner) Options() Options {
	return r.options
}

// Part is a started part. Its result is available once Done is closed.
type Part struct {
	done   chan struct{}
	result PartResult
	err    error
}

// Done is closed when the part has finished, including reporting.
func (p *Part) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the part has finished and returns its result.
func (p *Part) Wait() (PartResult, error) {
	<-p.done
	return p.result, p.err
}

// RunPart runs solver for one part and waits for it.
func (r *Runner) RunPart(ctx context.Context, year, day, part int, solver Solver) (PartResult, error) {
	return r.Start(ctx, year, day, part, solver).Wait()
}

// Start schedules solver for one part and returns without waiting. The input
// is requested immediately whatever the scheduling policy.
func (r *Runner) Start(ctx context.Context, year, day, part int, solver Solver) *Part {
	input := r.fetchInput(ctx, year, day)

	compute := func() (func() PartResult, error) {
		return r.solve(ctx, year, day, part, solver, input)
	}

	p := &Part{done: make(chan struct{})}

	if r.options.Concurrency && !r.options.ResultsInOrder {
		go func() {
			defer close(p.done)
			p.finish(compute())
		}()
		return p
	}

	if r.options.Concurrency {
		// Solve now; only reporting waits for earlier parts.
		type computed struct {
			report func() PartResult
			err    error
		}
		ready := make(chan computed, 1)
		go func() {
			report, err := r.solve(ctx, year, day, part, solver, input)
			ready <- computed{report, err}
		}()
		compute = func() (func() PartResult, error) {
			c := <-ready
			return c.report, c.err
		}
	}

	r.mu.Lock()
	prev := r.tasksComplete
	r.tasksComplete = p.done
	r.mu.Unlock()

	go func() {
		defer close(p.done)
		<-prev
		p.finish(compute())
	}()
	return p
}

func (p *Part) finish(report func() PartResult, err error) {
	if err != nil {
		p.err = err
		return
	}
	p.result = report()
}

type pendingInput struct {
	done  chan struct{}
	input string
	err   error
}

func (r *Runner) fetchInput(ctx context.Context, year, day int) *pendingInput {
	in := &pendingInput{done: make(chan struct{})}
	go func() {
		defer close(in.done)
		in.input, in.err = r.source.Input(ctx, year, day)
	}()
	return in
}

// solve does the work for one part and returns a function that reports it.
func (r *Runner) solve(ctx context.Context, year, day, part int, solver Solver, input *pendingInput) (func() PartResult, error) {
	<-input.done
	if input.err != nil {
		return nil, fmt.Errorf("failed to get input for %d day %d: %w", year, day, input.err)
	}

	r.logger.Debug("running solver", zap.Int("year", year), zap.Int("day", day), zap.Int("part", part))
	start := time.Now()
	answer, err := callSolver(ctx, solver, input.input)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("%d Day %d Part %d: %w", year, day, part, err)
	}

	var correct *bool
	if r.options.Submit && !answer.IsZero() {
		ok, err := r.source.Submit(ctx, year, day, part, answer)
		if err != nil {
			return nil, fmt.Errorf("failed to submit %d Day %d Part %d: %w", year, day, part, err)
		}
		correct = &ok
	}

	return func() PartResult {
		if r.options.PrintResults {
			r.printResult(year, day, part, answer, correct, elapsed)
		}
		return PartResult{Answer: answer, Correct: correct, Duration: elapsed}
	}, nil
}

// callSolver turns a solver panic into an error so later parts still run.
func callSolver(ctx context.Context, solver Solver, input string) (answer source.Answer, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("solver panicked: %v", rec)
		}
	}()
	return solver(ctx, input)
}

func (r *Runner) printResult(year, day, part int, answer source.Answer, correct *bool, elapsed time.Duration) {
	r.outMu.Lock()
	defer r.outMu.Unlock()

	var took string
	if r.options.Time {
		took = fmt.Sprintf(" (took %s)", elapsed.Round(time.Microsecond))
	}
	if answer.IsZero() {
		fmt.Fprintf(r.out, "%d Day %d Part %d finished executing with no answer returned.%s\n", year, day, part, took)
	} else {
		fmt.Fprintf(r.out, "%d Day %d Part %d: %s%s\n", year, day, part, answer, took)
	}
	if correct != nil {
		verdict := "wrong."
		if *correct {
			verdict = "correct!"
		}
		fmt.Fprintf(r.out, "The answer has been submitted and it is %s\n", verdict)
	}
}
