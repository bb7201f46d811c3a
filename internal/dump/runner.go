package dump

import (
	"context"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"dbdump/internal/errors"
	"dbdump/internal/logging"
)

// Reporter receives progress for a batch. Both methods are called from the
// goroutine that called Run, in plan order, so implementations need no locking.
// With more than one worker a dump may already be running when Started is called.
type Reporter interface {
	Started(index int, plan *Plan)
	Finished(outcome Outcome)
}

// RunnerOptions configures a Runner
type RunnerOptions struct {
	// Workers is the number of dumps running at once; 1 or less is sequential
	Workers int
	// Timeout bounds each dump; 0 disables it
	Timeout time.Duration
	Fs      afero.Fs
	Logger  *logging.Logger
}

// Runner executes plans through a Dispatcher. A failing dump never stops the others.
type Runner struct {
	dispatcher *Dispatcher
	workers    int
	timeout    time.Duration
	fs         afero.Fs
	logger     *logging.Logger
}

func NewRunner(d *Dispatcher, opts RunnerOptions) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	return &Runner{
		dispatcher: d,
		workers:    opts.Workers,
		timeout:    opts.Timeout,
		fs:         opts.Fs,
		logger:     opts.Logger,
	}
}

// Workers returns the effective pool size
func (r *Runner) Workers() int {
	return r.workers
}

// Run dumps every plan and returns the outcomes in plan order
func (r *Runner) Run(ctx context.Context, plans []*Plan, reporter Reporter) []Outcome {
	if reporter == nil {
		reporter = nopReporter{}
	}
	if r.workers <= 1 || len(plans) <= 1 {
		return r.runSequential(ctx, plans, reporter)
	}
	return r.runParallel(ctx, plans, reporter)
}

func (r *Runner) runSequential(ctx context.Context, plans []*Plan, reporter Reporter) []Outcome {
	outcomes := make([]Outcome, 0, len(plans))
	for i, plan := range plans {
		reporter.Started(i, plan)
		outcome := r.runOne(ctx, i, plan)
		reporter.Finished(outcome)
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (r *Runner) runParallel(ctx context.Context, plans []*Plan, reporter Reporter) []Outcome {
	outcomes := make([]Outcome, len(plans))
	done := make([]chan struct{}, len(plans))
	for i := range done {
		done[i] = make(chan struct{})
	}

	var g errgroup.Group
	g.SetLimit(r.workers)

	// g.Go blocks once the pool is full, so scheduling runs on its own
	// goroutine while this one delivers results in order.
	go func() {
		for i, plan := range plans {
			g.Go(func() error {
				defer close(done[i])
				outcomes[i] = r.runOne(ctx, i, plan)
				return nil
			})
		}
	}()

	for i, plan := range plans {
		reporter.Started(i, plan)
		<-done[i]
		reporter.Finished(outcomes[i])
	}
	_ = g.Wait()

	return outcomes
}

func (r *Runner) runOne(ctx context.Context, index int, plan *Plan) Outcome {
	outcome := Outcome{Index: index, Plan: plan}

	if err := ctx.Err(); err != nil {
		outcome.Err = errors.WrapError(err, "dump was not started")
		return outcome
	}

	dumpCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		dumpCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	outcome.Result, outcome.Err = r.dispatcher.Dump(dumpCtx, plan)
	outcome.Duration = time.Since(start)

	if outcome.Succeeded() {
		if info, err := r.fs.Stat(plan.BackupPath); err == nil {
			outcome.Size = info.Size()
		}
	}

	var identifier string
	if plan != nil {
		identifier = plan.Connection.Identifier()
	}
	r.logger.LogDumpAttempt(ctx, identifier, planPath(plan), outcome.Succeeded(), outcome.Duration, outcome.Err)

	return outcome
}

func planPath(plan *Plan) string {
	if plan == nil {
		return ""
	}
	return plan.BackupPath
}

type nopReporter struct{}

func (nopReporter) Started(int, *Plan) {}
func (nopReporter) Finished(Outcome)   {}
