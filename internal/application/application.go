package application

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"dbdump/internal/config"
	"dbdump/internal/confirmation"
	"dbdump/internal/database"
	"dbdump/internal/display"
	appErrors "dbdump/internal/errors"
	"dbdump/internal/dump"
	"dbdump/internal/logging"
	"dbdump/internal/resolver"
)

// Banner is the headline printed at the start of every run
const Banner = "dbdump Database Dumper"

// ConfirmQuestion is asked before any dump starts
const ConfirmQuestion = "Would you like to start the backup now? [Yn]"

// Options are the per-run inputs of the dump command
type Options struct {
	Connections []string
	Profile     string
	Directory   string
	// NoInteraction skips the confirmation prompt
	NoInteraction bool
	// FailOnError turns any failed dump into a DumpFailed error
	FailOnError bool
}

// Deps are the collaborators of an Application. Only Config is required.
type Deps struct {
	Config     *config.Config
	Registry   *database.Registry
	Dispatcher *dump.Dispatcher
	Printer    *display.Printer
	Confirmer  confirmation.Confirmer
	Logger     *logging.Logger
	Fs         afero.Fs
	// Runner and Prober are handed to the built-in strategies
	Runner dump.CommandRunner
	Prober dump.Prober
	// Workers and Timeout override the configured values when positive
	Workers int
	Timeout time.Duration
	Now     func() time.Time
	WorkDir string
}

// Application runs one backup: resolve, plan, confirm, dump, report
type Application struct {
	cfg        *config.Config
	registry   *database.Registry
	resolver   *resolver.Resolver
	dispatcher *dump.Dispatcher
	runner     *dump.Runner
	printer    *display.Printer
	confirmer  confirmation.Confirmer
	logger     *logging.Logger
	now        func() time.Time
	workDir    string
}

// New wires an Application from deps
func New(deps Deps) (*Application, error) {
	if deps.Config == nil {
		return nil, appErrors.NewAppError(appErrors.ErrorTypeConfiguration, "no configuration given", nil)
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	if deps.Printer == nil {
		deps.Printer = display.NewPrinter(os.Stdout, display.Options{})
	}
	if deps.Confirmer == nil {
		deps.Confirmer = confirmation.NewPrompter(os.Stdin, deps.Printer.Writer())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.WorkDir == "" {
		if wd, err := os.Getwd(); err == nil {
			deps.WorkDir = wd
		}
	}

	registry := deps.Registry
	if registry == nil {
		var err error
		if registry, err = deps.Config.BuildRegistry(); err != nil {
			return nil, appErrors.NewAppError(appErrors.ErrorTypeConfiguration, "invalid connection registry", err)
		}
	}

	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		var err error
		dispatcher, err = NewDispatcher(deps.Config, dump.Deps{
			Fs:     deps.Fs,
			Runner: deps.Runner,
			Prober: deps.Prober,
			Logger: deps.Logger,
		})
		if err != nil {
			return nil, err
		}
	}

	workers := deps.Config.Workers()
	if deps.Workers > 0 {
		workers = deps.Workers
	}
	timeout := deps.Config.Timeout
	if deps.Timeout > 0 {
		timeout = deps.Timeout
	}

	return &Application{
		cfg:        deps.Config,
		registry:   registry,
		resolver:   resolver.New(deps.Config, registry, deps.Logger),
		dispatcher: dispatcher,
		runner: dump.NewRunner(dispatcher, dump.RunnerOptions{
			Workers: workers,
			Timeout: timeout,
			Fs:      deps.Fs,
			Logger:  deps.Logger,
		}),
		printer:   deps.Printer,
		confirmer: deps.Confirmer,
		logger:    deps.Logger,
		now:       deps.Now,
		workDir:   deps.WorkDir,
	}, nil
}

// NewDispatcher registers the built-in strategies in priority order:
// mysqldump first, then pg_dump.
func NewDispatcher(cfg *config.Config, deps dump.Deps) (*dump.Dispatcher, error) {
	if deps.Prober == nil {
		deps.Prober = database.NewService(deps.Logger, cfg.ProbeTimeout)
	}

	mysqlOpts, err := dump.MySQLOptionsFromConfig(cfg.Dumpers.MySQL)
	if err != nil {
		return nil, appErrors.NewAppError(appErrors.ErrorTypeConfiguration, "invalid dumpers.mysql section", err)
	}
	pgOpts, err := dump.PostgresOptionsFromConfig(cfg.Dumpers.PostgreSQL)
	if err != nil {
		return nil, appErrors.NewAppError(appErrors.ErrorTypeConfiguration, "invalid dumpers.postgresql section", err)
	}

	return dump.NewDispatcher(deps.Logger,
		dump.NewMySQLStrategy(mysqlOpts, deps),
		dump.NewPostgresStrategy(pgOpts, deps),
	), nil
}

// Registry returns the connection registry in use
func (app *Application) Registry() *database.Registry {
	return app.registry
}

// Dispatcher returns the strategy dispatcher in use
func (app *Application) Dispatcher() *dump.Dispatcher {
	return app.dispatcher
}

// Run performs one backup. Errors that were already shown to the operator
// are wrapped so IsReported recognises them.
func (app *Application) Run(ctx context.Context, opts Options) (err error) {
	ctx = logging.ContextWithRunID(ctx, uuid.NewString())
	done := app.logger.LogOperationStart(ctx, "dump", map[string]interface{}{
		"profile":     opts.Profile,
		"connections": len(opts.Connections),
	})
	defer func() { done(err) }()

	app.printer.Banner(Banner)

	resolved, err := app.resolver.Resolve(opts.Connections, opts.Profile, opts.Directory)
	if err != nil {
		app.printer.ErrorBlock(appErrors.FormatUserError(err))
		return reported(err)
	}

	if resolved.Set.IsEmpty() {
		err := appErrors.NewAppError(appErrors.ErrorTypeNoConnectionsFound, "no connections configured or selected", nil).
			WithUserMessage("No connection data found.")
		app.printer.ErrorBlock(err.GetUserMessage())
		return reported(err)
	}

	plans := app.plan(resolved)

	if unresolved := resolved.Set.Unresolved(); len(unresolved) > 0 {
		err := appErrors.Newf(appErrors.ErrorTypeUnresolvedConnection, "unresolved connections: %v", unresolved).
			WithContext("connections", unresolved).
			WithUserMessage("Could not resolve one or more connections.")
		app.printer.ErrorBlock(err.GetUserMessage())
		return reported(err)
	}

	if !opts.NoInteraction {
		app.printer.Newline()
		ok, err := app.confirmer.Confirm(ctx, ConfirmQuestion, true)
		if err != nil {
			return err
		}
		if !ok {
			app.printer.Aborted()
			return nil
		}
	}

	app.printer.Newline()
	outcomes := app.runner.Run(ctx, plans, &progressReporter{printer: app.printer})

	failed := 0
	for _, o := range outcomes {
		if !o.Succeeded() {
			failed++
		}
	}

	app.printer.Completed()
	app.printer.Summary(len(outcomes)-failed, failed)

	if failed > 0 && opts.FailOnError {
		return reported(appErrors.Newf(appErrors.ErrorTypeDumpFailed, "%d of %d dumps failed", failed, len(outcomes)))
	}
	return nil
}

// plan prints the overview table and returns plans for the resolved entries
func (app *Application) plan(resolved *resolver.Result) []*dump.Plan {
	dir := dump.RelativeDirectory(resolved.Directory, app.workDir)
	at := app.now()

	var (
		plans []*dump.Plan
		rows  []display.OverviewRow
	)
	for _, entry := range resolved.Set.Entries() {
		if !entry.Resolved() {
			rows = append(rows, display.OverviewRow{Connection: entry.Identifier})
			continue
		}
		conn := entry.Connection
		plan := app.dispatcher.ConfigureBackupPath(conn, dump.BaseBackupPath(dir, conn, at))
		plans = append(plans, plan)

		backupFile := plan.BackupPath
		if backupFile == "" {
			backupFile = "-"
		}
		rows = append(rows, display.OverviewRow{
			Database:   conn.Database(),
			Connection: entry.Identifier,
			Type:       string(conn.Kind()),
			BackupFile: backupFile,
			Resolved:   true,
		})
	}

	app.printer.Overview(rows)
	return plans
}

// progressReporter turns runner callbacks into progress lines
type progressReporter struct {
	printer *display.Printer
}

func (r *progressReporter) Started(_ int, plan *dump.Plan) {
	r.printer.DumpStarted(plan.Connection.Database(), plan.Connection.Identifier())
}

func (r *progressReporter) Finished(o dump.Outcome) {
	if o.Succeeded() {
		r.printer.DumpDone(o.Size, o.Duration)
	} else {
		r.printer.DumpFailed()
	}

	if !o.Succeeded() || r.printer.Verbose() {
		r.printer.Diagnostic(o.Output())
	}
	if o.Err != nil {
		r.printer.DumpError(appErrors.FormatUserError(o.Err))
	}
}

type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	return &reportedError{err: err}
}

// IsReported reports whether err was already printed to the operator
func IsReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

// ExitCode maps a Run error to the process exit status
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// StrategyName returns the name of the strategy that would dump conn, or "-"
func StrategyName(d *dump.Dispatcher, conn *database.Connection) string {
	s, err := d.StrategyFor(conn)
	if err != nil {
		return "-"
	}
	return s.Name()
}
