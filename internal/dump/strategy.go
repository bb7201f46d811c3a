// Package dump turns planned connections into backup files. A Dispatcher
// routes each Plan to the first registered Strategy that can handle the
// connection's kind; strategies run the external dump utility and decide
// whether the attempt succeeded.
package dump

import (
	"context"
	"time"

	"github.com/spf13/afero"

	"dbdump/internal/database"
	"dbdump/internal/logging"
)

// Strategy dumps one kind of database
type Strategy interface {
	// Name identifies the strategy in listings and logs
	Name() string
	CanHandle(conn *database.Connection) bool
	// ValidateConnection probes reachability; it never returns the driver error
	ValidateConnection(ctx context.Context, conn *database.Connection) bool
	// ConfigureBackupPath returns basePath with the strategy's file suffix
	ConfigureBackupPath(conn *database.Connection, basePath string) string
	Dump(ctx context.Context, plan *Plan) (*Result, error)
}

// Plan is a connection together with the file it will be dumped to.
// BackupPath is empty when no strategy claimed the connection.
type Plan struct {
	Connection *database.Connection
	BackupPath string
}

// Result is the outcome of one dump attempt. Output holds the trimmed stderr
// of the dump utility whether or not the attempt succeeded.
type Result struct {
	Success bool
	Output  string
}

// Outcome is what the Runner reports for each plan
type Outcome struct {
	Index    int
	Plan     *Plan
	Result   *Result
	Err      error
	Duration time.Duration
	Size     int64
}

// Succeeded reports whether the dump finished without error and was judged successful
func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.Result != nil && o.Result.Success
}

// Output returns the diagnostic output, if any
func (o Outcome) Output() string {
	if o.Result == nil {
		return ""
	}
	return o.Result.Output
}

// Prober checks whether a connection is reachable
type Prober interface {
	Probe(ctx context.Context, conn *database.Connection) bool
}

// Deps are the collaborators shared by the built-in strategies
type Deps struct {
	Fs     afero.Fs
	Runner CommandRunner
	Prober Prober
	Logger *logging.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Fs == nil {
		d.Fs = afero.NewOsFs()
	}
	if d.Runner == nil {
		d.Runner = ExecRunner{}
	}
	if d.Logger == nil {
		d.Logger = logging.NewNopLogger()
	}
	if d.Prober == nil {
		d.Prober = database.NewService(d.Logger, 0)
	}
	return d
}
