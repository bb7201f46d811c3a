package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dbdump/internal/application"
	"dbdump/internal/confirmation"
)

type dumpOptions struct {
	connections   []string
	profile       string
	path          string
	force         bool
	noInteraction bool
	failOnError   bool
}

func newDumpCommand(o *globalOptions) *cobra.Command {
	opts := &dumpOptions{}

	cmd := &cobra.Command{
		Use:     "dump",
		Aliases: []string{"db:dump"},
		Short:   "Dump the selected database connections",
		Long: `Dump every selected connection to <dir>/<YYYY-MM-DD_HH-mm>_backup_<connection>__<database>.sql
followed by the extension of the configured compression.

Connections are taken from --connections and --profile together. Without
either, the configured default connections are used, and without those,
every connection in the registry.

The backup directory is the profile's directory, then --path, then the
configured directory.`,
		Example: `  # Dump the default connections after confirmation
  dbdump dump

  # Dump two connections without asking
  dbdump dump -c primary,reports --force

  # Dump a profile, four at a time, failing the exit status on errors
  dbdump db:dump --profile nightly -n -j 4 --fail-on-error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd, o, opts)
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&opts.connections, "connections", "c", nil, "connection identifiers, comma separated or repeated")
	f.StringVar(&opts.profile, "profile", "", "named profile with connections and directory")
	f.StringVarP(&opts.path, "path", "p", "", "backup directory (a profile directory wins)")
	f.BoolVarP(&opts.force, "force", "f", false, "start without asking for confirmation")
	f.BoolVarP(&opts.noInteraction, "no-interaction", "n", false, "do not ask any interactive question")
	f.BoolVar(&opts.failOnError, "fail-on-error", false, "exit with status 1 when any dump fails")
	f.IntP("parallel", "j", 1, "number of dumps running at once")
	f.Duration("timeout", 0, "time limit per dump, 0 for none")

	_ = o.v.BindPFlag("parallel", f.Lookup("parallel"))
	_ = o.v.BindPFlag("timeout", f.Lookup("timeout"))

	return cmd
}

func runDump(cmd *cobra.Command, o *globalOptions, opts *dumpOptions) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	logger, err := o.newLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	printer := o.newPrinter()
	app, err := application.New(application.Deps{
		Config:    cfg,
		Printer:   printer,
		Confirmer: confirmation.NewPrompter(o.stdin, o.stdout),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(map[string]interface{}{
		"workers": cfg.Workers(),
		"timeout": cfg.Timeout.String(),
	}).Debug("Starting dump command")

	return app.Run(ctx, application.Options{
		Connections:   opts.connections,
		Profile:       opts.profile,
		Directory:     opts.path,
		NoInteraction: opts.force || opts.noInteraction,
		FailOnError:   opts.failOnError,
	})
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
