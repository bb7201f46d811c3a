package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dbdump/internal/application"
	"dbdump/internal/config"
	"dbdump/internal/display"
	apperrors "dbdump/internal/errors"
	"dbdump/internal/logging"
)

// Version information (set by main package)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
	goVersion = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc, gv string) {
	version = v
	buildTime = bt
	gitCommit = gc
	goVersion = gv
}

// globalOptions are the persistent flags shared by every subcommand
type globalOptions struct {
	cfgFile   string
	verbose   bool
	noColor   bool
	theme     string
	logFile   string
	logFormat string

	v      *viper.Viper
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewRootCommand builds the dbdump command tree writing to the given streams
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{v: viper.New(), stdin: stdin, stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "dbdump",
		Short: "Back up configured database connections with mysqldump and pg_dump",
		Long: `dbdump backs up one or more configured database connections by running
the matching dump utility for each of them and writing timestamped,
compressed SQL files.

Connections are selected with --connections, a named --profile, the
configured default list, or, when none of these is given, every connection
in the registry.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Configure(opts.v, opts.cfgFile)
		},
	}
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.dbdump.yaml or ./.dbdump.yaml)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "show dump output for successful dumps and debug logs")
	pf.BoolVar(&opts.noColor, "no-color", false, "disable color output")
	pf.StringVar(&opts.theme, "theme", "dark", "color theme (dark, light)")
	pf.StringVar(&opts.logFile, "log-file", "", "also write logs to this file (rotated)")
	pf.StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")

	rootCmd.SetUsageTemplate(getUsageTemplate())

	dumpCmd := newDumpCommand(opts)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(newConnectionsCommand(opts))
	rootCmd.AddCommand(createVersionCommand(opts))
	rootCmd.AddCommand(createConfigCommand(opts))

	return rootCmd
}

// Execute runs the command tree and exits with the resulting status.
// This is called by main.main().
func Execute() {
	rootCmd := NewRootCommand(os.Stdin, os.Stdout, os.Stderr)
	err := rootCmd.Execute()
	if err != nil && !application.IsReported(err) {
		fmt.Fprintf(os.Stderr, "Error: %s\n", apperrors.FormatUserError(err))
	}
	os.Exit(application.ExitCode(err))
}

// newLogger configures logging for one command run. Logs reach the terminal
// only with --verbose; a log file receives them regardless.
func (o *globalOptions) newLogger() (*logging.Logger, error) {
	cfg := logging.Config{
		Level:  logging.LogLevelQuiet,
		Output: io.Discard,
		Format: o.logFormat,
	}
	if o.logFile != "" {
		cfg.Level = logging.LogLevelNormal
		cfg.LogFile = o.logFile
	}
	if o.verbose {
		cfg.Level = logging.LogLevelVerbose
		cfg.Output = o.stderr
	}
	return logging.NewLogger(cfg)
}

func (o *globalOptions) newPrinter() *display.Printer {
	mode := display.ColorAuto
	if o.noColor {
		mode = display.ColorNever
	}
	return display.NewPrinter(o.stdout, display.Options{
		Color:   mode,
		Theme:   o.theme,
		Verbose: o.verbose,
	})
}

func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.v)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeConfiguration, "invalid configuration", err).
			WithUserMessage(err.Error())
	}
	return cfg, nil
}

// createVersionCommand creates the version subcommand
func createVersionCommand(o *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		// no configuration needed
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(o.stdout, "dbdump version %s\n", version)
			fmt.Fprintf(o.stdout, "Built: %s\n", buildTime)
			fmt.Fprintf(o.stdout, "Commit: %s\n", gitCommit)
			fmt.Fprintf(o.stdout, "Go version: %s\n", goVersion)
		},
	}
}

// createConfigCommand creates the config subcommand for generating sample config
func createConfigCommand(o *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:              "config",
		Short:            "Print a sample configuration file",
		PersistentPreRun: func(*cobra.Command, []string) {},
		Long: `Print a sample configuration file that can be used with the --config flag.

Examples:
  # Start a configuration in the working directory
  dbdump config > .dbdump.yaml`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(o.stdout, config.Sample)
		},
	}
}

// getUsageTemplate returns a custom usage template with configuration hints
func getUsageTemplate() string {
	return `Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}

Available Commands:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}

Configuration File:
  Generate a sample configuration file with: dbdump config

Environment Variables:
  Settings can be overridden with the prefix DBDUMP_, for example
    DBDUMP_DIRECTORY=/srv/backups
    DBDUMP_PARALLEL=4
    DBDUMP_DUMPERS_MYSQL_COMPRESSION=zstd
`
}
