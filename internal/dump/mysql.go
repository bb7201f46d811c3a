package dump

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"dbdump/internal/config"
	"dbdump/internal/database"
	"dbdump/internal/errors"
	"dbdump/internal/logging"
)

// mysqldumpFailureMarker in stderr is the only signal that mysqldump failed;
// its exit status is not consulted.
const mysqldumpFailureMarker = "got error:"

// MySQLOptions configures the mysqldump strategy
type MySQLOptions struct {
	Binary            string
	Compression       Compression
	ExtraArgs         []string
	PasswordTransport string
}

// MySQLOptionsFromConfig converts the dumpers.mysql section
func MySQLOptionsFromConfig(c config.DumperConfig) (MySQLOptions, error) {
	compression, err := ParseCompression(c.CompressionName())
	if err != nil {
		return MySQLOptions{}, err
	}
	return MySQLOptions{
		Binary:            c.Binary,
		Compression:       compression,
		ExtraArgs:         c.ExtraArgs,
		PasswordTransport: c.PasswordTransport,
	}, nil
}

// MySQLStrategy dumps MySQL and MariaDB connections with mysqldump
type MySQLStrategy struct {
	opts   MySQLOptions
	prober Prober
	fs     afero.Fs
	logger *logging.Logger
	dumper *fileDumper
}

// NewMySQLStrategy creates the strategy; zero options fall back to
// mysqldump, gzip and a defaults file for the password.
func NewMySQLStrategy(opts MySQLOptions, deps Deps) *MySQLStrategy {
	deps = deps.withDefaults()
	if opts.Binary == "" {
		opts.Binary = "mysqldump"
	}
	if opts.Compression == "" {
		opts.Compression = CompressionGzip
	}
	if opts.PasswordTransport == "" {
		opts.PasswordTransport = config.PasswordTransportDefaultsFile
	}
	return &MySQLStrategy{
		opts:   opts,
		prober: deps.Prober,
		fs:     deps.Fs,
		logger: deps.Logger,
		dumper: &fileDumper{
			fs:          deps.Fs,
			runner:      deps.Runner,
			compression: opts.Compression,
			logger:      deps.Logger,
		},
	}
}

func (s *MySQLStrategy) Name() string {
	return "mysqldump"
}

func (s *MySQLStrategy) CanHandle(conn *database.Connection) bool {
	return conn.Kind() == database.KindMySQL
}

func (s *MySQLStrategy) ValidateConnection(ctx context.Context, conn *database.Connection) bool {
	return s.prober.Probe(ctx, conn)
}

// ConfigureBackupPath appends the compression suffix. Feeding it its own
// output suffixes twice.
func (s *MySQLStrategy) ConfigureBackupPath(_ *database.Connection, basePath string) string {
	return basePath + s.opts.Compression.Extension()
}

func (s *MySQLStrategy) Dump(ctx context.Context, plan *Plan) (*Result, error) {
	if plan == nil || plan.Connection == nil {
		return nil, errors.NewAppError(errors.ErrorTypeNullConnection, "no connection given", nil)
	}
	conn := plan.Connection

	if !s.CanHandle(conn) {
		return nil, errors.Newf(errors.ErrorTypeUnsupportedConnectionType,
			"%s cannot dump connection %q of kind %s", s.Name(), conn.Identifier(), conn.Kind())
	}

	if !s.ValidateConnection(ctx, conn) {
		return nil, errors.Newf(errors.ErrorTypeConnectionUnreachable,
			"connection %q is not reachable", conn.Identifier()).
			WithContext("host", conn.Host())
	}

	defaultsFile, cleanup, err := s.writeDefaultsFile(conn)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	cmd := Command{
		Name: s.opts.Binary,
		Args: s.buildArgs(conn, defaultsFile),
	}
	return s.dumper.run(ctx, plan, cmd, mysqldumpSucceeded)
}

// mysqldumpSucceeded looks for the failure marker, ignoring case and the exit status
func mysqldumpSucceeded(stderr string, _ error) bool {
	return !strings.Contains(strings.ToLower(stderr), mysqldumpFailureMarker)
}

func (s *MySQLStrategy) buildArgs(conn *database.Connection, defaultsFile string) []string {
	var args []string
	// mysqldump only honours --defaults-extra-file as the first option
	if defaultsFile != "" {
		args = append(args, "--defaults-extra-file="+defaultsFile)
	}

	args = append(args, "--user="+conn.Username())
	if s.opts.PasswordTransport == config.PasswordTransportArgument {
		args = append(args, "--password="+conn.Password())
	}
	if conn.Host() != "" {
		args = append(args, "--host="+conn.Host())
	}
	if conn.Port() > 0 {
		args = append(args, "--port="+strconv.Itoa(conn.Port()))
	}
	args = append(args, "--lock-all-tables")
	args = append(args, s.opts.ExtraArgs...)
	args = append(args, conn.Database())
	return args
}

// writeDefaultsFile stores the password in a private [client] option file
func (s *MySQLStrategy) writeDefaultsFile(conn *database.Connection) (string, func(), error) {
	noop := func() {}
	if s.opts.PasswordTransport != config.PasswordTransportDefaultsFile || conn.Password() == "" {
		return "", noop, nil
	}

	f, err := afero.TempFile(s.fs, "", "dbdump-*.cnf")
	if err != nil {
		return "", noop, errors.WrapError(err, "could not create mysqldump option file")
	}
	name := f.Name()
	cleanup := func() {
		if err := s.fs.Remove(name); err != nil {
			s.logger.WithField("error", err.Error()).Warn("Could not remove mysqldump option file")
		}
	}

	_, writeErr := fmt.Fprintf(f, "[client]\npassword=\"%s\"\n", escapeOptionValue(conn.Password()))
	closeErr := f.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if writeErr == nil {
		writeErr = s.fs.Chmod(name, 0o600)
	}
	if writeErr != nil {
		cleanup()
		return "", noop, errors.WrapError(writeErr, "could not write mysqldump option file")
	}
	return name, cleanup, nil
}

func escapeOptionValue(v string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v)
}
