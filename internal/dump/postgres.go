package dump

import (
	"context"
	"strconv"

	"dbdump/internal/config"
	"dbdump/internal/database"
	"dbdump/internal/errors"
)

// PostgresOptions configures the pg_dump strategy
type PostgresOptions struct {
	Binary      string
	Compression Compression
	ExtraArgs   []string
}

// PostgresOptionsFromConfig converts the dumpers.postgresql section
func PostgresOptionsFromConfig(c config.DumperConfig) (PostgresOptions, error) {
	compression, err := ParseCompression(c.CompressionName())
	if err != nil {
		return PostgresOptions{}, err
	}
	return PostgresOptions{
		Binary:      c.Binary,
		Compression: compression,
		ExtraArgs:   c.ExtraArgs,
	}, nil
}

// PostgresStrategy dumps PostgreSQL connections with pg_dump. Unlike
// mysqldump, pg_dump's exit status is trusted.
type PostgresStrategy struct {
	opts   PostgresOptions
	prober Prober
	dumper *fileDumper
}

func NewPostgresStrategy(opts PostgresOptions, deps Deps) *PostgresStrategy {
	deps = deps.withDefaults()
	if opts.Binary == "" {
		opts.Binary = "pg_dump"
	}
	if opts.Compression == "" {
		opts.Compression = CompressionGzip
	}
	return &PostgresStrategy{
		opts:   opts,
		prober: deps.Prober,
		dumper: &fileDumper{
			fs:          deps.Fs,
			runner:      deps.Runner,
			compression: opts.Compression,
			logger:      deps.Logger,
		},
	}
}

func (s *PostgresStrategy) Name() string {
	return "pg_dump"
}

func (s *PostgresStrategy) CanHandle(conn *database.Connection) bool {
	return conn.Kind() == database.KindPostgreSQL
}

func (s *PostgresStrategy) ValidateConnection(ctx context.Context, conn *database.Connection) bool {
	return s.prober.Probe(ctx, conn)
}

func (s *PostgresStrategy) ConfigureBackupPath(_ *database.Connection, basePath string) string {
	return basePath + s.opts.Compression.Extension()
}

func (s *PostgresStrategy) Dump(ctx context.Context, plan *Plan) (*Result, error) {
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

	cmd := Command{
		Name: s.opts.Binary,
		Args: s.buildArgs(conn),
	}
	if conn.Password() != "" {
		cmd.Env = []string{"PGPASSWORD=" + conn.Password()}
	}

	return s.dumper.run(ctx, plan, cmd, func(_ string, runErr error) bool {
		return runErr == nil
	})
}

func (s *PostgresStrategy) buildArgs(conn *database.Connection) []string {
	var args []string
	if conn.Host() != "" {
		args = append(args, "--host="+conn.Host())
	}
	if conn.Port() > 0 {
		args = append(args, "--port="+strconv.Itoa(conn.Port()))
	}
	if conn.Username() != "" {
		args = append(args, "--username="+conn.Username())
	}
	args = append(args, "--no-password", "--format=plain")
	args = append(args, s.opts.ExtraArgs...)
	args = append(args, conn.Database())
	return args
}
