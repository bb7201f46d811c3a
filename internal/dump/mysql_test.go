package dump

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbdump/internal/config"
	"dbdump/internal/database"
	apperrors "dbdump/internal/errors"
)

const backupPath = "/backups/2024-03-01_02-30_backup_primary__shop.sql.gz"

func newMySQL(fs afero.Fs, runner CommandRunner, reachable bool, opts MySQLOptions) *MySQLStrategy {
	return NewMySQLStrategy(opts, Deps{Fs: fs, Runner: runner, Prober: fakeProber{reachable: reachable}})
}

func TestMySQLStrategy_CanHandle(t *testing.T) {
	s := newMySQL(afero.NewMemMapFs(), &fakeRunner{}, true, MySQLOptions{})

	assert.Equal(t, "mysqldump", s.Name())
	assert.True(t, s.CanHandle(mysqlConn(t)))
	assert.False(t, s.CanHandle(postgresConn(t)))
	assert.False(t, s.CanHandle(nil))
}

func TestMySQLStrategy_ConfigureBackupPath(t *testing.T) {
	conn := mysqlConn(t)
	base := "./var/db_backups/2024-03-01_02-30_backup_primary__shop.sql"

	gz := newMySQL(afero.NewMemMapFs(), &fakeRunner{}, true, MySQLOptions{})
	first := gz.ConfigureBackupPath(conn, base)
	assert.Equal(t, base+".gz", first)
	assert.Equal(t, first, gz.ConfigureBackupPath(conn, base), "same base gives the same path")
	assert.Equal(t, base+".gz.gz", gz.ConfigureBackupPath(conn, first), "not idempotent against its own output")

	plain := newMySQL(afero.NewMemMapFs(), &fakeRunner{}, true, MySQLOptions{Compression: CompressionNone})
	assert.Equal(t, base, plain.ConfigureBackupPath(conn, base))

	zst := newMySQL(afero.NewMemMapFs(), &fakeRunner{}, true, MySQLOptions{Compression: CompressionZstd})
	assert.Equal(t, base+".zst", zst.ConfigureBackupPath(conn, base))
}

func TestMySQLStrategy_DumpSuccess(t *testing.T) {
	fs := afero.NewMemMapFs()
	runner := &fakeRunner{
		stdout: "-- MySQL dump\nCREATE TABLE t (id int);\n",
		stderr: "mysqldump: [Warning] Using a password on the command line interface can be insecure.\n",
	}
	s := newMySQL(fs, runner, true, MySQLOptions{PasswordTransport: config.PasswordTransportArgument})

	result, err := s.Dump(context.Background(), &Plan{Connection: mysqlConn(t), BackupPath: backupPath})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "mysqldump: [Warning] Using a password on the command line interface can be insecure.", result.Output)
	assert.Equal(t, "-- MySQL dump\nCREATE TABLE t (id int);\n", readBackup(t, fs, backupPath, CompressionGzip))

	cmd := runner.lastCall()
	assert.Equal(t, "mysqldump", cmd.Name)
	assert.Equal(t, []string{
		"--user=app",
		"--password=s3cret",
		"--host=db.local",
		"--lock-all-tables",
		"shop",
	}, cmd.Args)
}

func TestMySQLStrategy_GotErrorMeansFailure(t *testing.T) {
	tests := []string{
		"mysqldump: Got error: 1045: Access denied for user 'app'@'localhost'",
		"got error: 1045 access denied",
		"mysqldump: GOT ERROR: 2013: Lost connection",
		"line one\nmysqldump: Got error: 1044: Access denied to database 'shop'\n",
	}

	for _, stderr := range tests {
		t.Run(stderr, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			s := newMySQL(fs, &fakeRunner{stdout: "partial", stderr: stderr}, true, MySQLOptions{})

			result, err := s.Dump(context.Background(), &Plan{Connection: mysqlConn(t), BackupPath: backupPath})
			require.NoError(t, err)

			assert.False(t, result.Success)
			assert.Equal(t, strings.TrimSpace(stderr), result.Output)

			exists, err := afero.Exists(fs, backupPath)
			require.NoError(t, err)
			assert.False(t, exists, "faulty backup must be removed")
		})
	}
}

func TestMySQLStrategy_ExitStatusIsIgnored(t *testing.T) {
	fs := afero.NewMemMapFs()
	runner := &fakeRunner{stdout: "data", stderr: "mysqldump: [Warning] something", err: exitError{code: 2}}
	s := newMySQL(fs, runner, true, MySQLOptions{})

	result, err := s.Dump(context.Background(), &Plan{Connection: mysqlConn(t), BackupPath: backupPath})
	require.NoError(t, err)
	assert.True(t, result.Success)

	exists, _ := afero.Exists(fs, backupPath)
	assert.True(t, exists)
}

func TestMySQLStrategy_NullAndUnsupported(t *testing.T) {
	runner := &fakeRunner{}
	s := newMySQL(afero.NewMemMapFs(), runner, true, MySQLOptions{})

	_, err := s.Dump(context.Background(), nil)
	assert.True(t, errors.Is(err, apperrors.ErrNullConnection))

	_, err = s.Dump(context.Background(), &Plan{BackupPath: backupPath})
	assert.True(t, errors.Is(err, apperrors.ErrNullConnection))

	_, err = s.Dump(context.Background(), &Plan{Connection: postgresConn(t), BackupPath: backupPath})
	assert.True(t, errors.Is(err, apperrors.ErrUnsupportedConnectionType))

	assert.Equal(t, 0, runner.callCount())
}

func TestMySQLStrategy_Unreachable(t *testing.T) {
	fs := afero.NewMemMapFs()
	runner := &fakeRunner{}
	s := newMySQL(fs, runner, false, MySQLOptions{})

	_, err := s.Dump(context.Background(), &Plan{Connection: mysqlConn(t), BackupPath: backupPath})
	assert.True(t, errors.Is(err, apperrors.ErrConnectionUnreachable))
	assert.Equal(t, 0, runner.callCount())

	exists, _ := afero.DirExists(fs, "/backups")
	assert.False(t, exists, "nothing is created for an unreachable connection")
}

func TestMySQLStrategy_DirectoryCreationFailed(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	runner := &fakeRunner{}
	s := newMySQL(fs, runner, true, MySQLOptions{PasswordTransport: config.PasswordTransportArgument})

	_, err := s.Dump(context.Background(), &Plan{Connection: mysqlConn(t), BackupPath: backupPath})
	assert.True(t, errors.Is(err, apperrors.ErrDirectoryCreationFailed))
	assert.Equal(t, 0, runner.callCount())
}

func TestMySQLStrategy_CreatesDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newMySQL(fs, &fakeRunner{stdout: "x"}, true, MySQLOptions{})

	path := "/deep/nested/dir/backup.sql.gz"
	result, err := s.Dump(context.Background(), &Plan{Connection: mysqlConn(t), BackupPath: path})
	require.NoError(t, err)
	assert.True(t, result.Success)

	exists, _ := afero.DirExists(fs, "/deep/nested/dir")
	assert.True(t, exists)
}

func TestMySQLStrategy_BackupDeletionFailed(t *testing.T) {
	fs := removeFailFs{afero.NewMemMapFs()}
	s := newMySQL(fs, &fakeRunner{stderr: "Got error: 1045"}, true, MySQLOptions{PasswordTransport: config.PasswordTransportArgument})

	result, err := s.Dump(context.Background(), &Plan{Connection: mysqlConn(t), BackupPath: backupPath})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrBackupDeletionFailed))
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, "Got error: 1045", result.Output)
}

func TestMySQLStrategy_MissingBinary(t *testing.T) {
	fs := afero.NewMemMapFs()
	runner := &fakeRunner{err: &exec.Error{Name: "mysqldump", Err: exec.ErrNotFound}}
	s := newMySQL(fs, runner, true, MySQLOptions{})

	result, err := s.Dump(context.Background(), &Plan{Connection: mysqlConn(t), BackupPath: backupPath})
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, apperrors.ErrCommandFailed))
	assert.True(t, errors.Is(err, exec.ErrNotFound))

	exists, _ := afero.Exists(fs, backupPath)
	assert.False(t, exists, "no file is left behind")
}

func TestMySQLStrategy_InterruptedDumpIsRemoved(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &fakeRunner{
		stdout: "partial",
		err:    exitError{code: -1},
		onRun: func(context.Context, Command) error {
			cancel()
			return nil
		},
	}
	s := newMySQL(fs, runner, true, MySQLOptions{})

	_, err := s.Dump(ctx, &Plan{Connection: mysqlConn(t), BackupPath: backupPath})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeInterruption, apperrors.GetErrorType(err))

	exists, _ := afero.Exists(fs, backupPath)
	assert.False(t, exists)
}

func TestMySQLStrategy_DefaultsFileKeepsPasswordOffCommandLine(t *testing.T) {
	fs := afero.NewMemMapFs()
	var optionFile, optionContent string

	runner := &fakeRunner{stdout: "data"}
	runner.onRun = func(_ context.Context, cmd Command) error {
		require.NotEmpty(t, cmd.Args)
		require.True(t, strings.HasPrefix(cmd.Args[0], "--defaults-extra-file="), "option file must come first")
		optionFile = strings.TrimPrefix(cmd.Args[0], "--defaults-extra-file=")

		data, err := afero.ReadFile(fs, optionFile)
		require.NoError(t, err)
		optionContent = string(data)

		info, err := fs.Stat(optionFile)
		require.NoError(t, err)
		assert.Equal(t, "-rw-------", info.Mode().Perm().String())
		return nil
	}

	s := newMySQL(fs, runner, true, MySQLOptions{})
	conn := newConnection(t, database.ConnectionConfig{
		Name: "primary", Driver: "mysql", Host: "db.local", Port: 3307, Username: "app", Password: `p"a\ss`, Database: "shop",
	})

	result, err := s.Dump(context.Background(), &Plan{Connection: conn, BackupPath: backupPath})
	require.NoError(t, err)
	assert.True(t, result.Success)

	for _, arg := range runner.lastCall().Args {
		assert.NotContains(t, arg, `p"a\ss`)
		assert.NotContains(t, arg, "--password")
	}
	assert.Contains(t, runner.lastCall().Args, "--port=3307")
	assert.Equal(t, "[client]\npassword=\"p\\\"a\\\\ss\"\n", optionContent)

	exists, _ := afero.Exists(fs, optionFile)
	assert.False(t, exists, "option file is removed after the run")
}

func TestMySQLStrategy_NoPasswordNoOptionFile(t *testing.T) {
	runner := &fakeRunner{}
	s := newMySQL(afero.NewMemMapFs(), runner, true, MySQLOptions{})
	conn := newConnection(t, database.ConnectionConfig{Name: "local", Driver: "mysql", Username: "root", Database: "shop"})

	_, err := s.Dump(context.Background(), &Plan{Connection: conn, BackupPath: backupPath})
	require.NoError(t, err)
	assert.Equal(t, []string{"--user=root", "--lock-all-tables", "shop"}, runner.lastCall().Args)
}

func TestMySQLStrategy_ExtraArgsAndBinary(t *testing.T) {
	runner := &fakeRunner{}
	s := newMySQL(afero.NewMemMapFs(), runner, true, MySQLOptions{
		Binary:            "/opt/mysql/bin/mysqldump",
		ExtraArgs:         []string{"--single-transaction", "--routines"},
		PasswordTransport: config.PasswordTransportArgument,
	})

	_, err := s.Dump(context.Background(), &Plan{Connection: mysqlConn(t), BackupPath: backupPath})
	require.NoError(t, err)

	cmd := runner.lastCall()
	assert.Equal(t, "/opt/mysql/bin/mysqldump", cmd.Name)
	assert.Equal(t, []string{
		"--user=app", "--password=s3cret", "--host=db.local", "--lock-all-tables",
		"--single-transaction", "--routines", "shop",
	}, cmd.Args)
}

func TestMySQLOptionsFromConfig(t *testing.T) {
	opts, err := MySQLOptionsFromConfig(config.DumperConfig{Gzip: false, Binary: "mysqldump", PasswordTransport: "argument"})
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, opts.Compression)
	assert.Equal(t, "argument", opts.PasswordTransport)

	_, err = MySQLOptionsFromConfig(config.DumperConfig{Compression: "bzip2"})
	assert.Error(t, err)
}
