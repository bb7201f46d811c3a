package dump

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"dbdump/internal/database"
)

// fakeRunner writes canned output instead of starting a process
type fakeRunner struct {
	mu     sync.Mutex
	stdout string
	stderr string
	err    error
	onRun  func(ctx context.Context, cmd Command) error
	calls  []Command
}

func (f *fakeRunner) Run(ctx context.Context, cmd Command) error {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()

	if f.onRun != nil {
		if err := f.onRun(ctx, cmd); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(cmd.Stdout, f.stdout); err != nil {
		return err
	}
	if _, err := io.WriteString(cmd.Stderr, f.stderr); err != nil {
		return err
	}
	return f.err
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRunner) lastCall() Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// exitError mimics *exec.ExitError
type exitError struct {
	code int
}

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }
func (e exitError) ExitCode() int { return e.code }

type fakeProber struct {
	reachable bool
}

func (p fakeProber) Probe(context.Context, *database.Connection) bool {
	return p.reachable
}

// removeFailFs refuses to delete anything
type removeFailFs struct {
	afero.Fs
}

func (removeFailFs) Remove(name string) error {
	return &os.PathError{Op: "remove", Path: name, Err: errors.New("operation not permitted")}
}

func newConnection(t *testing.T, cfg database.ConnectionConfig) *database.Connection {
	t.Helper()
	conn, err := database.NewConnection(cfg)
	require.NoError(t, err)
	return conn
}

func mysqlConn(t *testing.T) *database.Connection {
	return newConnection(t, database.ConnectionConfig{
		Name: "primary", Driver: "pdo_mysql", Host: "db.local", Username: "app", Password: "s3cret", Database: "shop",
	})
}

func postgresConn(t *testing.T) *database.Connection {
	return newConnection(t, database.ConnectionConfig{
		Name: "analytics", Driver: "pgsql", Host: "pg.local", Port: 5433, Username: "analyst", Password: "pw", Database: "dw",
	})
}

func readBackup(t *testing.T, fs afero.Fs, path string, c Compression) string {
	t.Helper()
	f, err := fs.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r, err := c.NewReader(f)
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

// NewReader undoes the codec so tests can read back written archives
func (c Compression) NewReader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case CompressionNone, "":
		return io.NopCloser(r), nil
	case CompressionGzip:
		return gzip.NewReader(r)
	case CompressionZstd:
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", c)
	}
}
