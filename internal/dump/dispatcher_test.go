package dump

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbdump/internal/database"
	apperrors "dbdump/internal/errors"
)

// stubStrategy claims one kind and records calls
type stubStrategy struct {
	name   string
	kind   database.Kind
	suffix string
	dumps  int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) CanHandle(conn *database.Connection) bool {
	return conn.Kind() == s.kind
}

func (s *stubStrategy) ValidateConnection(context.Context, *database.Connection) bool { return true }

func (s *stubStrategy) ConfigureBackupPath(_ *database.Connection, basePath string) string {
	return basePath + s.suffix
}

func (s *stubStrategy) Dump(context.Context, *Plan) (*Result, error) {
	s.dumps++
	return &Result{Success: true, Output: s.name}, nil
}

func TestDispatcher_RoutesToMatchingStrategy(t *testing.T) {
	mysql := &stubStrategy{name: "mysql", kind: database.KindMySQL, suffix: ".gz"}
	pg := &stubStrategy{name: "pg", kind: database.KindPostgreSQL, suffix: ".zst"}
	d := NewDispatcher(nil, mysql, pg)

	result, err := d.Dump(context.Background(), &Plan{Connection: postgresConn(t)})
	require.NoError(t, err)
	assert.Equal(t, "pg", result.Output)
	assert.Equal(t, 0, mysql.dumps)
	assert.Equal(t, 1, pg.dumps)

	plan := d.ConfigureBackupPath(mysqlConn(t), "base.sql")
	assert.Equal(t, "base.sql.gz", plan.BackupPath)
	assert.Equal(t, "primary", plan.Connection.Identifier())
}

func TestDispatcher_FirstMatchWins(t *testing.T) {
	first := &stubStrategy{name: "first", kind: database.KindMySQL, suffix: ".first"}
	second := &stubStrategy{name: "second", kind: database.KindMySQL, suffix: ".second"}
	d := NewDispatcher(nil)
	d.Register(first)
	d.Register(second)

	result, err := d.Dump(context.Background(), &Plan{Connection: mysqlConn(t)})
	require.NoError(t, err)
	assert.Equal(t, "first", result.Output)
	assert.Equal(t, "base.first", d.ConfigureBackupPath(mysqlConn(t), "base").BackupPath)

	s, err := d.StrategyFor(mysqlConn(t))
	require.NoError(t, err)
	assert.Same(t, first, s)
	assert.Len(t, d.Strategies(), 2)
}

func TestDispatcher_NoMatch(t *testing.T) {
	d := NewDispatcher(nil, &stubStrategy{name: "mysql", kind: database.KindMySQL})
	sqlite := newConnection(t, database.ConnectionConfig{Name: "local", Driver: "sqlite", Database: "app.db"})

	_, err := d.Dump(context.Background(), &Plan{Connection: sqlite})
	assert.True(t, errors.Is(err, apperrors.ErrUnsupportedConnectionType))

	plan := d.ConfigureBackupPath(sqlite, "base.sql")
	assert.Empty(t, plan.BackupPath, "no match leaves the path unset")
}

func TestDispatcher_NoStrategies(t *testing.T) {
	d := NewDispatcher(nil)

	_, err := d.Dump(context.Background(), &Plan{Connection: mysqlConn(t)})
	assert.True(t, errors.Is(err, apperrors.ErrNoStrategiesRegistered))
	assert.False(t, errors.Is(err, apperrors.ErrUnsupportedConnectionType))

	assert.Empty(t, d.ConfigureBackupPath(mysqlConn(t), "base.sql").BackupPath)
}

func TestDispatcher_NullConnection(t *testing.T) {
	d := NewDispatcher(nil, &stubStrategy{name: "mysql", kind: database.KindMySQL})

	_, err := d.Dump(context.Background(), nil)
	assert.True(t, errors.Is(err, apperrors.ErrNullConnection))

	_, err = d.Dump(context.Background(), &Plan{})
	assert.True(t, errors.Is(err, apperrors.ErrNullConnection))

	_, err = d.StrategyFor(nil)
	assert.True(t, errors.Is(err, apperrors.ErrNullConnection))
}
