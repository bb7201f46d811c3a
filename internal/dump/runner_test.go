package dump

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbdump/internal/database"
	apperrors "dbdump/internal/errors"
)

// scriptedStrategy handles every MySQL connection with a caller-supplied function
type scriptedStrategy struct {
	dump    func(ctx context.Context, plan *Plan) (*Result, error)
	running atomic.Int32
	peak    atomic.Int32
}

func (s *scriptedStrategy) Name() string { return "scripted" }

func (s *scriptedStrategy) CanHandle(conn *database.Connection) bool {
	return conn.Kind() == database.KindMySQL
}

func (s *scriptedStrategy) ValidateConnection(context.Context, *database.Connection) bool { return true }

func (s *scriptedStrategy) ConfigureBackupPath(_ *database.Connection, basePath string) string {
	return basePath
}

func (s *scriptedStrategy) Dump(ctx context.Context, plan *Plan) (*Result, error) {
	n := s.running.Add(1)
	defer s.running.Add(-1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	return s.dump(ctx, plan)
}

// recorder keeps the reporter callbacks in the order they arrived
type recorder struct {
	events   []string
	outcomes []Outcome
}

func (r *recorder) Started(index int, plan *Plan) {
	r.events = append(r.events, fmt.Sprintf("start:%d:%s", index, plan.Connection.Identifier()))
}

func (r *recorder) Finished(o Outcome) {
	r.events = append(r.events, fmt.Sprintf("finish:%d", o.Index))
	r.outcomes = append(r.outcomes, o)
}

func plansFor(t *testing.T, names ...string) []*Plan {
	t.Helper()
	plans := make([]*Plan, 0, len(names))
	for _, name := range names {
		conn := newConnection(t, database.ConnectionConfig{Name: name, Driver: "mysql", Database: name})
		plans = append(plans, &Plan{Connection: conn, BackupPath: "/backups/" + name + ".sql"})
	}
	return plans
}

func TestRunner_SequentialOrderAndIsolation(t *testing.T) {
	strategy := &scriptedStrategy{dump: func(_ context.Context, plan *Plan) (*Result, error) {
		switch plan.Connection.Identifier() {
		case "b":
			return nil, apperrors.NewAppError(apperrors.ErrorTypeConnectionUnreachable, "down", nil)
		case "c":
			return &Result{Success: false, Output: "Got error: 1045"}, nil
		default:
			return &Result{Success: true}, nil
		}
	}}
	runner := NewRunner(NewDispatcher(nil, strategy), RunnerOptions{Fs: afero.NewMemMapFs()})
	rec := &recorder{}

	outcomes := runner.Run(context.Background(), plansFor(t, "a", "b", "c", "d"), rec)

	assert.Equal(t, []string{
		"start:0:a", "finish:0",
		"start:1:b", "finish:1",
		"start:2:c", "finish:2",
		"start:3:d", "finish:3",
	}, rec.events)

	require.Len(t, outcomes, 4)
	assert.True(t, outcomes[0].Succeeded())
	assert.False(t, outcomes[1].Succeeded())
	assert.True(t, errors.Is(outcomes[1].Err, apperrors.ErrConnectionUnreachable))
	assert.False(t, outcomes[2].Succeeded())
	assert.Equal(t, "Got error: 1045", outcomes[2].Output())
	assert.True(t, outcomes[3].Succeeded(), "a failure does not stop later dumps")
	assert.Equal(t, int32(1), strategy.peak.Load())
}

func TestRunner_ParallelKeepsPlanOrder(t *testing.T) {
	delays := map[string]time.Duration{"a": 60 * time.Millisecond, "b": 5 * time.Millisecond, "c": 30 * time.Millisecond, "d": 0}
	strategy := &scriptedStrategy{dump: func(_ context.Context, plan *Plan) (*Result, error) {
		time.Sleep(delays[plan.Connection.Identifier()])
		if plan.Connection.Identifier() == "b" {
			return &Result{Success: false, Output: "Got error"}, nil
		}
		return &Result{Success: true}, nil
	}}
	runner := NewRunner(NewDispatcher(nil, strategy), RunnerOptions{Workers: 3, Fs: afero.NewMemMapFs()})
	require.Equal(t, 3, runner.Workers())
	rec := &recorder{}

	outcomes := runner.Run(context.Background(), plansFor(t, "a", "b", "c", "d"), rec)

	assert.Equal(t, []string{
		"start:0:a", "finish:0",
		"start:1:b", "finish:1",
		"start:2:c", "finish:2",
		"start:3:d", "finish:3",
	}, rec.events)
	for i, o := range outcomes {
		assert.Equal(t, i, o.Index)
	}
	assert.False(t, outcomes[1].Succeeded())
	assert.True(t, outcomes[0].Succeeded())
	assert.True(t, outcomes[3].Succeeded())
	assert.LessOrEqual(t, strategy.peak.Load(), int32(3))
}

func TestRunner_Timeout(t *testing.T) {
	strategy := &scriptedStrategy{dump: func(ctx context.Context, _ *Plan) (*Result, error) {
		<-ctx.Done()
		return nil, apperrors.WrapError(ctx.Err(), "interrupted")
	}}
	runner := NewRunner(NewDispatcher(nil, strategy), RunnerOptions{Timeout: 20 * time.Millisecond})

	outcomes := runner.Run(context.Background(), plansFor(t, "slow"), nil)
	require.Len(t, outcomes, 1)
	assert.Equal(t, apperrors.ErrorTypeTimeout, apperrors.GetErrorType(outcomes[0].Err))
}

func TestRunner_CancelledContextSkipsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	strategy := &scriptedStrategy{dump: func(context.Context, *Plan) (*Result, error) {
		cancel()
		return &Result{Success: true}, nil
	}}
	runner := NewRunner(NewDispatcher(nil, strategy), RunnerOptions{})

	outcomes := runner.Run(ctx, plansFor(t, "a", "b"), nil)
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Succeeded())
	assert.Equal(t, apperrors.ErrorTypeInterruption, apperrors.GetErrorType(outcomes[1].Err))
}

func TestRunner_RecordsSize(t *testing.T) {
	fs := afero.NewMemMapFs()
	strategy := &scriptedStrategy{dump: func(_ context.Context, plan *Plan) (*Result, error) {
		if err := afero.WriteFile(fs, plan.BackupPath, make([]byte, 2048), 0o640); err != nil {
			return nil, err
		}
		return &Result{Success: true}, nil
	}}
	runner := NewRunner(NewDispatcher(nil, strategy), RunnerOptions{Fs: fs})

	outcomes := runner.Run(context.Background(), plansFor(t, "a"), nil)
	require.Len(t, outcomes, 1)
	assert.Equal(t, int64(2048), outcomes[0].Size)
	assert.True(t, outcomes[0].Duration >= 0)
}

func TestRunner_UnsupportedConnection(t *testing.T) {
	runner := NewRunner(NewDispatcher(nil, &scriptedStrategy{}), RunnerOptions{})
	conn := newConnection(t, database.ConnectionConfig{Name: "pg", Driver: "pgsql"})

	outcomes := runner.Run(context.Background(), []*Plan{{Connection: conn}}, nil)
	require.Len(t, outcomes, 1)
	assert.True(t, errors.Is(outcomes[0].Err, apperrors.ErrUnsupportedConnectionType))
	assert.Equal(t, "", outcomes[0].Output())
}

func TestRunner_Empty(t *testing.T) {
	runner := NewRunner(NewDispatcher(nil), RunnerOptions{Workers: 4})
	assert.Empty(t, runner.Run(context.Background(), nil, &recorder{}))
}
