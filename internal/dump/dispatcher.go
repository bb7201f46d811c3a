package dump

import (
	"context"

	"dbdump/internal/database"
	"dbdump/internal/errors"
	"dbdump/internal/logging"
)

// Dispatcher routes connections to the first registered strategy that can
// handle them. Registration order is priority order; it does not check
// whether two strategies claim the same kind.
type Dispatcher struct {
	strategies []Strategy
	logger     *logging.Logger
}

// NewDispatcher creates a dispatcher with the given strategies in priority order
func NewDispatcher(logger *logging.Logger, strategies ...Strategy) *Dispatcher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	d := &Dispatcher{logger: logger}
	for _, s := range strategies {
		d.Register(s)
	}
	return d
}

// Register appends a strategy. There is no way to remove one.
func (d *Dispatcher) Register(s Strategy) {
	d.strategies = append(d.strategies, s)
	d.logger.WithField("strategy", s.Name()).Debug("Registered dump strategy")
}

// Strategies returns the registered strategies in priority order
func (d *Dispatcher) Strategies() []Strategy {
	return append([]Strategy(nil), d.strategies...)
}

// StrategyFor returns the first strategy that can handle conn
func (d *Dispatcher) StrategyFor(conn *database.Connection) (Strategy, error) {
	if conn == nil {
		return nil, errors.NewAppError(errors.ErrorTypeNullConnection, "no connection given", nil)
	}
	if len(d.strategies) == 0 {
		return nil, errors.NewAppError(errors.ErrorTypeNoStrategiesRegistered,
			"no dump strategies are registered", nil)
	}
	for _, s := range d.strategies {
		if s.CanHandle(conn) {
			return s, nil
		}
	}
	return nil, errors.Newf(errors.ErrorTypeUnsupportedConnectionType,
		"no dump strategy supports connection %q of kind %s", conn.Identifier(), conn.Kind()).
		WithContext("kind", string(conn.Kind()))
}

// Dump hands plan to the matching strategy
func (d *Dispatcher) Dump(ctx context.Context, plan *Plan) (*Result, error) {
	if plan == nil {
		return nil, errors.NewAppError(errors.ErrorTypeNullConnection, "no plan given", nil)
	}
	strategy, err := d.StrategyFor(plan.Connection)
	if err != nil {
		return nil, err
	}
	d.logger.WithContext(ctx).WithField("strategy", strategy.Name()).
		WithFields(plan.Connection.LogFields()).Debug("Dispatching dump")
	return strategy.Dump(ctx, plan)
}

// ConfigureBackupPath plans conn against basePath. When no strategy claims
// the connection the plan carries an empty BackupPath.
func (d *Dispatcher) ConfigureBackupPath(conn *database.Connection, basePath string) *Plan {
	plan := &Plan{Connection: conn}
	strategy, err := d.StrategyFor(conn)
	if err != nil {
		return plan
	}
	plan.BackupPath = strategy.ConfigureBackupPath(conn, basePath)
	return plan
}
