package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dbdump/internal/errors"
	"dbdump/internal/logging"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver, registered as "pgx"
)

// DefaultProbeTimeout bounds a connectivity probe when none is configured
const DefaultProbeTimeout = 5 * time.Second

// Opener opens a database handle. sql.Open in production, sqlmock in tests.
type Opener func(driverName, dataSourceName string) (*sql.DB, error)

// Service probes database connectivity
type Service struct {
	timeout    time.Duration
	open       Opener
	logger     *logging.Logger
	classifier *errors.ErrorClassifier
}

// NewService creates a probe service backed by sql.Open
func NewService(logger *logging.Logger, timeout time.Duration) *Service {
	return NewServiceWithOpener(logger, timeout, sql.Open)
}

// NewServiceWithOpener creates a probe service with a custom opener
func NewServiceWithOpener(logger *logging.Logger, timeout time.Duration, open Opener) *Service {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if open == nil {
		open = sql.Open
	}
	return &Service{
		timeout:    timeout,
		open:       open,
		logger:     logger,
		classifier: errors.NewErrorClassifier(),
	}
}

// Timeout returns the probe timeout
func (s *Service) Timeout() time.Duration {
	return s.timeout
}

// DriverName returns the database/sql driver registered for kind
func DriverName(kind Kind) (string, bool) {
	switch kind {
	case KindMySQL:
		return "mysql", true
	case KindPostgreSQL:
		return "pgx", true
	default:
		return "", false
	}
}

func (s *Service) dataSource(conn *Connection) (string, string, error) {
	driver, ok := DriverName(conn.Kind())
	if !ok {
		return "", "", errors.Newf(errors.ErrorTypeUnsupportedConnectionType,
			"no probe driver for connection %q of kind %s", conn.Identifier(), conn.Kind())
	}
	switch conn.Kind() {
	case KindPostgreSQL:
		return driver, conn.PostgresDSN(s.timeout), nil
	default:
		return driver, conn.MySQLDSN(s.timeout), nil
	}
}

// Ping opens a handle for conn, pings it and closes it again on every path
func (s *Service) Ping(ctx context.Context, conn *Connection) (err error) {
	if conn == nil {
		return errors.NewAppError(errors.ErrorTypeNullConnection, "no connection given", nil)
	}

	driver, dsn, err := s.dataSource(conn)
	if err != nil {
		return err
	}

	db, err := s.open(driver, dsn)
	if err != nil {
		return errors.WrapError(err, "failed to open database handle")
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil && err == nil {
			err = errors.WrapError(closeErr, "failed to close database handle")
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return errors.WrapError(err, fmt.Sprintf("failed to ping %s", conn.Identifier()))
	}
	return nil
}

// Probe reports whether conn is reachable. Errors are logged, never returned.
func (s *Service) Probe(ctx context.Context, conn *Connection) bool {
	start := time.Now()
	err := s.Ping(ctx, conn)

	if err != nil {
		classified := s.classifier.ClassifyError(err)
		s.logger.WithContext(ctx).WithField("error_type", string(classified.Type)).
			Debug("Connectivity probe classified error")
	}
	s.logger.LogConnectionProbe(ctx, conn.Identifier(), conn.Host(), err == nil, time.Since(start), err)

	return err == nil
}
