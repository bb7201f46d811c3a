package database

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// Kind is the database engine behind a connection
type Kind string

const (
	KindMySQL      Kind = "mysql"
	KindPostgreSQL Kind = "postgresql"
	KindSQLite     Kind = "sqlite"
	KindUnknown    Kind = "unknown"
)

const (
	defaultMySQLPort    = 3306
	defaultPostgresPort = 5432
)

// KindFromDriver maps a configured driver name onto a Kind
func KindFromDriver(driver string) Kind {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "mysql", "pdo_mysql", "mysqli", "mariadb":
		return KindMySQL
	case "pgsql", "pdo_pgsql", "postgres", "postgresql", "pgx":
		return KindPostgreSQL
	case "sqlite", "sqlite3", "pdo_sqlite":
		return KindSQLite
	default:
		return KindUnknown
	}
}

// ConnectionConfig is one registry entry as it appears in the configuration file
type ConnectionConfig struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Driver   string `mapstructure:"driver" yaml:"driver"`
	Host     string `mapstructure:"host" yaml:"host,omitempty"`
	Port     int    `mapstructure:"port" yaml:"port,omitempty"`
	Username string `mapstructure:"username" yaml:"username,omitempty"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	Database string `mapstructure:"database" yaml:"database,omitempty"`
	DSN      string `mapstructure:"dsn" yaml:"dsn,omitempty"`
}

// Validate checks the entry before it is turned into a Connection
func (cc ConnectionConfig) Validate() error {
	var errs []error

	if strings.TrimSpace(cc.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}

	if cc.Driver == "" {
		errs = append(errs, errors.New("driver is required"))
	}

	if cc.Port < 0 || cc.Port > 65535 {
		errs = append(errs, errors.New("port must be between 0 and 65535"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("connection %q: %w", cc.Name, errors.Join(errs...))
	}
	return nil
}

// Connection identifies one database that can be backed up. It is immutable;
// a nil *Connection stands for an identifier that could not be resolved.
type Connection struct {
	identifier string
	driver     string
	kind       Kind
	host       string
	port       int
	username   string
	password   string
	database   string
}

// NewConnection builds a Connection from a registry entry. ${VAR} references
// are expanded from the environment and discrete fields win over the DSN.
func NewConnection(cfg ConnectionConfig) (*Connection, error) {
	cfg = expandEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	conn := &Connection{
		identifier: cfg.Name,
		driver:     cfg.Driver,
		kind:       KindFromDriver(cfg.Driver),
	}

	if cfg.DSN != "" {
		parsed, err := parseDSN(conn.kind, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("connection %q: invalid dsn: %w", cfg.Name, err)
		}
		conn.host = parsed.Host
		conn.port = parsed.Port
		conn.username = parsed.Username
		conn.password = parsed.Password
		conn.database = parsed.Database
	}

	if cfg.Host != "" {
		conn.host = cfg.Host
	}
	if cfg.Port != 0 {
		conn.port = cfg.Port
	}
	if cfg.Username != "" {
		conn.username = cfg.Username
	}
	if cfg.Password != "" {
		conn.password = cfg.Password
	}
	if cfg.Database != "" {
		conn.database = cfg.Database
	}

	return conn, nil
}

var envReference = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv replaces ${VAR} references with environment values. Any other
// '$' is literal, passwords like "pa$$w0rd" pass through unchanged.
func ExpandEnv(s string) string {
	return envReference.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})
}

func expandEnv(cfg ConnectionConfig) ConnectionConfig {
	cfg.Host = ExpandEnv(cfg.Host)
	cfg.Username = ExpandEnv(cfg.Username)
	cfg.Password = ExpandEnv(cfg.Password)
	cfg.Database = ExpandEnv(cfg.Database)
	cfg.DSN = ExpandEnv(cfg.DSN)
	return cfg
}

func parseDSN(kind Kind, dsn string) (ConnectionConfig, error) {
	switch kind {
	case KindMySQL:
		mc, err := mysql.ParseDSN(dsn)
		if err != nil {
			return ConnectionConfig{}, err
		}
		out := ConnectionConfig{
			Username: mc.User,
			Password: mc.Passwd,
			Database: mc.DBName,
		}
		if mc.Net == "tcp" && mc.Addr != "" {
			host, port, err := net.SplitHostPort(mc.Addr)
			if err != nil {
				return ConnectionConfig{}, err
			}
			out.Host = host
			out.Port, _ = strconv.Atoi(port)
		}
		return out, nil
	case KindPostgreSQL:
		pc, err := pgconn.ParseConfig(dsn)
		if err != nil {
			return ConnectionConfig{}, err
		}
		return ConnectionConfig{
			Host:     pc.Host,
			Port:     int(pc.Port),
			Username: pc.User,
			Password: pc.Password,
			Database: pc.Database,
		}, nil
	default:
		return ConnectionConfig{}, fmt.Errorf("dsn is not supported for driver kind %s", kind)
	}
}

// Identifier returns the user-facing, case-sensitive name
func (c *Connection) Identifier() string {
	if c == nil {
		return ""
	}
	return c.identifier
}

// Driver returns the configured driver name
func (c *Connection) Driver() string {
	if c == nil {
		return ""
	}
	return c.driver
}

// Kind returns the database engine; absent connections are KindUnknown
func (c *Connection) Kind() Kind {
	if c == nil {
		return KindUnknown
	}
	return c.kind
}

func (c *Connection) Host() string {
	if c == nil {
		return ""
	}
	return c.host
}

// Port returns the configured port, 0 when unset
func (c *Connection) Port() int {
	if c == nil {
		return 0
	}
	return c.port
}

func (c *Connection) Username() string {
	if c == nil {
		return ""
	}
	return c.username
}

// Password returns the secret. Never log it.
func (c *Connection) Password() string {
	if c == nil {
		return ""
	}
	return c.password
}

func (c *Connection) Database() string {
	if c == nil {
		return ""
	}
	return c.database
}

// IsResolved reports whether the connection exists and has a known kind
func (c *Connection) IsResolved() bool {
	return c != nil && c.kind != KindUnknown
}

// String returns a description without the password
func (c *Connection) String() string {
	if c == nil {
		return "<unresolved>"
	}
	return fmt.Sprintf("%s (%s://%s@%s/%s)", c.identifier, c.kind, c.username, c.address(), c.database)
}

// LogFields returns structured log fields without the password
func (c *Connection) LogFields() map[string]interface{} {
	return map[string]interface{}{
		"connection": c.Identifier(),
		"kind":       string(c.Kind()),
		"host":       c.Host(),
		"port":       c.Port(),
		"database":   c.Database(),
	}
}

func (c *Connection) address() string {
	port := c.port
	if port == 0 {
		switch c.kind {
		case KindMySQL:
			port = defaultMySQLPort
		case KindPostgreSQL:
			port = defaultPostgresPort
		}
	}
	host := c.host
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// MySQLDSN returns a go-sql-driver/mysql DSN for the probe
func (c *Connection) MySQLDSN(timeout time.Duration) string {
	cfg := mysql.NewConfig()
	cfg.User = c.Username()
	cfg.Passwd = c.Password()
	cfg.Net = "tcp"
	cfg.Addr = c.address()
	cfg.DBName = c.Database()
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	return cfg.FormatDSN()
}

// PostgresDSN returns a postgres:// URL for the pgx stdlib driver
func (c *Connection) PostgresDSN(timeout time.Duration) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   c.address(),
		Path:   "/" + c.Database(),
	}
	if c.Username() != "" {
		if c.Password() != "" {
			u.User = url.UserPassword(c.Username(), c.Password())
		} else {
			u.User = url.User(c.Username())
		}
	}
	if timeout > 0 {
		seconds := int(timeout.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		u.RawQuery = url.Values{"connect_timeout": []string{strconv.Itoa(seconds)}}.Encode()
	}
	return u.String()
}
