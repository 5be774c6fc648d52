package database

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Driver identifies the database/sql driver a Connection is opened with.
type Driver string

const (
	DriverMySQL    Driver = "mysql"
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

const (
	defaultHost           = "127.0.0.1"
	defaultMySQLPort      = 3306
	defaultPostgresPort   = 5432
	defaultUser           = "root"
	defaultSSLMode        = "disable"
	defaultConnectTimeout = 5 * time.Second
	sqliteBusyTimeoutMs   = 5000
)

// Config holds the parameters needed to open a Connection.
type Config struct {
	Driver   Driver
	Host     string
	Port     int
	User     string
	Password string
	Schema   string

	// Path is the database file for the sqlite driver.
	Path string

	// SSLMode is passed through to lib/pq. Ignored by the other drivers.
	SSLMode string

	ConnectTimeout time.Duration
}

// DefaultConfig returns a MySQL configuration pointing at localhost.
func DefaultConfig() Config {
	return Config{
		Driver:         DriverMySQL,
		Host:           defaultHost,
		Port:           defaultMySQLPort,
		User:           defaultUser,
		SSLMode:        defaultSSLMode,
		ConnectTimeout: defaultConnectTimeout,
	}
}

// ConfigFromParams builds a Config from a parameter map using the keys
// host, user, passwd and schema. The optional keys driver, port, path and
// sslmode override the defaults.
func ConfigFromParams(params map[string]string) (Config, error) {
	cfg := DefaultConfig()

	if v, ok := params["driver"]; ok && v != "" {
		cfg.Driver = Driver(strings.ToLower(v))
		cfg.Port = defaultPortFor(cfg.Driver)
	}
	if v, ok := params["host"]; ok {
		cfg.Host = v
	}
	if v, ok := params["user"]; ok {
		cfg.User = v
	}
	if v, ok := params["passwd"]; ok {
		cfg.Password = v
	}
	if v, ok := params["schema"]; ok {
		cfg.Schema = v
	}
	if v, ok := params["path"]; ok {
		cfg.Path = v
	}
	if v, ok := params["sslmode"]; ok && v != "" {
		cfg.SSLMode = v
	}
	if v, ok := params["port"]; ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid port %q: %w", v, err)
		}
		cfg.Port = port
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ConfigFromEnv reads CONNECTOR_DRIVER, DB_HOST, DB_PORT, DB_USER,
// DB_PASSWORD, DB_SCHEMA, DB_PATH and DB_SSLMODE. Unset variables keep
// their defaults. The result is not validated.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if driver := os.Getenv("CONNECTOR_DRIVER"); driver != "" {
		cfg.Driver = Driver(strings.ToLower(driver))
		cfg.Port = defaultPortFor(cfg.Driver)
	}
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	cfg.Password = os.Getenv("DB_PASSWORD")
	cfg.Schema = os.Getenv("DB_SCHEMA")
	cfg.Path = os.Getenv("DB_PATH")
	if mode := os.Getenv("DB_SSLMODE"); mode != "" {
		cfg.SSLMode = mode
	}

	return cfg
}

func defaultPortFor(driver Driver) int {
	switch driver {
	case DriverPostgres:
		return defaultPostgresPort
	case DriverSQLite:
		return 0
	default:
		return defaultMySQLPort
	}
}

// Validate reports the first missing or invalid field.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverMySQL, DriverPostgres:
		if c.Host == "" {
			return NewError(ErrorCodeMissingRequiredField, "Missing required field: host", "")
		}
		if c.User == "" {
			return NewError(ErrorCodeMissingRequiredField, "Missing required field: user", "")
		}
		if c.Schema == "" {
			return NewError(ErrorCodeMissingRequiredField, "Missing required field: schema", "")
		}
		if c.Port <= 0 || c.Port > 65535 {
			return NewError(ErrorCodeInvalidInput, "Invalid port", fmt.Sprintf("port %d is out of range", c.Port))
		}
	case DriverSQLite:
		if c.Path == "" {
			return NewError(ErrorCodeMissingRequiredField, "Missing required field: path", "")
		}
	default:
		return NewError(ErrorCodeInvalidInput, "Unsupported driver", fmt.Sprintf("driver %q is not one of mysql, postgres, sqlite", c.Driver))
	}
	return nil
}

// DSN returns the driver specific data source name.
func (c Config) DSN() string {
	switch c.Driver {
	case DriverPostgres:
		return buildPostgresDSN(c)
	case DriverSQLite:
		return buildSQLiteDSN(c)
	default:
		return buildMySQLDSN(c)
	}
}

func buildMySQLDSN(c Config) string {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.DBName = c.Schema
	mc.ParseTime = true
	// Real server-side prepares, never client-side interpolation.
	mc.InterpolateParams = false
	if c.ConnectTimeout > 0 {
		mc.Timeout = c.ConnectTimeout
	}
	return mc.FormatDSN()
}

func buildPostgresDSN(c Config) string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = defaultSSLMode
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		conninfoValue(c.Host), c.Port, conninfoValue(c.User), conninfoValue(c.Schema), conninfoValue(sslMode))

	if c.ConnectTimeout > 0 {
		dsn += fmt.Sprintf(" connect_timeout=%d", int(c.ConnectTimeout.Seconds()))
	}
	if c.Password != "" {
		dsn += " password=" + conninfoValue(c.Password)
	}

	return dsn
}

// conninfoValue quotes v for a key=value conninfo string when it is empty or
// holds whitespace, a quote or a backslash.
func conninfoValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t\n\r\f\v'\\") {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

func buildSQLiteDSN(c Config) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", sqliteBusyTimeoutMs))
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + c.Path + "?" + q.Encode()
}

// SupportedDrivers lists the drivers a Config may name.
func SupportedDrivers() []Driver {
	return []Driver{DriverMySQL, DriverPostgres, DriverSQLite}
}
