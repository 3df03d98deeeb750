package executor

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// DriverName maps provider names to database/sql driver names
func DriverName(provider string) string {
	switch provider {
	case "postgresql", "postgres":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite":
		return "sqlite3"
	default:
		return ""
	}
}

// Open opens a database for provider. MySQL connections are opened with
// parseTime so date columns arrive as time.Time.
func Open(provider, dsn string) (*sql.DB, error) {
	driverName := DriverName(provider)
	if driverName == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, provider)
	}
	if driverName == "mysql" {
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		dsn = cfg.FormatDSN()
	}
	return sql.Open(driverName, dsn)
}

// ErrorCode returns the server error code carried by a driver error, or ""
// when err did not come from one of the supported drivers.
func ErrorCode(err error) string {
	if pqErr := (*pq.Error)(nil); errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	if myErr := (*mysql.MySQLError)(nil); errors.As(err, &myErr) {
		return strconv.Itoa(int(myErr.Number))
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code.Error()
	}
	return ""
}
