package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strconv"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/gatewaysync/pkg/db"
)

const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// gooseMu guards goose's package-level dialect and base FS.
var gooseMu sync.Mutex

// Dialect maps a db driver name to the goose dialect.
func Dialect(driver string) (string, error) {
	switch driver {
	case "", db.DriverPostgres:
		return "postgres", nil
	case db.DriverSQLite:
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported db driver %q", driver)
	}
}

// Run executes a goose command against conn. An empty dir runs the
// migrations compiled into the binary.
func Run(ctx context.Context, conn *sql.DB, driver, dir, command string, args ...string) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	return withGoose(driver, dir, func(dir string) error {
		if err := goose.RunContext(ctx, command, conn, dir, args...); err != nil {
			return fmt.Errorf("goose %s: %w", command, err)
		}
		return nil
	})
}

// MigrateToVersion migrates up or down to targetVersion (YYYYMMDDHHMMSS).
func MigrateToVersion(ctx context.Context, conn *sql.DB, driver, dir, targetVersion string) error {
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}

	return withGoose(driver, dir, func(dir string) error {
		current, err := goose.GetDBVersion(conn)
		if err != nil {
			return fmt.Errorf("get db version: %w", err)
		}
		switch {
		case current == target:
			return nil
		case current < target:
			if err := goose.UpToContext(ctx, conn, dir, target); err != nil {
				return fmt.Errorf("goose up-to %d: %w", target, err)
			}
		default:
			if err := goose.DownToContext(ctx, conn, dir, target); err != nil {
				return fmt.Errorf("goose down-to %d: %w", target, err)
			}
		}
		return nil
	})
}

func withGoose(driver, dir string, fn func(dir string) error) error {
	dialect, err := Dialect(driver)
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if dir == "" {
		sub, err := fs.Sub(embedded, "migrations")
		if err != nil {
			return fmt.Errorf("open embedded migrations: %w", err)
		}
		goose.SetBaseFS(sub)
		defer goose.SetBaseFS(nil)
		dir = "."
	}
	return fn(dir)
}
