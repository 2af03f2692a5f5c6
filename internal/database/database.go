package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ticket-ledger/internal/config"
	"ticket-ledger/internal/database/migrations"
	ledgerdb "ticket-ledger/internal/ledger/db"
	"ticket-ledger/internal/logger"
)

const maxRetries = 5

// Open connects to the configured database, retrying postgres while it starts
// up, and brings the ledger schema up to date.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	switch cfg.Driver {
	case "postgres":
		return openPostgres(ctx, cfg, log)
	case "sqlite":
		return openSQLite(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	var sqldb *sql.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.PingContext(ctx)
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		sqldb.Close()
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL after %d attempts: %w", maxRetries, err)
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	log.Info("DATABASE", "PostgreSQL connection successful")

	if !cfg.AutoMigrate {
		return bunDB, nil
	}
	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions(), log)
	if err := runner.RunMigrations(); err != nil {
		bunDB.Close()
		return nil, err
	}
	return bunDB, nil
}

func openSQLite(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// sqlite serializes writers; one connection keeps in-memory databases alive.
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, ledgerdb.SQLiteDialect())
	if err := (&ledgerdb.DB{Bun: bunDB}).CreateSchema(ctx); err != nil {
		bunDB.Close()
		return nil, err
	}
	log.LogDatabase("OPEN", "sqlite", fmt.Sprintf("Using sqlite database %s", cfg.DSN))
	return bunDB, nil
}
