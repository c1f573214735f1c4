package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // Import postgres driver
)

// PoolOptions задаёт размер пула соединений с Postgres.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Connect opens the Postgres pool and pings it. ctx bounds the ping; the caller
// decides how long startup may wait for the database.
func Connect(ctx context.Context, dsn string, pool PoolOptions, logger *slog.Logger) (*sql.DB, error) {
	return open(ctx, "postgres", dsn, pool, logger)
}

func open(ctx context.Context, driver, dsn string, pool PoolOptions, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database handle: %w", err)
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if err = db.PingContext(ctx); err != nil {
		// возвращаем ошибку ping, ошибку закрытия только логируем
		if closeErr := db.Close(); closeErr != nil {
			logger.WarnContext(ctx, "Failed to close database handle after ping error", slog.Any("error", closeErr))
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.InfoContext(ctx, "Database pool ready",
		slog.Int("max_open_conns", pool.MaxOpenConns),
		slog.Int("max_idle_conns", pool.MaxIdleConns),
		slog.Duration("conn_max_lifetime", pool.ConnMaxLifetime))
	return db, nil
}
