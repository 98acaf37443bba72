package db

import (
	"context"
	"fmt"
	"time"

	"fleet-dash/internal/config"
	"fleet-dash/internal/hub-service/core/myerrors"
	"fleet-dash/internal/mylogger"

	"github.com/jackc/pgx/v5/pgxpool"
)

const maxRetries = 5

const schema = `
CREATE TABLE IF NOT EXISTS drivers (
	driver_id      TEXT PRIMARY KEY,
	driver_name    TEXT NOT NULL,
	mobile_number  TEXT NOT NULL UNIQUE,
	password_hash  BYTEA NOT NULL,
	rc_book_number TEXT NOT NULL,
	car_model      TEXT NOT NULL,
	is_active      BOOLEAN NOT NULL DEFAULT TRUE,
	latitude       DOUBLE PRECISION,
	longitude      DOUBLE PRECISION,
	location_seq   BIGINT NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS drivers_created_at_idx ON drivers (created_at);
`

type DataBase struct {
	cfg   *config.DBconfig
	mylog mylogger.Logger
	pool  *pgxpool.Pool
}

// ConnectDB opens the pool with retries and makes sure the schema exists.
func ConnectDB(ctx context.Context, dbCfg *config.DBconfig, mylog mylogger.Logger) (*DataBase, error) {
	d := &DataBase{
		cfg:   dbCfg,
		mylog: mylog.Action("db"),
	}

	if err := d.connect(ctx); err != nil {
		return nil, err
	}
	if _, err := d.pool.Exec(ctx, schema); err != nil {
		d.pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return d, nil
}

func (d *DataBase) Pool() *pgxpool.Pool {
	return d.pool
}

func (d *DataBase) Close() error {
	if d.pool == nil {
		return myerrors.ErrDatabaseNotReady
	}
	d.pool.Close()
	return nil
}

// IsAlive pings the DB to verify it's responsive
func (d *DataBase) IsAlive(ctx context.Context) error {
	if d.pool == nil {
		return myerrors.ErrDatabaseNotReady
	}
	if err := d.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

func (d *DataBase) connect(ctx context.Context) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		pool, err := pgxpool.New(ctx, d.cfg.DSN())
		if err == nil {
			err = pool.Ping(ctx)
			if err != nil {
				pool.Close()
			}
		}
		if err != nil {
			lastErr = fmt.Errorf("failed to connect to database: %w", err)
			d.mylog.Error(fmt.Sprintf("DB connection attempt %d failed", i+1), err)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second * time.Duration(i+1)):
			}
			continue
		}

		d.pool = pool
		d.mylog.Info("Successfully connected to the database")
		return nil
	}
	return fmt.Errorf("failed to connect to the database after %d attempts: %w", maxRetries, lastErr)
}
