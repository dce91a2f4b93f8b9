package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"load-forecast/internal/models"
	"load-forecast/pkg/logger"
)

type ClickHouseDB struct {
	conn driver.Conn
	log  *logger.Logger
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(ctx context.Context, addr, database, username, password string) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	db := &ClickHouseDB{conn: conn, log: logger.Component("clickhouse")}
	db.log.Infow("Connected to ClickHouse", "addr", addr, "database", database)

	if err := db.InitSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// InitSchema creates the necessary tables if they don't exist
func (db *ClickHouseDB) InitSchema(ctx context.Context) error {
	for _, tableSQL := range AllTables() {
		if err := db.conn.Exec(ctx, tableSQL); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	db.log.Info("Database schema initialized successfully")
	return nil
}

// Name identifies the database as a telemetry sink
func (db *ClickHouseDB) Name() string { return "clickhouse" }

// Insert writes a batch of telemetry rows into load_predictions. A batch
// is sent as one block, so any failure applies to the whole batch.
func (db *ClickHouseDB) Insert(ctx context.Context, rows []models.TelemetryRecord) []error {
	if len(rows) == 0 {
		return nil
	}
	if err := db.InsertPredictions(ctx, rows); err != nil {
		return []error{err}
	}
	return nil
}

// InsertPredictions batch-inserts served forecasts
func (db *ClickHouseDB) InsertPredictions(ctx context.Context, rows []models.TelemetryRecord) error {
	batch, err := db.conn.PrepareBatch(ctx, insertPredictionSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare prediction batch: %w", err)
	}

	for _, r := range rows {
		day, err := time.Parse(models.DateLayout, r.Date)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("invalid date on prediction %s: %w", r.RequestID, err)
		}
		if err := batch.Append(
			r.RequestID,
			day,
			r.Temperature,
			r.Humidity,
			r.Season,
			r.DayType,
			r.PredictedLoad,
			r.Timestamp,
		); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append prediction %s: %w", r.RequestID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to insert %d predictions: %w", len(rows), err)
	}

	return nil
}

// RecentPredictions returns the most recent served forecasts, newest first
func (db *ClickHouseDB) RecentPredictions(ctx context.Context, limit int) ([]models.TelemetryRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.Query(ctx, recentPredictionsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent predictions: %w", err)
	}
	defer rows.Close()

	var out []models.TelemetryRecord
	for rows.Next() {
		var r models.TelemetryRecord
		if err := rows.Scan(
			&r.RequestID,
			&r.Date,
			&r.Temperature,
			&r.Humidity,
			&r.Season,
			&r.DayType,
			&r.PredictedLoad,
			&r.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan prediction row: %w", err)
		}
		out = append(out, r)
	}

	return out, rows.Err()
}

// Ping checks the connection is alive
func (db *ClickHouseDB) Ping(ctx context.Context) error {
	return db.conn.Ping(ctx)
}

// Close closes the ClickHouse connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		if err := db.conn.Close(); err != nil {
			return fmt.Errorf("failed to close ClickHouse connection: %w", err)
		}
		db.log.Info("ClickHouse connection closed")
	}
	return nil
}
