// Package store provides durable persistence for period and observation
// records. The engine treats the store as a write-through audit copy; any
// durable mapping of period id to record satisfies the contract.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/protocol"
)

// PostgresStore implements protocol.Store with PostgreSQL persistence.
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(config *PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS periods (
		id BIGINT PRIMARY KEY,
		status VARCHAR(32) NOT NULL,
		symptom_handle VARCHAR(128) NOT NULL,
		exposure_handle VARCHAR(128) NOT NULL,
		participants TEXT[] NOT NULL DEFAULT '{}',
		start_time TIMESTAMP WITH TIME ZONE NOT NULL,
		end_time TIMESTAMP WITH TIME ZONE,
		request_id VARCHAR(128) NOT NULL DEFAULT '',
		symptom_total BIGINT NOT NULL DEFAULT 0,
		exposure_total BIGINT NOT NULL DEFAULT 0,
		revealed BOOLEAN NOT NULL DEFAULT FALSE,
		symptom_alerted BOOLEAN NOT NULL DEFAULT FALSE,
		exposure_alerted BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS observations (
		period_id BIGINT NOT NULL,
		reporter VARCHAR(128) NOT NULL,
		symptom_handle VARCHAR(128) NOT NULL,
		exposure_handle VARCHAR(128) NOT NULL,
		submitted_at TIMESTAMP WITH TIME ZONE NOT NULL,
		PRIMARY KEY (period_id, reporter)
	);

	CREATE INDEX IF NOT EXISTS idx_periods_status ON periods(status);
	CREATE INDEX IF NOT EXISTS idx_observations_period ON observations(period_id);
	`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SavePeriod upserts a period record.
func (s *PostgresStore) SavePeriod(rec *protocol.PeriodRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
	INSERT INTO periods
		(id, status, symptom_handle, exposure_handle, participants, start_time, end_time,
		 request_id, symptom_total, exposure_total, revealed, symptom_alerted, exposure_alerted, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '0001-01-01 00:00:00+00'::timestamptz), $8, $9, $10, $11, $12, $13, NOW())
	ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status,
		symptom_handle = EXCLUDED.symptom_handle,
		exposure_handle = EXCLUDED.exposure_handle,
		participants = EXCLUDED.participants,
		end_time = EXCLUDED.end_time,
		request_id = EXCLUDED.request_id,
		symptom_total = EXCLUDED.symptom_total,
		exposure_total = EXCLUDED.exposure_total,
		revealed = EXCLUDED.revealed,
		symptom_alerted = EXCLUDED.symptom_alerted,
		exposure_alerted = EXCLUDED.exposure_alerted,
		updated_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		string(rec.Status),
		rec.SymptomHandle,
		rec.ExposureHandle,
		pq.Array(rec.Participants),
		rec.StartTime,
		rec.EndTime,
		rec.RequestID,
		rec.SymptomTotal,
		rec.ExposureTotal,
		rec.Revealed,
		rec.SymptomAlerted,
		rec.ExposureAlerted,
	)
	return err
}

// SaveObservation upserts an observation record.
func (s *PostgresStore) SaveObservation(rec *protocol.ObservationRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
	INSERT INTO observations (period_id, reporter, symptom_handle, exposure_handle, submitted_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (period_id, reporter) DO UPDATE SET
		symptom_handle = EXCLUDED.symptom_handle,
		exposure_handle = EXCLUDED.exposure_handle,
		submitted_at = EXCLUDED.submitted_at
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.PeriodID, rec.Reporter, rec.SymptomHandle, rec.ExposureHandle, rec.SubmittedAt)
	return err
}

// LoadPeriods retrieves all persisted period records ordered by id.
func (s *PostgresStore) LoadPeriods() ([]*protocol.PeriodRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, symptom_handle, exposure_handle, participants, start_time,
		       COALESCE(end_time, '0001-01-01 00:00:00+00'::timestamptz),
		       request_id, symptom_total, exposure_total, revealed, symptom_alerted, exposure_alerted
		FROM periods ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*protocol.PeriodRecord
	for rows.Next() {
		var (
			rec    protocol.PeriodRecord
			status string
		)
		if err := rows.Scan(
			&rec.ID, &status, &rec.SymptomHandle, &rec.ExposureHandle,
			pq.Array(&rec.Participants), &rec.StartTime, &rec.EndTime,
			&rec.RequestID, &rec.SymptomTotal, &rec.ExposureTotal,
			&rec.Revealed, &rec.SymptomAlerted, &rec.ExposureAlerted,
		); err != nil {
			return nil, fmt.Errorf("scanning period row: %w", err)
		}
		rec.Status = protocol.PeriodStatus(status)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// LoadObservations retrieves all persisted observation records.
func (s *PostgresStore) LoadObservations() ([]*protocol.ObservationRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT period_id, reporter, symptom_handle, exposure_handle, submitted_at
		FROM observations ORDER BY period_id, submitted_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*protocol.ObservationRecord
	for rows.Next() {
		var rec protocol.ObservationRecord
		if err := rows.Scan(&rec.PeriodID, &rec.Reporter, &rec.SymptomHandle, &rec.ExposureHandle, &rec.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scanning observation row: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
