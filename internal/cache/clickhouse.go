package cache

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"
)

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Logger   *logrus.Logger
}

// ClickHouseJournal records every flow event for later inspection.
type ClickHouseJournal struct {
	conn   driver.Conn
	logger *logrus.Logger
}

func NewClickHouseJournal(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseJournal, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	j := &ClickHouseJournal{conn: conn, logger: cfg.Logger}
	if err := j.ensureSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	cfg.Logger.WithField("addr", cfg.Addr).Info("connected to ClickHouse")
	return j, nil
}

func (j *ClickHouseJournal) ensureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS flow_events (
			id String,
			session_id String,
			kind LowCardinality(String),
			pool String,
			stage LowCardinality(String),
			label String,
			signature String,
			status String,
			error String,
			timestamp DateTime64(3, 'UTC')
		) ENGINE = MergeTree
		ORDER BY (timestamp, session_id)
	`
	if err := j.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create flow_events table: %w", err)
	}
	return nil
}

// Publish inserts ev into the journal.
func (j *ClickHouseJournal) Publish(ctx context.Context, ev *Event) error {
	query := `
		INSERT INTO flow_events (
			id, session_id, kind, pool, stage, label,
			signature, status, error, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := j.conn.Exec(ctx, query,
		ev.ID,
		ev.SessionID,
		ev.Kind,
		ev.Pool,
		ev.Stage,
		ev.Label,
		ev.Signature,
		ev.Status,
		ev.Error,
		ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Recent returns the latest events for a pool, newest first.
func (j *ClickHouseJournal) Recent(ctx context.Context, pool string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.conn.Query(ctx, `
		SELECT id, session_id, kind, pool, stage, label, signature, status, error, timestamp
		FROM flow_events
		WHERE pool = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, pool, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Kind, &ev.Pool, &ev.Stage, &ev.Label,
			&ev.Signature, &ev.Status, &ev.Error, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}

func (j *ClickHouseJournal) Close() error {
	return j.conn.Close()
}
