package storage

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,

	`CREATE TABLE IF NOT EXISTS departments (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		lng DOUBLE PRECISION NOT NULL,
		radius_m DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		department_id UUID REFERENCES departments(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS face_embeddings (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		embedding vector(512) NOT NULL,
		source_key TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_face_embeddings_user ON face_embeddings(user_id)`,

	`CREATE TABLE IF NOT EXISTS attendance_events (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		ts TIMESTAMPTZ NOT NULL,
		action TEXT NOT NULL,
		score DOUBLE PRECISION,
		lat DOUBLE PRECISION NOT NULL,
		lng DOUBLE PRECISION NOT NULL,
		distance_m DOUBLE PRECISION NOT NULL,
		slot TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_attendance_events_user_ts ON attendance_events(user_id, ts DESC)`,

	`CREATE TABLE IF NOT EXISTS attendance_attempts (
		id UUID PRIMARY KEY,
		ts TIMESTAMPTZ NOT NULL,
		user_id UUID,
		email TEXT,
		action TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		reason TEXT,
		detail TEXT,
		score DOUBLE PRECISION,
		lat DOUBLE PRECISION NOT NULL,
		lng DOUBLE PRECISION NOT NULL,
		accuracy DOUBLE PRECISION,
		distance_m DOUBLE PRECISION,
		department_id UUID,
		client_ip TEXT,
		user_agent TEXT,
		snapshot_key TEXT,
		slot TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_attendance_attempts_ts ON attendance_attempts(ts DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_attempts_user ON attendance_attempts(user_id) WHERE user_id IS NOT NULL`,
}

// Migrate applies the schema. Statements are idempotent so running it on
// every startup is safe.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i, err)
		}
	}
	return nil
}
