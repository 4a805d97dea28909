package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/presence/internal/config"
	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/verify"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Departments ---

func (s *PostgresStore) CreateDepartment(ctx context.Context, name string, lat, lng, radiusM float64) (*models.Department, error) {
	d := &models.Department{
		ID:      uuid.New(),
		Name:    name,
		Lat:     lat,
		Lng:     lng,
		RadiusM: radiusM,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO departments (id, name, lat, lng, radius_m) VALUES ($1, $2, $3, $4, $5) RETURNING created_at, updated_at`,
		d.ID, d.Name, d.Lat, d.Lng, d.RadiusM,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create department: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) GetDepartment(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	d := &models.Department{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, lat, lng, radius_m, created_at, updated_at FROM departments WHERE id = $1`, id,
	).Scan(&d.ID, &d.Name, &d.Lat, &d.Lng, &d.RadiusM, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get department: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) ListDepartments(ctx context.Context) ([]models.Department, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, lat, lng, radius_m, created_at, updated_at FROM departments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()

	var deps []models.Department
	for rows.Next() {
		var d models.Department
		if err := rows.Scan(&d.ID, &d.Name, &d.Lat, &d.Lng, &d.RadiusM, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		deps = append(deps, d)
	}
	return deps, nil
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, email, name string) (*models.User, error) {
	u := &models.User{
		ID:    uuid.New(),
		Email: email,
		Name:  name,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, name) VALUES ($1, $2, $3) RETURNING created_at, updated_at`,
		u.ID, u.Email, u.Name,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT id, email, name, department_id, created_at, updated_at FROM users WHERE id = $1`, id))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT id, email, name, department_id, created_at, updated_at FROM users WHERE email = $1`, email))
}

func (s *PostgresStore) scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.DepartmentID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) AssignDepartment(ctx context.Context, userID, departmentID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET department_id = $1, updated_at = now() WHERE id = $2`, departmentID, userID)
	if err != nil {
		return fmt.Errorf("assign department: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}

// --- Reference embeddings ---

func (s *PostgresStore) AddFaceEmbedding(ctx context.Context, userID uuid.UUID, embedding []float32, sourceKey string) (*models.FaceEmbedding, error) {
	fe := &models.FaceEmbedding{
		ID:        uuid.New(),
		UserID:    userID,
		Embedding: embedding,
		SourceKey: sourceKey,
	}
	vec := pgvector.NewVector(embedding)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO face_embeddings (id, user_id, embedding, source_key) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		fe.ID, fe.UserID, vec, fe.SourceKey,
	).Scan(&fe.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("add face embedding: %w", err)
	}
	return fe, nil
}

// ReferenceEmbeddings returns the raw vectors enrolled for one user, oldest
// first so scan-order tie breaking is stable.
func (s *PostgresStore) ReferenceEmbeddings(ctx context.Context, userID uuid.UUID) ([][]float32, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT embedding FROM face_embeddings WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list reference embeddings: %w", err)
	}
	defer rows.Close()

	var refs [][]float32
	for rows.Next() {
		var vec pgvector.Vector
		if err := rows.Scan(&vec); err != nil {
			return nil, fmt.Errorf("scan reference embedding: %w", err)
		}
		refs = append(refs, vec.Slice())
	}
	return refs, nil
}

func (s *PostgresStore) ListFaceEmbeddings(ctx context.Context, userID uuid.UUID) ([]models.FaceEmbedding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, source_key, created_at FROM face_embeddings WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list face embeddings: %w", err)
	}
	defer rows.Close()

	var faces []models.FaceEmbedding
	for rows.Next() {
		var fe models.FaceEmbedding
		if err := rows.Scan(&fe.ID, &fe.UserID, &fe.SourceKey, &fe.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan face embedding: %w", err)
		}
		faces = append(faces, fe)
	}
	return faces, nil
}

// EnrolledIdentities loads every user that has at least one reference
// embedding, for anonymous resolution.
func (s *PostgresStore) EnrolledIdentities(ctx context.Context) ([]verify.EnrolledIdentity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT u.id, u.email, u.name, u.department_id, u.created_at, u.updated_at, fe.embedding
		 FROM users u
		 JOIN face_embeddings fe ON fe.user_id = u.id
		 ORDER BY u.id, fe.created_at`)
	if err != nil {
		return nil, fmt.Errorf("load enrolled identities: %w", err)
	}
	defer rows.Close()

	var identities []verify.EnrolledIdentity
	byID := make(map[uuid.UUID]int)
	for rows.Next() {
		var u models.User
		var vec pgvector.Vector
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.DepartmentID, &u.CreatedAt, &u.UpdatedAt, &vec); err != nil {
			return nil, fmt.Errorf("scan enrolled identity: %w", err)
		}
		idx, ok := byID[u.ID]
		if !ok {
			idx = len(identities)
			byID[u.ID] = idx
			identities = append(identities, verify.EnrolledIdentity{User: u})
		}
		identities[idx].References = append(identities[idx].References, vec.Slice())
	}
	return identities, nil
}

// SearchFaces is the SQL-side nearest-neighbor fallback over the pgvector
// column. The verification engine itself resolves through verify.Resolver;
// this backs the provisioning /identify diagnostics.
func (s *PostgresStore) SearchFaces(ctx context.Context, embedding []float32, threshold float64, limit int) ([]FaceMatch, error) {
	if limit <= 0 {
		limit = 5
	}
	vec := pgvector.NewVector(embedding)

	rows, err := s.pool.Query(ctx,
		`SELECT fe.user_id, u.email, u.name, 1 - (fe.embedding <=> $1) AS score
		 FROM face_embeddings fe
		 JOIN users u ON u.id = fe.user_id
		 WHERE 1 - (fe.embedding <=> $1) >= $2
		 ORDER BY fe.embedding <=> $1
		 LIMIT $3`, vec, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("search faces: %w", err)
	}
	defer rows.Close()

	var matches []FaceMatch
	for rows.Next() {
		var m FaceMatch
		if err := rows.Scan(&m.UserID, &m.Email, &m.Name, &m.Score); err != nil {
			return nil, fmt.Errorf("scan face match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

type FaceMatch struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
	Score  float64   `json:"score"`
}

// --- Attendance events ---

func (s *PostgresStore) Last(ctx context.Context, userID uuid.UUID) (*models.AttendanceEvent, error) {
	return scanLastEvent(s.pool.QueryRow(ctx, lastEventQuery, userID))
}

func (s *PostgresStore) Append(ctx context.Context, ev *models.AttendanceEvent) error {
	_, err := s.pool.Exec(ctx, insertEventQuery,
		ev.ID, ev.UserID, ev.TS, ev.Action, ev.Score, ev.Lat, ev.Lng, ev.DistanceM, ev.Slot)
	if err != nil {
		return fmt.Errorf("append attendance event: %w", err)
	}
	return nil
}

const lastEventQuery = `SELECT id, user_id, ts, action, score, lat, lng, distance_m, slot
	 FROM attendance_events WHERE user_id = $1 ORDER BY ts DESC, id DESC LIMIT 1`

const insertEventQuery = `INSERT INTO attendance_events (id, user_id, ts, action, score, lat, lng, distance_m, slot)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func scanLastEvent(row pgx.Row) (*models.AttendanceEvent, error) {
	ev := &models.AttendanceEvent{}
	err := row.Scan(&ev.ID, &ev.UserID, &ev.TS, &ev.Action, &ev.Score,
		&ev.Lat, &ev.Lng, &ev.DistanceM, &ev.Slot)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last attendance event: %w", err)
	}
	return ev, nil
}

// WithIdentityLock serializes the read-then-append sequence for one user via
// a transaction-scoped advisory lock, so concurrent calls for the same
// identity cannot both observe the same last event. Everything written
// through the log commits atomically with the transaction.
func (s *PostgresStore) WithIdentityLock(ctx context.Context, userID uuid.UUID, fn func(ctx context.Context, log verify.TxLog) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin attendance tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, identityLockKey(userID)); err != nil {
		return fmt.Errorf("acquire identity lock: %w", err)
	}

	if err := fn(ctx, &txAttendanceLog{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit attendance tx: %w", err)
	}
	return nil
}

// identityLockKey folds a UUID into the 64-bit advisory-lock keyspace.
func identityLockKey(id uuid.UUID) int64 {
	return int64(binary.BigEndian.Uint64(id[:8]) ^ binary.BigEndian.Uint64(id[8:]))
}

type txAttendanceLog struct {
	tx pgx.Tx
}

func (l *txAttendanceLog) Last(ctx context.Context, userID uuid.UUID) (*models.AttendanceEvent, error) {
	return scanLastEvent(l.tx.QueryRow(ctx, lastEventQuery, userID))
}

func (l *txAttendanceLog) Append(ctx context.Context, ev *models.AttendanceEvent) error {
	_, err := l.tx.Exec(ctx, insertEventQuery,
		ev.ID, ev.UserID, ev.TS, ev.Action, ev.Score, ev.Lat, ev.Lng, ev.DistanceM, ev.Slot)
	if err != nil {
		return fmt.Errorf("append attendance event: %w", err)
	}
	return nil
}

func (l *txAttendanceLog) AppendAttempt(ctx context.Context, at *models.AttendanceAttempt) error {
	return insertAttempt(ctx, l.tx.Exec, at)
}

// --- Attempt records ---

const insertAttemptQuery = `INSERT INTO attendance_attempts
	 (id, ts, user_id, email, action, success, reason, detail, score, lat, lng, accuracy, distance_m, department_id, client_ip, user_agent, snapshot_key, slot)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

func insertAttempt(ctx context.Context, exec func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error), at *models.AttendanceAttempt) error {
	_, err := exec(ctx, insertAttemptQuery,
		at.ID, at.TS, at.UserID, at.Email, at.Action, at.Success, at.Reason, at.Detail,
		at.Score, at.Lat, at.Lng, at.Accuracy, at.DistanceM, at.DepartmentID,
		at.ClientIP, at.UserAgent, at.SnapshotKey, at.Slot)
	if err != nil {
		return fmt.Errorf("append attempt record: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendAttempt(ctx context.Context, at *models.AttendanceAttempt) error {
	return insertAttempt(ctx, s.pool.Exec, at)
}
