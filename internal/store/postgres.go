package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/studykit/study-cli/internal/db"
	"github.com/studykit/study-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with a
// mock pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS current_user_ptr (
	id      INTEGER PRIMARY KEY CHECK (id = 1),
	user_id TEXT
);

CREATE TABLE IF NOT EXISTS notes (
	id         TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, id)
);

CREATE TABLE IF NOT EXISTS quiz_results (
	user_id        TEXT NOT NULL,
	note_id        TEXT NOT NULL,
	question_index INTEGER NOT NULL,
	user_answer    TEXT NOT NULL,
	correct_answer TEXT NOT NULL,
	is_correct     BOOLEAN NOT NULL,
	score          INTEGER NOT NULL,
	ts             TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, note_id, question_index)
);

CREATE TABLE IF NOT EXISTS quiz_progress (
	user_id    TEXT NOT NULL,
	note_id    TEXT NOT NULL,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, note_id)
);

CREATE TABLE IF NOT EXISTS settings (
	user_id TEXT PRIMARY KEY,
	data    JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_user ON notes(user_id);
CREATE INDEX IF NOT EXISTS idx_quiz_results_user_note ON quiz_results(user_id, note_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- profiles ---

func (s *PostgresStore) CreateProfile(ctx context.Context, name, email string) (*model.UserProfile, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, name, email, created_at) VALUES ($1, $2, $3, $4)`,
		id, name, email, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert user %s", email)
	}
	return &model.UserProfile{ID: id, Name: name, Email: email, CreatedAt: now}, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, email, created_at FROM users WHERE id = $1`, userID)

	var u model.UserProfile
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get user")
	}
	return &u, nil
}

func (s *PostgresStore) ListProfiles(ctx context.Context) ([]model.UserProfile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, email, created_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list users")
	}
	defer rows.Close()

	var users []model.UserProfile
	for rows.Next() {
		var u model.UserProfile
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan user")
		}
		users = append(users, u)
	}
	return users, eris.Wrap(rows.Err(), "postgres: list users iterate")
}

func (s *PostgresStore) DeleteProfile(ctx context.Context, userID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin delete profile")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return eris.Wrap(err, "postgres: delete user")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	for _, q := range []string{
		`DELETE FROM notes WHERE user_id = $1`,
		`DELETE FROM quiz_results WHERE user_id = $1`,
		`DELETE FROM quiz_progress WHERE user_id = $1`,
		`DELETE FROM settings WHERE user_id = $1`,
		`UPDATE current_user_ptr SET user_id = NULL WHERE user_id = $1`,
	} {
		if _, err := tx.Exec(ctx, q, userID); err != nil {
			return eris.Wrap(err, "postgres: purge user partition")
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit delete profile")
}

func (s *PostgresStore) CurrentUser(ctx context.Context) (*model.UserProfile, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT u.id, u.name, u.email, u.created_at
		 FROM current_user_ptr c JOIN users u ON u.id = c.user_id
		 WHERE c.id = 1`)

	var u model.UserProfile
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: current user")
	}
	return &u, nil
}

func (s *PostgresStore) SetCurrentUser(ctx context.Context, userID string) error {
	if _, err := s.GetProfile(ctx, userID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO current_user_ptr (id, user_id) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET user_id = EXCLUDED.user_id`,
		userID,
	)
	return eris.Wrap(err, "postgres: set current user")
}

// --- notes ---

func (s *PostgresStore) SaveNote(ctx context.Context, note *model.Note) error {
	data, err := json.Marshal(note)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal note")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO notes (id, user_id, data, created_at) VALUES ($1, $2, $3, $4)`,
		note.ID, note.UserID, string(data), note.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert note %s", note.ID)
}

func (s *PostgresStore) GetNote(ctx context.Context, userID, noteID string) (*model.Note, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT data FROM notes WHERE user_id = $1 AND id = $2`, userID, noteID)

	var data string
	err := row.Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get note")
	}

	var note model.Note
	if err := json.Unmarshal([]byte(data), &note); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal note")
	}
	return &note, nil
}

func (s *PostgresStore) ListNotes(ctx context.Context, userID string) ([]model.Note, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM notes WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list notes")
	}
	defer rows.Close()

	var notes []model.Note
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan note")
		}
		var note model.Note
		if err := json.Unmarshal([]byte(data), &note); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal note")
		}
		notes = append(notes, note)
	}
	return notes, eris.Wrap(rows.Err(), "postgres: list notes iterate")
}

func (s *PostgresStore) DeleteNote(ctx context.Context, userID, noteID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin delete note")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`DELETE FROM notes WHERE user_id = $1 AND id = $2`, userID, noteID)
	if err != nil {
		return eris.Wrap(err, "postgres: delete note")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM quiz_results WHERE user_id = $1 AND note_id = $2`, userID, noteID); err != nil {
		return eris.Wrap(err, "postgres: delete note results")
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM quiz_progress WHERE user_id = $1 AND note_id = $2`, userID, noteID); err != nil {
		return eris.Wrap(err, "postgres: delete note progress")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit delete note")
}

// --- quiz results ---

func (s *PostgresStore) UpsertQuizResult(ctx context.Context, userID string, r model.QuizResult) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO quiz_results
			(user_id, note_id, question_index, user_answer, correct_answer, is_correct, score, ts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id, note_id, question_index) DO UPDATE SET
			user_answer = EXCLUDED.user_answer,
			correct_answer = EXCLUDED.correct_answer,
			is_correct = EXCLUDED.is_correct,
			score = EXCLUDED.score,
			ts = EXCLUDED.ts`,
		userID, r.NoteID, r.QuestionIndex, r.UserAnswer, r.CorrectAnswer, r.IsCorrect, r.Score, r.Timestamp,
	)
	return eris.Wrap(err, "postgres: upsert quiz result")
}

func (s *PostgresStore) ListQuizResults(ctx context.Context, userID, noteID string) ([]model.QuizResult, error) {
	query := `SELECT note_id, question_index, user_answer, correct_answer, is_correct, score, ts
		 FROM quiz_results WHERE user_id = $1`
	args := []any{userID}
	if noteID != "" {
		query += ` AND note_id = $2`
		args = append(args, noteID)
	}
	query += ` ORDER BY note_id, question_index`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list quiz results")
	}
	defer rows.Close()

	var results []model.QuizResult
	for rows.Next() {
		var r model.QuizResult
		if err := rows.Scan(&r.NoteID, &r.QuestionIndex, &r.UserAnswer, &r.CorrectAnswer, &r.IsCorrect, &r.Score, &r.Timestamp); err != nil {
			return nil, eris.Wrap(err, "postgres: scan quiz result")
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: list quiz results iterate")
}

// --- quiz progress ---

func (s *PostgresStore) GetQuizProgress(ctx context.Context, userID, noteID string) (*model.QuizProgress, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT data FROM quiz_progress WHERE user_id = $1 AND note_id = $2`, userID, noteID)

	var data string
	err := row.Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get quiz progress")
	}

	var p model.QuizProgress
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal quiz progress")
	}
	return &p, nil
}

func (s *PostgresStore) PutQuizProgress(ctx context.Context, userID string, p *model.QuizProgress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal quiz progress")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO quiz_progress (user_id, note_id, data, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, note_id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at`,
		userID, p.NoteID, string(data), time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: put quiz progress")
}

// --- settings ---

func (s *PostgresStore) GetSettings(ctx context.Context, userID string) (model.Settings, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT data FROM settings WHERE user_id = $1`, userID)

	var data string
	err := row.Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Settings{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get settings")
	}

	var st model.Settings
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal settings")
	}
	return st, nil
}

func (s *PostgresStore) PutSettings(ctx context.Context, userID string, st model.Settings) error {
	data, err := json.Marshal(st)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal settings")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO settings (user_id, data) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data`,
		userID, string(data),
	)
	return eris.Wrap(err, "postgres: put settings")
}
