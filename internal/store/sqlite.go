package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/studykit/study-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures
// WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS current_user_ptr (
	id      INTEGER PRIMARY KEY CHECK (id = 1),
	user_id TEXT
);

CREATE TABLE IF NOT EXISTS notes (
	id         TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (user_id, id)
);

CREATE TABLE IF NOT EXISTS quiz_results (
	user_id        TEXT NOT NULL,
	note_id        TEXT NOT NULL,
	question_index INTEGER NOT NULL,
	user_answer    TEXT NOT NULL,
	correct_answer TEXT NOT NULL,
	is_correct     INTEGER NOT NULL,
	score          INTEGER NOT NULL,
	ts             DATETIME NOT NULL,
	PRIMARY KEY (user_id, note_id, question_index)
);

CREATE TABLE IF NOT EXISTS quiz_progress (
	user_id    TEXT NOT NULL,
	note_id    TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (user_id, note_id)
);

CREATE TABLE IF NOT EXISTS settings (
	user_id TEXT PRIMARY KEY,
	data    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_user ON notes(user_id);
CREATE INDEX IF NOT EXISTS idx_quiz_results_user_note ON quiz_results(user_id, note_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- profiles ---

func (s *SQLiteStore) CreateProfile(ctx context.Context, name, email string) (*model.UserProfile, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, created_at) VALUES (?, ?, ?, ?)`,
		id, name, email, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert user %s", email)
	}

	return &model.UserProfile{ID: id, Name: name, Email: email, CreatedAt: now}, nil
}

func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM users WHERE id = ?`, userID)

	var u model.UserProfile
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get user")
	}
	return &u, nil
}

func (s *SQLiteStore) ListProfiles(ctx context.Context) ([]model.UserProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, created_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list users")
	}
	defer rows.Close()

	var users []model.UserProfile
	for rows.Next() {
		var u model.UserProfile
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan user")
		}
		users = append(users, u)
	}
	return users, eris.Wrap(rows.Err(), "sqlite: list users iterate")
}

// DeleteProfile removes the profile and purges all four of its
// partitions in one transaction. The current-user pointer is cleared
// if it referenced the deleted profile.
func (s *SQLiteStore) DeleteProfile(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin delete profile")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return eris.Wrap(err, "sqlite: delete user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	for _, q := range []string{
		`DELETE FROM notes WHERE user_id = ?`,
		`DELETE FROM quiz_results WHERE user_id = ?`,
		`DELETE FROM quiz_progress WHERE user_id = ?`,
		`DELETE FROM settings WHERE user_id = ?`,
		`UPDATE current_user_ptr SET user_id = NULL WHERE user_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, userID); err != nil {
			return eris.Wrap(err, "sqlite: purge user partition")
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit delete profile")
}

func (s *SQLiteStore) CurrentUser(ctx context.Context) (*model.UserProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT u.id, u.name, u.email, u.created_at
		 FROM current_user_ptr c JOIN users u ON u.id = c.user_id
		 WHERE c.id = 1`)

	var u model.UserProfile
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: current user")
	}
	return &u, nil
}

func (s *SQLiteStore) SetCurrentUser(ctx context.Context, userID string) error {
	if _, err := s.GetProfile(ctx, userID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO current_user_ptr (id, user_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id`,
		userID,
	)
	return eris.Wrap(err, "sqlite: set current user")
}

// --- notes ---

func (s *SQLiteStore) SaveNote(ctx context.Context, note *model.Note) error {
	data, err := json.Marshal(note)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal note")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notes (id, user_id, data, created_at) VALUES (?, ?, ?, ?)`,
		note.ID, note.UserID, string(data), note.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert note %s", note.ID)
}

func (s *SQLiteStore) GetNote(ctx context.Context, userID, noteID string) (*model.Note, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM notes WHERE user_id = ? AND id = ?`, userID, noteID)

	var data string
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get note")
	}

	var note model.Note
	if err := json.Unmarshal([]byte(data), &note); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal note")
	}
	return &note, nil
}

func (s *SQLiteStore) ListNotes(ctx context.Context, userID string) ([]model.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM notes WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list notes")
	}
	defer rows.Close()

	var notes []model.Note
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan note")
		}
		var note model.Note
		if err := json.Unmarshal([]byte(data), &note); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal note")
		}
		notes = append(notes, note)
	}
	return notes, eris.Wrap(rows.Err(), "sqlite: list notes iterate")
}

// DeleteNote removes the note plus its quiz results and progress rows,
// leaving other notes' data untouched.
func (s *SQLiteStore) DeleteNote(ctx context.Context, userID, noteID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin delete note")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`DELETE FROM notes WHERE user_id = ? AND id = ?`, userID, noteID)
	if err != nil {
		return eris.Wrap(err, "sqlite: delete note")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM quiz_results WHERE user_id = ? AND note_id = ?`, userID, noteID); err != nil {
		return eris.Wrap(err, "sqlite: delete note results")
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM quiz_progress WHERE user_id = ? AND note_id = ?`, userID, noteID); err != nil {
		return eris.Wrap(err, "sqlite: delete note progress")
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit delete note")
}

// --- quiz results ---

func (s *SQLiteStore) UpsertQuizResult(ctx context.Context, userID string, r model.QuizResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quiz_results
			(user_id, note_id, question_index, user_answer, correct_answer, is_correct, score, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, note_id, question_index) DO UPDATE SET
			user_answer = excluded.user_answer,
			correct_answer = excluded.correct_answer,
			is_correct = excluded.is_correct,
			score = excluded.score,
			ts = excluded.ts`,
		userID, r.NoteID, r.QuestionIndex, r.UserAnswer, r.CorrectAnswer, r.IsCorrect, r.Score, r.Timestamp,
	)
	return eris.Wrap(err, "sqlite: upsert quiz result")
}

func (s *SQLiteStore) ListQuizResults(ctx context.Context, userID, noteID string) ([]model.QuizResult, error) {
	query := `SELECT note_id, question_index, user_answer, correct_answer, is_correct, score, ts
		 FROM quiz_results WHERE user_id = ?`
	args := []any{userID}
	if noteID != "" {
		query += ` AND note_id = ?`
		args = append(args, noteID)
	}
	query += ` ORDER BY note_id, question_index`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list quiz results")
	}
	defer rows.Close()

	var results []model.QuizResult
	for rows.Next() {
		var r model.QuizResult
		if err := rows.Scan(&r.NoteID, &r.QuestionIndex, &r.UserAnswer, &r.CorrectAnswer, &r.IsCorrect, &r.Score, &r.Timestamp); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan quiz result")
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: list quiz results iterate")
}

// --- quiz progress ---

func (s *SQLiteStore) GetQuizProgress(ctx context.Context, userID, noteID string) (*model.QuizProgress, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM quiz_progress WHERE user_id = ? AND note_id = ?`, userID, noteID)

	var data string
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get quiz progress")
	}

	var p model.QuizProgress
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal quiz progress")
	}
	return &p, nil
}

func (s *SQLiteStore) PutQuizProgress(ctx context.Context, userID string, p *model.QuizProgress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal quiz progress")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO quiz_progress (user_id, note_id, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, note_id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at`,
		userID, p.NoteID, string(data), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: put quiz progress")
}

// --- settings ---

func (s *SQLiteStore) GetSettings(ctx context.Context, userID string) (model.Settings, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM settings WHERE user_id = ?`, userID)

	var data string
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return model.Settings{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get settings")
	}

	var st model.Settings
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal settings")
	}
	return st, nil
}

func (s *SQLiteStore) PutSettings(ctx context.Context, userID string, st model.Settings) error {
	data, err := json.Marshal(st)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal settings")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO settings (user_id, data) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET data = excluded.data`,
		userID, string(data),
	)
	return eris.Wrap(err, "sqlite: put settings")
}
