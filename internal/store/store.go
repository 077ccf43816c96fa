// Package store persists user profiles and their private partitions
// of notes, quiz results, quiz progress, and settings.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/studykit/study-cli/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface. Each user owns a private
// partition; deleting a profile purges all four partitions and clears
// the current-user pointer if it referenced the deleted profile.
type Store interface {
	// Profiles
	CreateProfile(ctx context.Context, name, email string) (*model.UserProfile, error)
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)
	ListProfiles(ctx context.Context) ([]model.UserProfile, error)
	DeleteProfile(ctx context.Context, userID string) error
	CurrentUser(ctx context.Context) (*model.UserProfile, error) // nil when unset
	SetCurrentUser(ctx context.Context, userID string) error

	// Notes. Deleting a note cascades to its quiz results and
	// progress rows only.
	SaveNote(ctx context.Context, note *model.Note) error
	GetNote(ctx context.Context, userID, noteID string) (*model.Note, error)
	ListNotes(ctx context.Context, userID string) ([]model.Note, error)
	DeleteNote(ctx context.Context, userID, noteID string) error

	// Quiz results, keyed (user, note, question index); a later
	// result for the same key replaces the earlier one.
	UpsertQuizResult(ctx context.Context, userID string, result model.QuizResult) error
	ListQuizResults(ctx context.Context, userID, noteID string) ([]model.QuizResult, error) // noteID "" = all

	// Quiz progress, one row per note, fully overwritten on save.
	GetQuizProgress(ctx context.Context, userID, noteID string) (*model.QuizProgress, error) // nil when absent
	PutQuizProgress(ctx context.Context, userID string, progress *model.QuizProgress) error

	// Settings
	GetSettings(ctx context.Context, userID string) (model.Settings, error)
	PutSettings(ctx context.Context, userID string, settings model.Settings) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
