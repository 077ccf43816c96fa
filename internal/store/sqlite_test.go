package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studykit/study-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testNote(userID, noteID string) *model.Note {
	return &model.Note{
		ID:        noteID,
		UserID:    userID,
		Title:     "Cell Biology",
		Summary:   "Cells are the basic unit of life.",
		KeyPoints: []string{"one", "two"},
		Flashcards: []model.Flashcard{
			{Question: "Q", Answer: "A"},
		},
		Questions: []model.Question{
			{Type: model.QuestionTypeMCQ, Question: "Pick", Options: []string{"a", "b", "c", "d"}, Correct: "A"},
		},
		WordCount: 7,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

// --- Profiles ---

func TestSQLite_Profile_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p, err := st.CreateProfile(ctx, "Alice", "alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)

	got, err := st.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, "alice@example.com", got.Email)
}

func TestSQLite_Profile_DuplicateEmail(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.CreateProfile(ctx, "Alice", "alice@example.com")
	require.NoError(t, err)

	_, err = st.CreateProfile(ctx, "Alice Again", "alice@example.com")
	assert.Error(t, err)
}

func TestSQLite_Profile_GetMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetProfile(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_Profile_List(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.CreateProfile(ctx, "Alice", "alice@example.com")
	require.NoError(t, err)
	_, err = st.CreateProfile(ctx, "Bob", "bob@example.com")
	require.NoError(t, err)

	profiles, err := st.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
}

func TestSQLite_CurrentUser_UnsetIsNil(t *testing.T) {
	st := newTestSQLiteStore(t)

	current, err := st.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestSQLite_CurrentUser_SetAndSwitch(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	alice, err := st.CreateProfile(ctx, "Alice", "alice@example.com")
	require.NoError(t, err)
	bob, err := st.CreateProfile(ctx, "Bob", "bob@example.com")
	require.NoError(t, err)

	require.NoError(t, st.SetCurrentUser(ctx, alice.ID))
	current, err := st.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, current.ID)

	require.NoError(t, st.SetCurrentUser(ctx, bob.ID))
	current, err = st.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, current.ID)
}

func TestSQLite_SetCurrentUser_UnknownProfile(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.SetCurrentUser(context.Background(), "ghost")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_DeleteProfile_PurgesPartitionsAndPointer(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	alice, err := st.CreateProfile(ctx, "Alice", "alice@example.com")
	require.NoError(t, err)
	bob, err := st.CreateProfile(ctx, "Bob", "bob@example.com")
	require.NoError(t, err)
	require.NoError(t, st.SetCurrentUser(ctx, alice.ID))

	require.NoError(t, st.SaveNote(ctx, testNote(alice.ID, "note-a")))
	require.NoError(t, st.SaveNote(ctx, testNote(bob.ID, "note-b")))
	require.NoError(t, st.UpsertQuizResult(ctx, alice.ID, model.QuizResult{
		NoteID: "note-a", UserAnswer: "A", CorrectAnswer: "A", IsCorrect: true, Score: 1,
		Timestamp: time.Now().UTC(),
	}))
	require.NoError(t, st.PutQuizProgress(ctx, alice.ID, model.NewQuizProgress("note-a")))
	require.NoError(t, st.PutSettings(ctx, alice.ID, model.Settings{"theme": "dark"}))

	require.NoError(t, st.DeleteProfile(ctx, alice.ID))

	_, err = st.GetProfile(ctx, alice.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	notes, err := st.ListNotes(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, notes)

	results, err := st.ListQuizResults(ctx, alice.ID, "")
	require.NoError(t, err)
	assert.Empty(t, results)

	progress, err := st.GetQuizProgress(ctx, alice.ID, "note-a")
	require.NoError(t, err)
	assert.Nil(t, progress)

	settings, err := st.GetSettings(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, settings)

	current, err := st.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, current, "pointer to deleted profile must be cleared")

	// Bob's partition is untouched.
	bobNotes, err := st.ListNotes(ctx, bob.ID)
	require.NoError(t, err)
	assert.Len(t, bobNotes, 1)
}

func TestSQLite_DeleteProfile_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.DeleteProfile(context.Background(), "ghost")
	assert.True(t, errors.Is(err, ErrNotFound))
}

// --- Notes ---

func TestSQLite_Note_SaveGetRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	note := testNote("user-1", "note-1")
	require.NoError(t, st.SaveNote(ctx, note))

	got, err := st.GetNote(ctx, "user-1", "note-1")
	require.NoError(t, err)
	assert.Equal(t, note.Title, got.Title)
	assert.Equal(t, note.KeyPoints, got.KeyPoints)
	assert.Equal(t, note.Flashcards, got.Flashcards)
	assert.Equal(t, note.Questions, got.Questions)
}

func TestSQLite_Note_PartitionIsolation(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveNote(ctx, testNote("user-1", "note-1")))

	_, err := st.GetNote(ctx, "user-2", "note-1")
	assert.True(t, errors.Is(err, ErrNotFound), "notes must not leak across users")
}

func TestSQLite_Note_ListNewestFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	older := testNote("user-1", "older")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := testNote("user-1", "newer")

	require.NoError(t, st.SaveNote(ctx, older))
	require.NoError(t, st.SaveNote(ctx, newer))

	notes, err := st.ListNotes(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "newer", notes[0].ID)
	assert.Equal(t, "older", notes[1].ID)
}

func TestSQLite_DeleteNote_CascadesToQuizData(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveNote(ctx, testNote("user-1", "note-1")))
	require.NoError(t, st.SaveNote(ctx, testNote("user-1", "note-2")))

	for _, noteID := range []string{"note-1", "note-2"} {
		require.NoError(t, st.UpsertQuizResult(ctx, "user-1", model.QuizResult{
			NoteID: noteID, UserAnswer: "A", CorrectAnswer: "A", IsCorrect: true, Score: 1,
			Timestamp: time.Now().UTC(),
		}))
		require.NoError(t, st.PutQuizProgress(ctx, "user-1", model.NewQuizProgress(noteID)))
	}

	require.NoError(t, st.DeleteNote(ctx, "user-1", "note-1"))

	_, err := st.GetNote(ctx, "user-1", "note-1")
	assert.True(t, errors.Is(err, ErrNotFound))

	results, err := st.ListQuizResults(ctx, "user-1", "note-1")
	require.NoError(t, err)
	assert.Empty(t, results)

	progress, err := st.GetQuizProgress(ctx, "user-1", "note-1")
	require.NoError(t, err)
	assert.Nil(t, progress)

	// The other note's quiz data survives.
	results, err = st.ListQuizResults(ctx, "user-1", "note-2")
	require.NoError(t, err)
	assert.Len(t, results, 1)
	progress, err = st.GetQuizProgress(ctx, "user-1", "note-2")
	require.NoError(t, err)
	assert.NotNil(t, progress)
}

func TestSQLite_DeleteNote_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.DeleteNote(context.Background(), "user-1", "ghost")
	assert.True(t, errors.Is(err, ErrNotFound))
}

// --- Quiz results ---

func TestSQLite_QuizResult_UpsertReplaces(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := model.QuizResult{
		NoteID: "note-1", QuestionIndex: 0,
		UserAnswer: "B", CorrectAnswer: "A", IsCorrect: false, Score: -1,
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, st.UpsertQuizResult(ctx, "user-1", first))

	second := first
	second.UserAnswer = "A"
	second.IsCorrect = true
	second.Score = 1
	require.NoError(t, st.UpsertQuizResult(ctx, "user-1", second))

	results, err := st.ListQuizResults(ctx, "user-1", "note-1")
	require.NoError(t, err)
	require.Len(t, results, 1, "same key must replace, not append")
	assert.Equal(t, "A", results[0].UserAnswer)
	assert.True(t, results[0].IsCorrect)
	assert.Equal(t, 1, results[0].Score)
}

func TestSQLite_QuizResult_ListFilterByNote(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for i, noteID := range []string{"note-1", "note-1", "note-2"} {
		require.NoError(t, st.UpsertQuizResult(ctx, "user-1", model.QuizResult{
			NoteID: noteID, QuestionIndex: i,
			UserAnswer: "A", CorrectAnswer: "A", IsCorrect: true, Score: 1,
			Timestamp: time.Now().UTC(),
		}))
	}

	all, err := st.ListQuizResults(ctx, "user-1", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	one, err := st.ListQuizResults(ctx, "user-1", "note-2")
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

// --- Quiz progress ---

func TestSQLite_QuizProgress_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p := model.NewQuizProgress("note-1")
	p.SelectedAnswers[0] = "B"
	p.ShownAnswers[0] = true
	p.Scores[0] = 1
	p.AllAnswered = false

	require.NoError(t, st.PutQuizProgress(ctx, "user-1", p))

	got, err := st.GetQuizProgress(ctx, "user-1", "note-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "B", got.SelectedAnswers[0])
	assert.True(t, got.ShownAnswers[0])
	assert.Equal(t, 1, got.Scores[0])
}

func TestSQLite_QuizProgress_MissingIsNil(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetQuizProgress(context.Background(), "user-1", "ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_QuizProgress_PutOverwrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p := model.NewQuizProgress("note-1")
	p.SelectedAnswers[0] = "A"
	require.NoError(t, st.PutQuizProgress(ctx, "user-1", p))

	p2 := model.NewQuizProgress("note-1")
	p2.AllAnswered = true
	require.NoError(t, st.PutQuizProgress(ctx, "user-1", p2))

	got, err := st.GetQuizProgress(ctx, "user-1", "note-1")
	require.NoError(t, err)
	assert.Empty(t, got.SelectedAnswers, "progress is fully overwritten")
	assert.True(t, got.AllAnswered)
}

// --- Settings ---

func TestSQLite_Settings_RoundTripAndDefault(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	settings, err := st.GetSettings(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, settings)

	require.NoError(t, st.PutSettings(ctx, "user-1", model.Settings{"theme": "dark"}))
	settings, err = st.GetSettings(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "dark", settings["theme"])

	require.NoError(t, st.PutSettings(ctx, "user-1", model.Settings{"theme": "light"}))
	settings, err = st.GetSettings(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "light", settings["theme"])
}
