// Package model defines the core data types shared across the study
// pipeline, store, and CLI.
package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// UserProfile is an unauthenticated local user. Each profile owns a
// private partition of notes, quiz results, quiz progress, and settings.
type UserProfile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Note is the complete generated study-material record for one input.
// Created once by the content pipeline, immutable thereafter except
// for deletion.
type Note struct {
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	Title      string      `json:"title"`
	Subject    string      `json:"subject,omitempty"`
	Summary    string      `json:"summary"`
	KeyPoints  []string    `json:"key_points"`
	Flashcards []Flashcard `json:"flashcards"`
	Questions  []Question  `json:"questions"`
	RawText    string      `json:"raw_text,omitempty"`
	SourceFile string      `json:"source_file,omitempty"`
	WordCount  int         `json:"word_count"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Flashcard is a single question/answer pair.
type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// QuestionTypeMCQ is the only question type currently generated.
const QuestionTypeMCQ = "mcq"

// OptionLetters are the valid answer letters for an MCQ question, in
// option order.
var OptionLetters = []string{"A", "B", "C", "D"}

// Question is a multiple-choice practice question with exactly four
// options and exactly one correct answer.
type Question struct {
	Type        string   `json:"type"`
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Correct     string   `json:"correct"`
	Explanation string   `json:"explanation,omitempty"`
}

// Validate checks the MCQ invariants: four options and a correct
// answer naming exactly one of them.
func (q Question) Validate() error {
	if q.Question == "" {
		return eris.New("question: empty text")
	}
	if len(q.Options) != len(OptionLetters) {
		return eris.Errorf("question: expected %d options, got %d", len(OptionLetters), len(q.Options))
	}
	for _, l := range OptionLetters {
		if q.Correct == l {
			return nil
		}
	}
	return eris.Errorf("question: correct answer %q is not one of A-D", q.Correct)
}

// OptionIndex returns the zero-based option index for an answer
// letter, or -1 if the letter is invalid.
func OptionIndex(letter string) int {
	for i, l := range OptionLetters {
		if letter == l {
			return i
		}
	}
	return -1
}

// QuizResult records one checked answer. Keyed uniquely by
// (note, question index) per user; a later result replaces the
// earlier one.
type QuizResult struct {
	NoteID        string    `json:"note_id"`
	QuestionIndex int       `json:"question_index"`
	UserAnswer    string    `json:"user_answer"`
	CorrectAnswer string    `json:"correct_answer"`
	IsCorrect     bool      `json:"is_correct"`
	Score         int       `json:"score"` // +1 or -1
	Timestamp     time.Time `json:"timestamp"`
}

// QuizProgress is the in-flight quiz state for one note. It is
// persisted as a whole and fully overwritten on each save.
type QuizProgress struct {
	NoteID          string         `json:"note_id"`
	SelectedAnswers map[int]string `json:"selected_answers"`
	ShownAnswers    map[int]bool   `json:"shown_answers"`
	Scores          map[int]int    `json:"scores"`
	AllAnswered     bool           `json:"all_answered"`
	LastUpdated     time.Time      `json:"last_updated"`
}

// NewQuizProgress returns an empty progress record for a note.
func NewQuizProgress(noteID string) *QuizProgress {
	return &QuizProgress{
		NoteID:          noteID,
		SelectedAnswers: make(map[int]string),
		ShownAnswers:    make(map[int]bool),
		Scores:          make(map[int]int),
	}
}

// Settings is an opaque per-user settings blob.
type Settings map[string]any
