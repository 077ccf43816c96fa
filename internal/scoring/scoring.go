// Package scoring implements quiz answer scoring and the per-question
// progress state machine.
package scoring

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/studykit/study-cli/internal/model"
)

// QuestionState is the lifecycle state of one quiz question.
type QuestionState string

const (
	// StateUnanswered: no option selected yet.
	StateUnanswered QuestionState = "unanswered"
	// StateSelected: an option is selected but not checked.
	StateSelected QuestionState = "selected"
	// StateChecked: the answer was checked and scored. Terminal; only
	// a whole-note reset returns a question to StateUnanswered.
	StateChecked QuestionState = "checked"
)

// Score returns the signed score contribution for one checked answer:
// +1 for a correct selection, -1 otherwise.
func Score(selected, correct string) (delta int, isCorrect bool) {
	if selected == correct {
		return 1, true
	}
	return -1, false
}

// Percentage normalizes a signed total score S over N answered
// questions into [0,100]: ((S+N)/(2N))*100. N=0 yields 0.
func Percentage(signed, answered int) float64 {
	if answered <= 0 {
		return 0
	}
	return float64(signed+answered) / float64(2*answered) * 100
}

// Aggregate sums the signed scores of a result set and returns the
// normalized percentage alongside the counts.
func Aggregate(results []model.QuizResult) (signed, answered int, percentage float64) {
	for _, r := range results {
		signed += r.Score
		answered++
	}
	return signed, answered, Percentage(signed, answered)
}

// StateOf derives a question's state from the progress record.
func StateOf(p *model.QuizProgress, index int) QuestionState {
	if p == nil {
		return StateUnanswered
	}
	if p.ShownAnswers[index] {
		return StateChecked
	}
	if _, ok := p.SelectedAnswers[index]; ok {
		return StateSelected
	}
	return StateUnanswered
}

// SelectAnswer records an option selection. Checked questions are
// terminal and reject re-selection.
func SelectAnswer(p *model.QuizProgress, index int, answer string) error {
	if model.OptionIndex(answer) < 0 {
		return eris.Errorf("scoring: invalid answer letter %q", answer)
	}
	if StateOf(p, index) == StateChecked {
		return eris.Errorf("scoring: question %d already checked", index)
	}
	if p.SelectedAnswers == nil {
		p.SelectedAnswers = make(map[int]string)
	}
	p.SelectedAnswers[index] = answer
	p.LastUpdated = time.Now().UTC()
	return nil
}

// CheckAnswer scores the selected option against the correct one and
// transitions the question to StateChecked. It requires a prior
// selection.
func CheckAnswer(p *model.QuizProgress, index int, correct string) (delta int, isCorrect bool, err error) {
	switch StateOf(p, index) {
	case StateUnanswered:
		return 0, false, eris.Errorf("scoring: question %d has no selected answer", index)
	case StateChecked:
		return 0, false, eris.Errorf("scoring: question %d already checked", index)
	}

	selected := p.SelectedAnswers[index]
	delta, isCorrect = Score(selected, correct)

	if p.ShownAnswers == nil {
		p.ShownAnswers = make(map[int]bool)
	}
	if p.Scores == nil {
		p.Scores = make(map[int]int)
	}
	p.ShownAnswers[index] = true
	p.Scores[index] = delta
	p.LastUpdated = time.Now().UTC()
	return delta, isCorrect, nil
}

// UpdateAllAnswered recomputes the all-answered flag for a note with
// totalQuestions questions.
func UpdateAllAnswered(p *model.QuizProgress, totalQuestions int) {
	answered := 0
	for i := 0; i < totalQuestions; i++ {
		if p.ShownAnswers[i] {
			answered++
		}
	}
	p.AllAnswered = totalQuestions > 0 && answered == totalQuestions
}

// Reset clears every question's state for the note in one update,
// returning all questions to StateUnanswered.
func Reset(p *model.QuizProgress) {
	p.SelectedAnswers = make(map[int]string)
	p.ShownAnswers = make(map[int]bool)
	p.Scores = make(map[int]int)
	p.AllAnswered = false
	p.LastUpdated = time.Now().UTC()
}
