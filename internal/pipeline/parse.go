package pipeline

import (
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/studykit/study-cli/internal/model"
)

// Model output parsing is two-stage: a strict JSON parse of the
// cleaned response, then a best-effort line-pattern extraction. If
// both stages fail the caller falls back to a single placeholder
// record, so parsing never fails the pipeline.

// cleanJSON strips markdown code fences and trims the text down to the
// outermost JSON array or object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	arrStart := strings.Index(text, "[")
	objStart := strings.Index(text, "{")
	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		if end := strings.LastIndex(text, "]"); end > arrStart {
			return strings.TrimSpace(text[arrStart : end+1])
		}
	}
	if objStart >= 0 {
		if end := strings.LastIndex(text, "}"); end > objStart {
			return strings.TrimSpace(text[objStart : end+1])
		}
	}
	return strings.TrimSpace(text)
}

// --- key points ---

// ParseKeyPoints extracts key points from model output. Strict path:
// JSON array of strings. Fallback: bullet or numbered lines.
func ParseKeyPoints(text string) []string {
	var points []string
	if err := json.Unmarshal([]byte(cleanJSON(text)), &points); err == nil {
		points = trimNonEmpty(points)
		if len(points) > 0 {
			return points
		}
	}

	points = parseListLines(text)
	if len(points) > 0 {
		return points
	}

	zap.L().Warn("parse: key points unrecognized, using placeholder")
	return []string{"Key points could not be generated. Try regenerating this note."}
}

var listLine = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)

func parseListLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if m := listLine.FindStringSubmatch(line); m != nil {
			out = append(out, strings.TrimSpace(m[1]))
		}
	}
	return out
}

func trimNonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// --- flashcards ---

// ParseFlashcards extracts flashcards from model output. Strict path:
// JSON array of {question, answer}; a wrapping {"flashcards": [...]}
// object is also accepted. Fallback: "Q:"/"A:" line pairs. Final
// fallback: one placeholder card.
func ParseFlashcards(text string) []model.Flashcard {
	cleaned := cleanJSON(text)

	var cards []model.Flashcard
	if err := json.Unmarshal([]byte(cleaned), &cards); err != nil {
		var wrapped struct {
			Flashcards []model.Flashcard `json:"flashcards"`
		}
		if err := json.Unmarshal([]byte(cleaned), &wrapped); err == nil {
			cards = wrapped.Flashcards
		}
	}
	if valid := validFlashcards(cards); len(valid) > 0 {
		return valid
	}

	if cards := parseFlashcardLines(text); len(cards) > 0 {
		return cards
	}

	zap.L().Warn("parse: flashcards unrecognized, using placeholder")
	return []model.Flashcard{{
		Question: "Flashcards could not be generated for this note.",
		Answer:   "Try regenerating the note.",
	}}
}

func validFlashcards(cards []model.Flashcard) []model.Flashcard {
	var out []model.Flashcard
	for _, c := range cards {
		if strings.TrimSpace(c.Question) != "" && strings.TrimSpace(c.Answer) != "" {
			out = append(out, c)
		}
	}
	return out
}

var (
	qLine = regexp.MustCompile(`(?i)^\s*(?:q(?:uestion)?\s*\d*\s*[:.)])\s*(.+)$`)
	aLine = regexp.MustCompile(`(?i)^\s*(?:a(?:nswer)?\s*\d*\s*[:.)])\s*(.+)$`)
)

func parseFlashcardLines(text string) []model.Flashcard {
	var cards []model.Flashcard
	var pending string
	for _, line := range strings.Split(text, "\n") {
		if m := qLine.FindStringSubmatch(line); m != nil {
			pending = strings.TrimSpace(m[1])
			continue
		}
		if m := aLine.FindStringSubmatch(line); m != nil && pending != "" {
			cards = append(cards, model.Flashcard{
				Question: pending,
				Answer:   strings.TrimSpace(m[1]),
			})
			pending = ""
		}
	}
	return cards
}

// --- questions ---

// ParseQuestions extracts MCQ questions from model output. Strict
// path: JSON array of question objects; a wrapping {"questions":
// [...]} object is also accepted. Questions failing the one-correct-
// of-four invariant are dropped. Fallback: numbered question blocks
// with lettered options and an "Answer: X" line. Final fallback: one
// placeholder question.
func ParseQuestions(text string) []model.Question {
	cleaned := cleanJSON(text)

	var questions []model.Question
	if err := json.Unmarshal([]byte(cleaned), &questions); err != nil {
		var wrapped struct {
			Questions []model.Question `json:"questions"`
		}
		if err := json.Unmarshal([]byte(cleaned), &wrapped); err == nil {
			questions = wrapped.Questions
		}
	}
	if valid := validQuestions(questions); len(valid) > 0 {
		return valid
	}

	if qs := parseQuestionBlocks(text); len(qs) > 0 {
		return qs
	}

	zap.L().Warn("parse: questions unrecognized, using placeholder")
	return []model.Question{{
		Type:     model.QuestionTypeMCQ,
		Question: "Practice questions could not be generated for this note.",
		Options: []string{
			"Regenerate the note",
			"Shorten the input text",
			"Try a different document",
			"All of the above",
		},
		Correct:     "D",
		Explanation: "Question generation failed; this is a placeholder.",
	}}
}

func validQuestions(questions []model.Question) []model.Question {
	var out []model.Question
	for _, q := range questions {
		q.Type = model.QuestionTypeMCQ
		q.Correct = strings.ToUpper(strings.TrimSpace(q.Correct))
		if err := q.Validate(); err != nil {
			zap.L().Warn("parse: dropping invalid question", zap.Error(err))
			continue
		}
		out = append(out, q)
	}
	return out
}

var (
	questionLine = regexp.MustCompile(`^\s*\d+[.)]\s+(.+)$`)
	optionLine   = regexp.MustCompile(`^\s*([A-Da-d])[.)]\s+(.+)$`)
	answerLine   = regexp.MustCompile(`(?i)^\s*(?:correct\s+)?answer\s*[:=]?\s*([A-Da-d])\b`)
)

func parseQuestionBlocks(text string) []model.Question {
	var out []model.Question
	var cur *model.Question

	flush := func() {
		if cur != nil && cur.Validate() == nil {
			out = append(out, *cur)
		}
		cur = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if m := questionLine.FindStringSubmatch(line); m != nil {
			flush()
			cur = &model.Question{
				Type:     model.QuestionTypeMCQ,
				Question: strings.TrimSpace(m[1]),
			}
			continue
		}
		if cur == nil {
			continue
		}
		if m := optionLine.FindStringSubmatch(line); m != nil && len(cur.Options) < len(model.OptionLetters) {
			cur.Options = append(cur.Options, strings.TrimSpace(m[2]))
			continue
		}
		if m := answerLine.FindStringSubmatch(line); m != nil {
			cur.Correct = strings.ToUpper(m[1])
		}
	}
	flush()
	return out
}
