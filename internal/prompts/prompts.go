// Package prompts holds the prompt templates sent to the generation
// backend. Defaults are compiled in; a YAML file can override any
// subset of them.
package prompts

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Set carries one template per pipeline stage. Summarize and
// Synthesize take the input text; the derivation templates take an
// item count and the final summary.
type Set struct {
	Summarize  string `yaml:"summarize"`
	Synthesize string `yaml:"synthesize"`
	KeyPoints  string `yaml:"key_points"`
	Flashcards string `yaml:"flashcards"`
	Questions  string `yaml:"questions"`
}

const defaultSummarize = `You are a study assistant. Summarize the following text for a student preparing for an exam. Keep all important facts, definitions, and relationships. Write clear, well-structured prose.

Text:
%s`

const defaultSynthesize = `You are a study assistant. The following are summaries of consecutive sections of one document. Merge them into a single cohesive summary, removing repetition from overlapping sections while keeping every distinct fact.

Section summaries:
%s`

const defaultKeyPoints = `Extract the %d most important key points from this study summary. Return a JSON array of strings, nothing else.

Summary:
%s`

const defaultFlashcards = `Create %d study flashcards from this summary. Return a JSON array, nothing else, where each element is {"question": "...", "answer": "..."}.

Summary:
%s`

const defaultQuestions = `Create %d multiple-choice practice questions from this summary. Return a JSON array, nothing else, where each element is {"question": "...", "options": ["...", "...", "...", "..."], "correct": "A", "explanation": "..."}. The "correct" field is the letter (A-D) of the single correct option.

Summary:
%s`

// Default returns the compiled-in template set.
func Default() *Set {
	return &Set{
		Summarize:  defaultSummarize,
		Synthesize: defaultSynthesize,
		KeyPoints:  defaultKeyPoints,
		Flashcards: defaultFlashcards,
		Questions:  defaultQuestions,
	}
}

// Load reads a YAML override file and merges it over the defaults.
// Empty fields in the file keep their default template.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "prompts: read %s", path)
	}

	var override Set
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, eris.Wrapf(err, "prompts: parse %s", path)
	}

	s := Default()
	if override.Summarize != "" {
		s.Summarize = override.Summarize
	}
	if override.Synthesize != "" {
		s.Synthesize = override.Synthesize
	}
	if override.KeyPoints != "" {
		s.KeyPoints = override.KeyPoints
	}
	if override.Flashcards != "" {
		s.Flashcards = override.Flashcards
	}
	if override.Questions != "" {
		s.Questions = override.Questions
	}
	return s, nil
}

// RenderSummarize fills the summarize template with the chunk text.
func (s *Set) RenderSummarize(text string) string {
	return fmt.Sprintf(s.Summarize, text)
}

// RenderSynthesize fills the synthesize template with the joined
// per-chunk summaries.
func (s *Set) RenderSynthesize(sections string) string {
	return fmt.Sprintf(s.Synthesize, sections)
}

// RenderKeyPoints fills the key-points template.
func (s *Set) RenderKeyPoints(count int, summary string) string {
	return fmt.Sprintf(s.KeyPoints, count, summary)
}

// RenderFlashcards fills the flashcards template.
func (s *Set) RenderFlashcards(count int, summary string) string {
	return fmt.Sprintf(s.Flashcards, count, summary)
}

// RenderQuestions fills the questions template.
func (s *Set) RenderQuestions(count int, summary string) string {
	return fmt.Sprintf(s.Questions, count, summary)
}
