// Package pipeline turns raw input text into a complete study note:
// chunked summarization, synthesis, and derivation of key points,
// flashcards, and practice questions, all through the resilient
// generation layer.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"github.com/studykit/study-cli/internal/chunker"
	"github.com/studykit/study-cli/internal/model"
	"github.com/studykit/study-cli/internal/prompts"
	"github.com/studykit/study-cli/pkg/gemini"
)

// Generator issues one resilient generation call. Satisfied by
// resilience.Invoker.
type Generator interface {
	Generate(ctx context.Context, prompt string, cfg gemini.GenerationConfig) (string, error)
}

// Config controls chunking, batching, and generation sampling.
type Config struct {
	ChunkSize       int           // words per chunk; default 1500
	OverlapPercent  float64       // fractional chunk overlap; default 0.25
	BatchSize       int           // concurrent summarization calls; default 3
	BatchInterval   time.Duration // pause between batches; default 1s
	Temperature     float64
	MaxOutputTokens int
	TopP            float64
	TopK            int
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = chunker.DefaultChunkSize
	}
	if c.OverlapPercent <= 0 || c.OverlapPercent >= 1 {
		c.OverlapPercent = chunker.DefaultOverlapPercent
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 3
	}
	if c.BatchInterval <= 0 {
		c.BatchInterval = time.Second
	}
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = 8192
	}
	return c
}

// Input is one generation request.
type Input struct {
	UserID     string
	Title      string
	Subject    string
	Text       string
	SourceFile string
}

// Pipeline orchestrates the dependent generation calls for one note.
type Pipeline struct {
	gen     Generator
	prompts *prompts.Set
	cfg     Config
	limiter *rate.Limiter
}

// New creates a Pipeline. A nil prompt set uses the defaults.
func New(gen Generator, ps *prompts.Set, cfg Config) *Pipeline {
	cfg = cfg.withDefaults()
	if ps == nil {
		ps = prompts.Default()
	}
	return &Pipeline{
		gen:     gen,
		prompts: ps,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.BatchInterval), 1),
	}
}

// Process runs the full pipeline: normalize, chunk, summarize,
// synthesize, derive. Any generation failure propagates; no partial
// note is returned. Parse failures in derivation degrade to
// placeholder records instead.
func (p *Pipeline) Process(ctx context.Context, in Input) (*model.Note, error) {
	text := chunker.Normalize(in.Text)
	if text == "" {
		return nil, eris.New("pipeline: input text is empty")
	}
	wordCount := chunker.WordCount(text)

	log := zap.L().With(zap.String("user_id", in.UserID), zap.Int("words", wordCount))
	log.Info("pipeline: starting note generation")

	chunks := chunker.Split(text, p.cfg.ChunkSize, p.cfg.OverlapPercent)
	log.Info("pipeline: chunked input", zap.Int("chunks", len(chunks)))

	summaries, err := p.summarizeChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	summary := summaries[0]
	if len(summaries) > 1 {
		summary, err = p.gen.Generate(ctx,
			p.prompts.RenderSynthesize(strings.Join(summaries, "\n\n---\n\n")),
			p.genConfig())
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: synthesize summaries")
		}
	}
	summary = strings.TrimSpace(summary)
	summaryWords := chunker.WordCount(summary)

	keyPointsRaw, err := p.gen.Generate(ctx,
		p.prompts.RenderKeyPoints(keyPointCount(summaryWords), summary),
		p.genConfig())
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: derive key points")
	}

	flashcardsRaw, err := p.gen.Generate(ctx,
		p.prompts.RenderFlashcards(flashcardCount(summaryWords), summary),
		p.genConfig())
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: derive flashcards")
	}

	questionsRaw, err := p.gen.Generate(ctx,
		p.prompts.RenderQuestions(questionCount(summaryWords), summary),
		p.genConfig())
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: derive questions")
	}

	note := &model.Note{
		ID:         uuid.New().String(),
		UserID:     in.UserID,
		Title:      deriveTitle(in.Title, text),
		Subject:    in.Subject,
		Summary:    summary,
		KeyPoints:  ParseKeyPoints(keyPointsRaw),
		Flashcards: ParseFlashcards(flashcardsRaw),
		Questions:  ParseQuestions(questionsRaw),
		RawText:    text,
		SourceFile: in.SourceFile,
		WordCount:  wordCount,
		CreatedAt:  time.Now().UTC(),
	}

	log.Info("pipeline: note generated",
		zap.String("note_id", note.ID),
		zap.Int("key_points", len(note.KeyPoints)),
		zap.Int("flashcards", len(note.Flashcards)),
		zap.Int("questions", len(note.Questions)),
	)
	return note, nil
}

// summarizeChunks runs chunk summarization in batches of BatchSize
// concurrent calls, paced at one batch per BatchInterval as
// backpressure against upstream rate limits. Summaries come back in
// original chunk order regardless of completion order.
func (p *Pipeline) summarizeChunks(ctx context.Context, chunks []string) ([]string, error) {
	summaries := make([]string, len(chunks))

	for start := 0; start < len(chunks); start += p.cfg.BatchSize {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "pipeline: batch pacing")
		}

		end := start + p.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		g, gCtx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				out, genErr := p.gen.Generate(gCtx, p.prompts.RenderSummarize(chunks[i]), p.genConfig())
				if genErr != nil {
					return eris.Wrapf(genErr, "pipeline: summarize chunk %d", i+1)
				}
				summaries[i] = strings.TrimSpace(out)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return summaries, nil
}

func (p *Pipeline) genConfig() gemini.GenerationConfig {
	return gemini.GenerationConfig{
		Temperature:     p.cfg.Temperature,
		MaxOutputTokens: p.cfg.MaxOutputTokens,
		TopP:            p.cfg.TopP,
		TopK:            p.cfg.TopK,
	}
}

const titleWords = 8

// deriveTitle uses the supplied title, or title-cases the first few
// words of the text when none was given.
func deriveTitle(given, text string) string {
	if t := strings.TrimSpace(given); t != "" {
		return t
	}
	words := strings.Fields(text)
	if len(words) > titleWords {
		words = words[:titleWords]
	}
	t := cases.Title(language.English).String(strings.ToLower(strings.Join(words, " ")))
	if t == "" {
		return "Untitled Note"
	}
	return t
}
