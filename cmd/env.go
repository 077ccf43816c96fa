package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/studykit/study-cli/internal/config"
	"github.com/studykit/study-cli/internal/pipeline"
	"github.com/studykit/study-cli/internal/prompts"
	"github.com/studykit/study-cli/internal/resilience"
	"github.com/studykit/study-cli/internal/rotation"
	"github.com/studykit/study-cli/internal/store"
	"github.com/studykit/study-cli/pkg/gemini"
)

// appEnv holds the initialized store, invoker, and pipeline shared by
// the generate/notes/quiz/profile/serve commands.
type appEnv struct {
	Store    store.Store
	Rotator  *rotation.Rotator
	Invoker  *resilience.Invoker
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured store backend and runs migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	var err error

	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.Path)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv wires the full generation environment. Callers should defer
// env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	var clientOpts []gemini.Option
	if cfg.Gemini.BaseURL != "" {
		clientOpts = append(clientOpts, gemini.WithBaseURL(cfg.Gemini.BaseURL))
	}
	client := gemini.NewClient(clientOpts...)

	rotator := rotation.New(cfg.Gemini.APIKeys, cfg.Gemini.Models)
	invoker := resilience.NewInvoker(client, rotator,
		resilience.WithRetryDelay(time.Duration(cfg.Gemini.RetryDelayMs)*time.Millisecond))

	ps, err := loadPrompts(cfg.Prompts)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	pipe := pipeline.New(invoker, ps, pipeline.Config{
		ChunkSize:       cfg.Pipeline.ChunkSize,
		OverlapPercent:  cfg.Pipeline.OverlapPercent,
		BatchSize:       cfg.Pipeline.BatchSize,
		BatchInterval:   time.Duration(cfg.Pipeline.BatchIntervalSec) * time.Second,
		Temperature:     cfg.Gemini.Temperature,
		MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
		TopP:            cfg.Gemini.TopP,
		TopK:            cfg.Gemini.TopK,
	})

	return &appEnv{
		Store:    st,
		Rotator:  rotator,
		Invoker:  invoker,
		Pipeline: pipe,
	}, nil
}

func loadPrompts(pc config.PromptsConfig) (*prompts.Set, error) {
	if pc.File == "" {
		return prompts.Default(), nil
	}
	return prompts.Load(pc.File)
}

// resolveUser returns the profile for --user, or the current profile
// when the flag is empty.
func resolveUser(ctx context.Context, st store.Store, userID string) (string, error) {
	if userID != "" {
		if _, err := st.GetProfile(ctx, userID); err != nil {
			return "", err
		}
		return userID, nil
	}
	current, err := st.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	if current == nil {
		return "", eris.New("no current profile; create one with 'study-cli profile create' or pass --user")
	}
	return current.ID, nil
}
