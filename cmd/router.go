package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/studykit/study-cli/internal/model"
	"github.com/studykit/study-cli/internal/pipeline"
	"github.com/studykit/study-cli/internal/scoring"
	"github.com/studykit/study-cli/internal/store"
)

// newRouter builds the HTTP API over the initialized environment.
func newRouter(env *appEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/profiles", handleCreateProfile(env))
		r.Get("/profiles", handleListProfiles(env))
		r.Delete("/profiles/{id}", handleDeleteProfile(env))

		r.Post("/notes", handleGenerateNote(env))
		r.Get("/notes", handleListNotes(env))
		r.Get("/notes/{id}", handleGetNote(env))
		r.Delete("/notes/{id}", handleDeleteNote(env))

		r.Post("/quiz/answer", handleQuizAnswer(env))
		r.Post("/quiz/reset", handleQuizReset(env))
		r.Get("/quiz/stats", handleQuizStats(env))
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// requestUser resolves the acting profile from the ?user= query
// parameter, falling back to the current profile.
func requestUser(r *http.Request, st store.Store) (string, error) {
	if userID := r.URL.Query().Get("user"); userID != "" {
		if _, err := st.GetProfile(r.Context(), userID); err != nil {
			return "", err
		}
		return userID, nil
	}
	current, err := st.CurrentUser(r.Context())
	if err != nil {
		return "", err
	}
	if current == nil {
		return "", store.ErrNotFound
	}
	return current.ID, nil
}

func handleCreateProfile(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Email == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and email are required"})
			return
		}
		profile, err := env.Store.CreateProfile(r.Context(), req.Name, req.Email)
		if err != nil {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeJSON(w, http.StatusCreated, profile)
	}
}

func handleListProfiles(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profiles, err := env.Store.ListProfiles(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, profiles)
	}
}

func handleDeleteProfile(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := env.Store.DeleteProfile(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleGenerateNote(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title   string `json:"title"`
			Subject string `json:"subject"`
			Text    string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
			return
		}

		userID, err := requestUser(r, env.Store)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		note, err := env.Pipeline.Process(r.Context(), pipeline.Input{
			UserID:  userID,
			Title:   req.Title,
			Subject: req.Subject,
			Text:    req.Text,
		})
		if err != nil {
			zap.L().Error("note generation failed", zap.Error(err))
			writeError(w, http.StatusBadGateway, err)
			return
		}
		if err := env.Store.SaveNote(r.Context(), note); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusCreated, note)
	}
}

func handleListNotes(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requestUser(r, env.Store)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		notes, err := env.Store.ListNotes(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if notes == nil {
			notes = []model.Note{}
		}
		writeJSON(w, http.StatusOK, notes)
	}
}

func handleGetNote(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requestUser(r, env.Store)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		note, err := env.Store.GetNote(r.Context(), userID, chi.URLParam(r, "id"))
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, note)
	}
}

func handleDeleteNote(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requestUser(r, env.Store)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		err = env.Store.DeleteNote(r.Context(), userID, chi.URLParam(r, "id"))
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleQuizAnswer(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			NoteID        string `json:"note_id"`
			QuestionIndex int    `json:"question_index"`
			Answer        string `json:"answer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NoteID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "note_id, question_index, and answer are required"})
			return
		}

		userID, err := requestUser(r, env.Store)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		note, err := env.Store.GetNote(r.Context(), userID, req.NoteID)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if req.QuestionIndex < 0 || req.QuestionIndex >= len(note.Questions) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question_index out of range"})
			return
		}
		question := note.Questions[req.QuestionIndex]

		progress, err := env.Store.GetQuizProgress(r.Context(), userID, req.NoteID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if progress == nil {
			progress = model.NewQuizProgress(req.NoteID)
		}

		if err := scoring.SelectAnswer(progress, req.QuestionIndex, req.Answer); err != nil {
			writeError(w, http.StatusConflict, err)
			return
		}
		delta, isCorrect, err := scoring.CheckAnswer(progress, req.QuestionIndex, question.Correct)
		if err != nil {
			writeError(w, http.StatusConflict, err)
			return
		}
		scoring.UpdateAllAnswered(progress, len(note.Questions))

		if err := env.Store.PutQuizProgress(r.Context(), userID, progress); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if err := env.Store.UpsertQuizResult(r.Context(), userID, model.QuizResult{
			NoteID:        req.NoteID,
			QuestionIndex: req.QuestionIndex,
			UserAnswer:    req.Answer,
			CorrectAnswer: question.Correct,
			IsCorrect:     isCorrect,
			Score:         delta,
			Timestamp:     time.Now().UTC(),
		}); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"is_correct":     isCorrect,
			"score":          delta,
			"correct_answer": question.Correct,
			"explanation":    question.Explanation,
			"all_answered":   progress.AllAnswered,
		})
	}
}

func handleQuizReset(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			NoteID string `json:"note_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NoteID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "note_id is required"})
			return
		}

		userID, err := requestUser(r, env.Store)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		progress, err := env.Store.GetQuizProgress(r.Context(), userID, req.NoteID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if progress == nil {
			progress = model.NewQuizProgress(req.NoteID)
		}
		scoring.Reset(progress)

		if err := env.Store.PutQuizProgress(r.Context(), userID, progress); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleQuizStats(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requestUser(r, env.Store)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		results, err := env.Store.ListQuizResults(r.Context(), userID, r.URL.Query().Get("note"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		signed, answered, percentage := scoring.Aggregate(results)
		if results == nil {
			results = []model.QuizResult{}
		}
		writeJSON(w, http.StatusOK, statsPayload{
			Results:    results,
			Signed:     signed,
			Answered:   answered,
			Percentage: percentage,
		})
	}
}
