package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/studykit/study-cli/internal/model"
	"github.com/studykit/study-cli/internal/scoring"
)

var quizUser string

var quizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Answer, check, and track practice questions",
}

var quizAnswerCmd = &cobra.Command{
	Use:   "answer <note-id> <question-number> <letter>",
	Short: "Select and check an answer for a question",
	Long:  "Selects the given option for the question, checks it against the correct answer, records the result, and prints the score delta. Question numbers start at 1.",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		userID, err := resolveUser(ctx, st, quizUser)
		if err != nil {
			return err
		}

		noteID := args[0]
		num, err := strconv.Atoi(args[1])
		if err != nil || num < 1 {
			return eris.Errorf("invalid question number %q", args[1])
		}
		index := num - 1
		answer := args[2]

		note, err := st.GetNote(ctx, userID, noteID)
		if err != nil {
			return err
		}
		if index >= len(note.Questions) {
			return eris.Errorf("note has %d questions", len(note.Questions))
		}
		question := note.Questions[index]

		progress, err := st.GetQuizProgress(ctx, userID, noteID)
		if err != nil {
			return err
		}
		if progress == nil {
			progress = model.NewQuizProgress(noteID)
		}

		if err := scoring.SelectAnswer(progress, index, answer); err != nil {
			return err
		}
		delta, isCorrect, err := scoring.CheckAnswer(progress, index, question.Correct)
		if err != nil {
			return err
		}
		scoring.UpdateAllAnswered(progress, len(note.Questions))

		if err := st.PutQuizProgress(ctx, userID, progress); err != nil {
			return err
		}
		if err := st.UpsertQuizResult(ctx, userID, model.QuizResult{
			NoteID:        noteID,
			QuestionIndex: index,
			UserAnswer:    answer,
			CorrectAnswer: question.Correct,
			IsCorrect:     isCorrect,
			Score:         delta,
			Timestamp:     time.Now().UTC(),
		}); err != nil {
			return err
		}

		if isCorrect {
			fmt.Printf("Correct (+1)\n")
		} else {
			fmt.Printf("Incorrect (-1). Correct answer: %s\n", question.Correct)
		}
		if question.Explanation != "" {
			fmt.Printf("Explanation: %s\n", question.Explanation)
		}
		return nil
	},
}

var quizResetCmd = &cobra.Command{
	Use:   "reset <note-id>",
	Short: "Reset quiz progress for a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		userID, err := resolveUser(ctx, st, quizUser)
		if err != nil {
			return err
		}

		noteID := args[0]
		progress, err := st.GetQuizProgress(ctx, userID, noteID)
		if err != nil {
			return err
		}
		if progress == nil {
			progress = model.NewQuizProgress(noteID)
		}
		scoring.Reset(progress)

		if err := st.PutQuizProgress(ctx, userID, progress); err != nil {
			return err
		}
		fmt.Printf("Reset quiz for note %s\n", noteID)
		return nil
	},
}

var quizStatsCmd = &cobra.Command{
	Use:   "stats [note-id]",
	Short: "Show quiz results and the normalized percentage",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		userID, err := resolveUser(ctx, st, quizUser)
		if err != nil {
			return err
		}

		noteID := ""
		if len(args) == 1 {
			noteID = args[0]
		}

		results, err := st.ListQuizResults(ctx, userID, noteID)
		if err != nil {
			return err
		}

		signed, answered, percentage := scoring.Aggregate(results)

		rows := make([][]string, 0, len(results))
		for _, r := range results {
			rows = append(rows, []string{
				r.NoteID,
				fmt.Sprintf("%d", r.QuestionIndex+1),
				r.UserAnswer,
				r.CorrectAnswer,
				fmt.Sprintf("%+d", r.Score),
				r.Timestamp.Format("2006-01-02 15:04"),
			})
		}
		if err := printRecords(
			[]string{"Note", "Q", "Answer", "Correct", "Score", "When"},
			rows, statsPayload{Results: results, Signed: signed, Answered: answered, Percentage: percentage},
		); err != nil {
			return err
		}
		if stdoutIsTerminal() && !outputJSON {
			fmt.Printf("Answered %d, signed score %+d, percentage %.1f%%\n", answered, signed, percentage)
		}
		return nil
	},
}

type statsPayload struct {
	Results    []model.QuizResult `json:"results"`
	Signed     int                `json:"signed_score"`
	Answered   int                `json:"answered"`
	Percentage float64            `json:"percentage"`
}

func init() {
	quizCmd.PersistentFlags().StringVar(&quizUser, "user", "", "profile ID (default: current profile)")
	quizCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output JSON")
	quizCmd.AddCommand(quizAnswerCmd, quizResetCmd, quizStatsCmd)
	rootCmd.AddCommand(quizCmd)
}
