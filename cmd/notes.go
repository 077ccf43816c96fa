package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studykit/study-cli/internal/model"
)

var notesUser string

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Manage saved study notes",
}

var notesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the current profile's notes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		userID, err := resolveUser(ctx, st, notesUser)
		if err != nil {
			return err
		}

		notes, err := st.ListNotes(ctx, userID)
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(notes))
		for _, n := range notes {
			rows = append(rows, []string{
				n.ID,
				truncateCell(n.Title, 40),
				n.Subject,
				fmt.Sprintf("%d", n.WordCount),
				fmt.Sprintf("%d", len(n.Questions)),
				n.CreatedAt.Format("2006-01-02 15:04"),
			})
		}
		return printRecords(
			[]string{"ID", "Title", "Subject", "Words", "Questions", "Created"},
			rows, notes)
	},
}

var notesShowCmd = &cobra.Command{
	Use:   "show <note-id>",
	Short: "Show a note's summary, key points, flashcards, and questions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		userID, err := resolveUser(ctx, st, notesUser)
		if err != nil {
			return err
		}

		note, err := st.GetNote(ctx, userID, args[0])
		if err != nil {
			return err
		}

		if outputJSON || !stdoutIsTerminal() {
			return printRecords(nil, nil, note)
		}

		fmt.Printf("%s\n", note.Title)
		if note.Subject != "" {
			fmt.Printf("Subject: %s\n", note.Subject)
		}
		fmt.Printf("\nSummary:\n%s\n", note.Summary)

		fmt.Println("\nKey points:")
		for _, kp := range note.KeyPoints {
			fmt.Printf("  - %s\n", kp)
		}

		fmt.Println("\nFlashcards:")
		for i, fc := range note.Flashcards {
			fmt.Printf("  %d. Q: %s\n     A: %s\n", i+1, fc.Question, fc.Answer)
		}

		fmt.Println("\nQuestions:")
		for i, q := range note.Questions {
			fmt.Printf("  %d. %s\n", i+1, q.Question)
			for j, opt := range q.Options {
				fmt.Printf("     %s) %s\n", model.OptionLetters[j], opt)
			}
		}
		return nil
	},
}

var notesDeleteCmd = &cobra.Command{
	Use:   "delete <note-id>",
	Short: "Delete a note and its quiz data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		userID, err := resolveUser(ctx, st, notesUser)
		if err != nil {
			return err
		}

		if err := st.DeleteNote(ctx, userID, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted note %s\n", args[0])
		return nil
	},
}

func init() {
	notesCmd.PersistentFlags().StringVar(&notesUser, "user", "", "profile ID (default: current profile)")
	notesCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output JSON")
	notesCmd.AddCommand(notesListCmd, notesShowCmd, notesDeleteCmd)
	rootCmd.AddCommand(notesCmd)
}
