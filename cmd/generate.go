package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/studykit/study-cli/internal/extract"
	"github.com/studykit/study-cli/internal/pipeline"
)

var (
	generateTitle   string
	generateSubject string
	generateFile    string
	generateUser    string
)

var generateCmd = &cobra.Command{
	Use:   "generate [text]",
	Short: "Generate a study note from text or a document",
	Long:  "Runs the content pipeline: summarize (chunked for long input), extract key points, and create flashcards and practice questions. The note is saved to the current profile.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		userID, err := resolveUser(ctx, env.Store, generateUser)
		if err != nil {
			return err
		}

		var text string
		switch {
		case generateFile != "":
			text, err = extract.FromFile(generateFile)
			if err != nil {
				return err
			}
		case len(args) == 1 && args[0] == "-":
			data, readErr := io.ReadAll(os.Stdin)
			if readErr != nil {
				return eris.Wrap(readErr, "read stdin")
			}
			text = string(data)
		case len(args) == 1:
			text = args[0]
		default:
			return eris.New("provide input text, '-' for stdin, or --file")
		}

		note, err := env.Pipeline.Process(ctx, pipeline.Input{
			UserID:     userID,
			Title:      generateTitle,
			Subject:    generateSubject,
			Text:       text,
			SourceFile: generateFile,
		})
		if err != nil {
			return err
		}

		if err := env.Store.SaveNote(ctx, note); err != nil {
			return err
		}

		zap.L().Info("note saved", zap.String("note_id", note.ID))
		fmt.Printf("Created note %s (%q)\n", note.ID, note.Title)
		fmt.Printf("  %d key points, %d flashcards, %d questions\n",
			len(note.KeyPoints), len(note.Flashcards), len(note.Questions))
		if strings.TrimSpace(note.Summary) != "" {
			fmt.Println("\nSummary:")
			fmt.Println(note.Summary)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateTitle, "title", "", "note title (derived from text when empty)")
	generateCmd.Flags().StringVar(&generateSubject, "subject", "", "note subject")
	generateCmd.Flags().StringVar(&generateFile, "file", "", "read input from a .txt/.md/.pdf file")
	generateCmd.Flags().StringVar(&generateUser, "user", "", "profile ID (default: current profile)")
	rootCmd.AddCommand(generateCmd)
}
