package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raaihank/grammar-sentinel/internal/checker"
	"github.com/raaihank/grammar-sentinel/internal/session"
)

var checkCmd = &cobra.Command{
	Use:   "check [text]",
	Short: "Check text and print it with flagged words highlighted",
	Long: `Check submits text to the grammar service and prints it with every flagged
word highlighted. Text comes from the arguments, from --file, or from
standard input when neither is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		text, err := readText(cmd, args)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		r, err := a.renderer(format)
		if err != nil {
			return err
		}

		sessions, err := a.sessions()
		if err != nil {
			return err
		}
		chk, _, err := a.checker(sessions)
		if err != nil {
			return err
		}

		report, err := chk.Check(cmd.Context(), checker.NewDocument(text))
		if errors.Is(err, session.ErrNoSession) {
			return fmt.Errorf("not logged in, run 'grammar-sentinel login' first")
		}
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		out := cmd.OutOrStdout()
		if err := r.Render(out, report.Segments); err != nil {
			return err
		}
		fmt.Fprintln(out)
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			printSkipped(cmd.ErrOrStderr(), report.Result().Skipped)
		}
		return nil
	},
}

// readText takes text from args, --file, or stdin, in that order
func readText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read standard input: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func init() {
	rootCmd.AddCommand(checkCmd)
	addOutputFlags(checkCmd)
	checkCmd.Flags().StringP("file", "f", "", "Read text from a file")
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("format", "", "Output format: terminal, html or markers (default from config)")
	cmd.Flags().Bool("json", false, "Print segments as JSON")
	cmd.Flags().BoolP("verbose", "v", false, "List annotations that could not be placed")
}
