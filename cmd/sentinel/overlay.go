package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/raaihank/grammar-sentinel/internal/overlay"
)

var overlayCmd = &cobra.Command{
	Use:   "overlay [text]",
	Short: "Highlight annotations from a JSON file without contacting the service",
	Long: `Overlay places annotations from a JSON file onto text and prints the result.
The file holds an array of {"word": ..., "position": ...} objects, the same
shape the grammar service returns.`,
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

		path, _ := cmd.Flags().GetString("annotations")
		annotations, err := readAnnotations(path)
		if err != nil {
			return err
		}

		cfg := a.cfg.Overlay
		if cmd.Flags().Changed("tolerance") {
			cfg.Tolerance, _ = cmd.Flags().GetInt("tolerance")
		}
		if cmd.Flags().Changed("unit") {
			cfg.PositionUnit, _ = cmd.Flags().GetString("unit")
		}
		engine, err := newEngine(cfg)
		if err != nil {
			return err
		}
		res := engine.Apply(text, annotations)

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		format, _ := cmd.Flags().GetString("format")
		r, err := a.renderer(format)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if err := r.Render(out, res.Segments); err != nil {
			return err
		}
		fmt.Fprintln(out)
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			printSkipped(cmd.ErrOrStderr(), res.Skipped)
		}
		return nil
	},
}

func readAnnotations(path string) ([]overlay.Annotation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read annotations: %w", err)
	}
	var annotations []overlay.Annotation
	if err := json.Unmarshal(data, &annotations); err != nil {
		return nil, fmt.Errorf("failed to parse annotations: %w", err)
	}
	return annotations, nil
}

func printSkipped(w io.Writer, skipped []overlay.Skip) {
	for _, s := range skipped {
		fmt.Fprintf(w, "skipped %q at %d: %s\n", s.Annotation.Word, s.Annotation.Position, s.Reason)
	}
}

func init() {
	rootCmd.AddCommand(overlayCmd)
	addOutputFlags(overlayCmd)
	overlayCmd.Flags().StringP("file", "f", "", "Read text from a file")
	overlayCmd.Flags().StringP("annotations", "a", "", "JSON file with annotations")
	overlayCmd.Flags().Int("tolerance", overlay.DefaultTolerance, "Backward search window in position units")
	overlayCmd.Flags().String("unit", "", "Position unit: rune, byte or utf16")
	overlayCmd.MarkFlagRequired("annotations")
}
