package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chriscorrea/relatos/internal/app"
	"github.com/chriscorrea/relatos/internal/batch"
	"github.com/chriscorrea/relatos/internal/config"

	"github.com/spf13/cobra"
)

// applyTrainingFlags copies the flags the user set onto cfg.
func applyTrainingFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	eval := &cfg.Training.Evaluation
	if flags.Changed("policy") {
		eval.Policy, _ = flags.GetString("policy")
	}
	if flags.Changed("ratio") {
		eval.Ratio, _ = flags.GetFloat64("ratio")
	}
	if flags.Changed("seed") {
		eval.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("folds") {
		eval.Folds, _ = flags.GetInt("folds")
	}
	if flags.Changed("stratified") {
		eval.Stratified, _ = flags.GetBool("stratified")
	}
	if flags.Changed("max-features") {
		cfg.Training.MaxFeatures, _ = flags.GetInt("max-features")
	}
	if flags.Changed("alpha") {
		cfg.Training.Alpha, _ = flags.GetFloat64("alpha")
	}
	if flags.Changed("stemmer") {
		cfg.Text.Stemmer, _ = flags.GetString("stemmer")
	}
}

var trainCmd = &cobra.Command{
	Use:   "train [labeled.csv]",
	Short: "Train a model and save it to the model path",
	Long: `Train fits the TF-IDF vocabulary and the Naive Bayes classifier on a labeled
CSV with "texto" and "categoria" columns, prints the evaluation report and
saves the model. Without an argument the built-in sample of 18 reports is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		applyTrainingFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		setupLogger(cmd, cfg, false)

		quiet, _ := cmd.Flags().GetBool("quiet")
		a, err := app.New(cfg, app.WithQuiet(quiet), app.WithStderr(cmd.ErrOrStderr()))
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		source := ""
		if len(args) == 1 {
			source = args[0]
		}
		result, err := a.Train(ctx, source)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, result.Report)
		fmt.Fprintf(out, "Model %s trained on %d reports, vocabulary %d, saved to %s\n",
			result.Model.ID, result.TrainSize, result.Model.Vectorizer.Dim(), cfg.Model.Path)
		return nil
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict [sources...]",
	Short: "Classify reports from text, files, URLs or standard input",
	Long: `Predict classifies each source separately. Sources may be local files, URLs
or "-" for standard input; HTML is reduced to its readable text first.

Examples:
  relatos predict --text "fico nervoso nas provas"
  relatos predict relato.txt
  echo "perco o foco em casa" | relatos predict`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newApp(cmd, false)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		format := app.Text
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			format = app.JSON
		}

		if cmd.Flags().Changed("text") {
			text, _ := cmd.Flags().GetString("text")
			res, err := a.PredictText(ctx, text)
			if err != nil {
				return err
			}
			return app.WriteResult(cmd.OutOrStdout(), res, format)
		}

		selector, _ := cmd.Flags().GetString("selector")
		predictions, err := a.Predict(ctx, args, selector)
		if err != nil {
			return err
		}
		return app.WritePredictions(cmd.OutOrStdout(), predictions, format)
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch [input.csv]",
	Short: "Classify every row of a CSV with a texto column",
	Long: `Batch reads a CSV with a "texto" column and writes it back with "categoria"
and "categoria_num" columns added. Input defaults to standard input and output
to standard output; a per-category summary is printed to standard error.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newApp(cmd, false)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		source := "-"
		if len(args) == 1 {
			source = args[0]
		}

		var counts []batch.Count
		classify := func(w io.Writer) error {
			var err error
			counts, err = a.Batch(ctx, source, w)
			return err
		}

		if path, _ := cmd.Flags().GetString("output"); path != "" && path != "-" {
			err = writeAtomically(path, classify)
		} else {
			err = classify(cmd.OutOrStdout())
		}
		if err != nil {
			return err
		}

		if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
			return app.WriteSummary(cmd.ErrOrStderr(), counts)
		}
		return nil
	},
}

// writeAtomically writes through a temporary file next to path and moves it
// into place only once write succeeds, so a failed run leaves path untouched.
func writeAtomically(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".relatos-batch-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set output file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the classification HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
		}
		setupLogger(cmd, cfg, true)

		a, err := app.New(cfg, app.WithStderr(cmd.ErrOrStderr()))
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()
		return a.Serve(ctx)
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the categories and their study suggestions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.WriteCategories(cmd.OutOrStdout())
	},
}

func init() {
	trainCmd.Flags().String("policy", "holdout", "Evaluation policy: holdout, kfold or none")
	trainCmd.Flags().Float64("ratio", 0.2, "Fraction of reports held out for evaluation")
	trainCmd.Flags().Uint64("seed", 42, "Random seed for the evaluation split")
	trainCmd.Flags().Int("folds", 5, "Number of folds for kfold evaluation")
	trainCmd.Flags().Bool("stratified", false, "Hold out the same fraction of every category")
	trainCmd.Flags().Int("max-features", 1000, "Maximum vocabulary size")
	trainCmd.Flags().Float64("alpha", 1.0, "Laplace smoothing parameter")
	trainCmd.Flags().String("stemmer", "rslp", "Stemmer: rslp, snowball or none")

	predictCmd.Flags().StringP("text", "t", "", "Classify this text instead of reading sources")
	predictCmd.Flags().StringP("selector", "s", "", "CSS selector for HTML sources")
	predictCmd.Flags().Bool("json", false, "Output in JSON format")
	predictCmd.MarkFlagsMutuallyExclusive("text", "selector")

	batchCmd.Flags().StringP("output", "o", "", "Write the classified CSV to this file instead of standard output")

	serveCmd.Flags().String("addr", ":8080", "Listen address")
}
