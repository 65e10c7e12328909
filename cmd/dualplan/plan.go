package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dualplan/internal/architecture"
	"dualplan/internal/dualplan"
	"dualplan/internal/logging"
)

var (
	specPath         string
	layoutPath       string
	intelligencePath string
	quiet            bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan one specification and print the result as JSON",
	Long: `Run the full pipeline for one specification. Progress goes to stderr and
the terminal result to stdout.

Exit codes:
  0  complete
  2  escalation (the architects could not agree)
  1  error

Example:
  dualplan plan --spec taskboard.json --layout layout.json`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&specPath, "spec", "", "Application specification JSON file (required)")
	planCmd.Flags().StringVar(&layoutPath, "layout", "", "UI layout JSON file")
	planCmd.Flags().StringVar(&intelligencePath, "intelligence", "", "Precomputed intelligence snapshot JSON file")
	planCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	_ = planCmd.MarkFlagRequired("spec")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.L()
	ctx := cmd.Context()

	var req dualplan.Request
	req.Specification = &architecture.Specification{}
	if err := readJSON(specPath, req.Specification); err != nil {
		return err
	}
	if layoutPath != "" {
		// malformed layouts degrade to empty needs inside the pipeline
		if req.LayoutJSON, err = os.ReadFile(layoutPath); err != nil {
			return fmt.Errorf("read layout: %w", err)
		}
	}
	if intelligencePath != "" {
		req.Intelligence = &architecture.IntelligenceContext{}
		if err := readJSON(intelligencePath, req.Intelligence); err != nil {
			return err
		}
	}

	router, err := buildRouter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	cache, closeCache := buildCache(ctx, cfg, logger)
	defer closeCache()

	var onProgress dualplan.ProgressFunc
	if !quiet {
		stderr := cmd.ErrOrStderr()
		onProgress = func(p dualplan.Progress) {
			if p.Round > 0 {
				fmt.Fprintf(stderr, "[%3d%%] %s (round %d/%d): %s\n", p.Percent, p.Stage, p.Round, p.MaxRounds, p.Message)
				return
			}
			fmt.Fprintf(stderr, "[%3d%%] %s: %s\n", p.Percent, p.Stage, p.Message)
		}
	}

	res := dualplan.New(buildGenerator(router, cfg, logger), cfg, cache, logger).Execute(ctx, req, onProgress)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	switch res.Type {
	case dualplan.ResultComplete:
		return nil
	case dualplan.ResultEscalation:
		return &exitError{code: 2, err: fmt.Errorf("escalated: %s", res.Escalation.Reason)}
	default:
		return &exitError{code: 1, err: fmt.Errorf("failed: %s", res.Error)}
	}
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
