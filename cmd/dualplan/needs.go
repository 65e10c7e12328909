package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"dualplan/internal/layout"
)

var needsLayoutPath string

var needsCmd = &cobra.Command{
	Use:   "needs",
	Short: "Derive backend needs from a UI layout",
	Long: `Print the data models, endpoints and capability flags implied by a layout.
Reads stdin when --layout is omitted. No AI provider is needed.`,
	RunE: runNeeds,
}

func init() {
	needsCmd.Flags().StringVar(&needsLayoutPath, "layout", "", "UI layout JSON file (default stdin)")
	rootCmd.AddCommand(needsCmd)
}

func runNeeds(cmd *cobra.Command, args []string) error {
	var (
		raw []byte
		err error
	)
	if needsLayoutPath == "" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(needsLayoutPath)
	}
	if err != nil {
		return fmt.Errorf("read layout: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(layout.ExtractJSON(raw))
}
