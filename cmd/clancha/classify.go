package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"clancha/internal/domain"
	"clancha/internal/safeguard"
)

type classifyOutput struct {
	Version int    `json:"catalogueVersion"`
	Text    string `json:"text"`
	domain.SafeguardVerdict
}

func newClassifyCmd() *cobra.Command {
	var (
		asJSON        bool
		cataloguePath string
	)
	cmd := &cobra.Command{
		Use:   "classify TEXT...",
		Short: "Classify a draft with the safeguard rules",
		Long: `classify strips emoji from the draft, runs the safeguard classifier and prints
the verdict. Arguments are joined with single spaces.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadClassifier(cataloguePath)
			if err != nil {
				return err
			}
			text := strings.TrimSpace(safeguard.StripEmoji(strings.Join(args, " ")))
			v := c.Classify(text)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(classifyOutput{
					Version:          c.Version(),
					Text:             text,
					SafeguardVerdict: v,
				})
			}
			if v.Safe {
				_, err = fmt.Fprintf(out, "SAFE: %s\n", v.CleanedText)
				return err
			}
			_, err = fmt.Fprintf(out, "BLOCKED (%s): %s\n", v.Rule, v.Reason)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the verdict as JSON")
	cmd.Flags().StringVar(&cataloguePath, "catalogue", "", "YAML catalogue to use instead of the embedded one")
	return cmd
}

func loadClassifier(path string) (*safeguard.Classifier, error) {
	if path == "" {
		return safeguard.Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalogue: %w", err)
	}
	cat, err := safeguard.LoadCatalogue(raw)
	if err != nil {
		return nil, err
	}
	return safeguard.New(cat)
}
