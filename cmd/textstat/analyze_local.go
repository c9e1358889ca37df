package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xxxsen/textstat/internal/analyzer"
	"github.com/xxxsen/textstat/internal/model"
)

type localReport struct {
	Path     string                 `json:"path"`
	TextHash string                 `json:"text_hash"`
	Stats    model.Stats            `json:"stats"`
	Extra    map[string]interface{} `json:"extra"`
}

func newAnalyzeLocalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze-local <path>",
		Short: "print text statistics of a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := analyzeLocal(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}

func analyzeLocal(path string) (*localReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	text, err := analyzer.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &localReport{
		Path:     path,
		TextHash: analyzer.TextHash(text),
		Stats:    analyzer.Analyze(text),
		Extra:    analyzer.Extra(text),
	}, nil
}
