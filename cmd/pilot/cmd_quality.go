package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"promptpilot/internal/quality"
)

var checksCmd = &cobra.Command{
	Use:   "checks",
	Short: "List the registered quality checks",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := quality.NewPipeline(quality.Config{})
		for _, id := range p.Checks() {
			fmt.Println(id)
		}
		return nil
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score [file]",
	Short: "Run the quality pipeline against a file and print the report",
	Long: `Scores a file with every registered check and prints the issues,
score, grade, and recommendations.

Example:
  pilot score main.py
  pilot score -l go handler.go`,
	Args: cobra.ExactArgs(1),
	RunE: scoreFile,
}

func scoreFile(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	p := quality.NewPipeline(quality.Config{Parallel: true})
	report := p.RunQualityCheck(ctx, string(data), args[0], quality.CheckContext{
		Target:   args[0],
		Language: language,
	})

	for _, issue := range report.Issues {
		loc := ""
		if issue.Line > 0 {
			loc = fmt.Sprintf(":%d", issue.Line)
		}
		fmt.Printf("%s%s [%s/%s] %s\n", args[0], loc, issue.Severity, issue.Category, issue.Message)
	}
	fmt.Printf("\nscore %d (%s), confidence %.2f, %d check(s)\n",
		report.Score, report.Grade, report.Confidence, len(report.ChecksExecuted))
	for _, rec := range report.Recommendations {
		fmt.Println("  -", rec)
	}
	return nil
}
