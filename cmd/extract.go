package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/matching"
	"github.com/spigell/resume-matcher/internal/pipeline"
	"github.com/spigell/resume-matcher/internal/profile"
)

var extractCmd = &cobra.Command{
	Use:   "extract <resume file>",
	Short: "Extract a profile from a local resume and rank the catalog against it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		extract(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().IntP("top", "n", 0, "print only the n best matches (default all)")
}

type extractOutput struct {
	File             string            `json:"file"`
	Profile          profile.Profile   `json:"resume_profile"`
	Matches          []matching.Result `json:"job_matches"`
	TotalJobs        int               `json:"total_jobs_analysed"`
	ProcessingTimeMS int64             `json:"processing_time_ms"`
	Filters          []filterSnapshot  `json:"filters,omitempty"`
}

type filterSnapshot struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

func extract(cmd *cobra.Command, path string) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, config := setup()

	svc, err := buildService(config, logger)
	if err != nil {
		logger.Fatal("building the pipeline", zap.Error(err))
	}

	file, err := os.Open(path)
	if err != nil {
		logger.Fatal("opening resume", zap.Error(err))
	}
	defer file.Close()

	report, err := svc.ProcessUpload(ctx, filepath.Base(path), file)
	if err != nil {
		logger.Fatal("processing resume", zap.String("file", path), zap.Error(err))
	}

	top, _ := cmd.Flags().GetInt("top")
	out := newExtractOutput(path, report, top, svc.Health())

	pretty, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		logger.Fatal("encoding report", zap.Error(err))
	}
	fmt.Println(string(pretty))
}

func newExtractOutput(path string, report *pipeline.Report, top int, health pipeline.Health) extractOutput {
	matches := report.Matches
	if top > 0 && top < len(matches) {
		matches = matches[:top]
	}

	filters := make([]filterSnapshot, 0, len(health.Filters))
	for _, f := range health.Filters {
		filters = append(filters, filterSnapshot{Name: f.Name, Enabled: f.Enabled})
	}

	return extractOutput{
		File:             path,
		Profile:          report.Profile,
		Matches:          matches,
		TotalJobs:        report.TotalJobs,
		ProcessingTimeMS: report.ProcessingTime.Milliseconds(),
		Filters:          filters,
	}
}
