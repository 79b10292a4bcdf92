package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/catalog"
	"github.com/spigell/resume-matcher/internal/matching"
	"github.com/spigell/resume-matcher/internal/profile"
)

const (
	PromptYes                 = "Yes"
	PromptNo                  = "No"
	PromptBack                = "back"
	PromptReportByCompanies   = "Report by companies"
	PromptAppendToExcludeFile = "Append all listed jobs to exclude file"
	PromptJobsToFile          = "Dump listed jobs to file"
)

var errExit = errors.New("exit requested")

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank jobs for an already extracted resume profile",
	Run: func(cmd *cobra.Command, _ []string) {
		runMatch(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("request", "r", "", "json file with resume_profile and an optional jobs list")
	matchCmd.Flags().BoolP("interactive", "i", false, "browse the ranked jobs instead of printing them")
	matchCmd.Flags().StringP("exclude-file", "e", "", "special file with jobs to exclude. Default is unset.")

	matchCmd.MarkFlagRequired("request")
	viper.BindPFlag("filters.exclude-file", matchCmd.Flags().Lookup("exclude-file"))
}

// matchFile mirrors the body of POST /match-jobs. Jobs default to the
// configured catalog.
type matchFile struct {
	ResumeProfile *profile.Profile `json:"resume_profile"`
	Jobs          []map[string]any `json:"jobs"`
}

func parseMatchFile(logger *zap.Logger, data []byte, fallback []catalog.JobPosting) (profile.Profile, []catalog.JobPosting, error) {
	var req matchFile

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return profile.Profile{}, nil, fmt.Errorf("parsing match request: %w", err)
	}

	if req.ResumeProfile == nil {
		return profile.Profile{}, nil, matching.NewValidationError("resume_profile", "is required")
	}

	if req.Jobs == nil {
		return *req.ResumeProfile, fallback, nil
	}

	jobs, err := catalog.DecodeJobs(logger, req.Jobs)
	if err != nil {
		return profile.Profile{}, nil, matching.NewValidationError("jobs", err.Error())
	}
	return *req.ResumeProfile, jobs, nil
}

func runMatch(cmd *cobra.Command) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, config := setup()

	svc, err := buildService(config, logger)
	if err != nil {
		logger.Fatal("building the pipeline", zap.Error(err))
	}

	path, _ := cmd.Flags().GetString("request")
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Fatal("reading match request", zap.Error(err))
	}

	p, jobs, err := parseMatchFile(logger, data, svc.Jobs())
	if err != nil {
		logger.Fatal("invalid match request", zap.String("file", path), zap.Error(err))
	}

	results, err := svc.Match(ctx, p, jobs)
	if err != nil {
		logger.Fatal("matching failed", zap.Error(err))
	}

	logger.Info("jobs ranked", zap.Int("count", len(results)))

	if interactive, _ := cmd.Flags().GetBool("interactive"); !interactive {
		pretty, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(pretty))
		return
	}

	if err := browse(logger, config.Filters.ExcludeFile, results, jobs); err != nil && !errors.Is(err, errExit) {
		logger.Fatal("exiting", zap.Error(err))
	}
}

func resultLabel(r matching.Result) string {
	return fmt.Sprintf("%s %6.2f %s / %s", r.JobID, r.FinalScore, r.JobTitle, r.Company)
}

// browse lists the ranked jobs until the user goes back. Selecting a job
// prints its score breakdown and offers to exclude it.
func browse(logger *zap.Logger, excludeFile string, results []matching.Result, jobs []catalog.JobPosting) error {
	listed := catalog.NewJobs(jobs)

	for {
		items := make([]string, 0, len(results)+4)
		for _, r := range results {
			items = append(items, resultLabel(r))
		}

		items = append(items, PromptReportByCompanies, PromptJobsToFile)
		if excludeFile != "" && len(results) != 0 {
			items = append(items, PromptAppendToExcludeFile)
		}

		jobPrompt := promptui.Select{
			Label: "Choose a job and press ENTER",
			Items: append(items, PromptBack),
			Size:  15,
		}

		_, selected, err := jobPrompt.Run()
		if err != nil {
			return err
		}

		switch selected {
		case PromptBack:
			return errExit
		case PromptReportByCompanies:
			pretty, _ := json.MarshalIndent(listed.ReportByCompany(), "", "  ")
			logger.Info(string(pretty), zap.Int("jobs count", listed.Len()))
		case PromptJobsToFile:
			filename, err := listed.DumpToTmpFile()
			if err != nil {
				return fmt.Errorf("dump jobs to file: %w", err)
			}
			logger.Info("dumping jobs to file", zap.String("filename", filename))
		case PromptAppendToExcludeFile:
			if _, err := appendToExcludeFile(excludeFile, listed, time.Now()); err != nil {
				return err
			}
			logger.Info("appended to exclude file", zap.String("filename", excludeFile), zap.Int("count", listed.Len()))
			results = nil
			listed = catalog.NewJobs(nil)
		default:
			jobID := strings.Split(selected, " ")[0]
			r := findResult(results, jobID)
			if r == nil {
				return fmt.Errorf("there is no such job id %s", jobID)
			}

			fmt.Print(matching.Explain(*r))

			if excludeFile == "" {
				continue
			}

			confirm := promptui.Select{Label: "Exclude this job from future runs?", Items: []string{PromptNo, PromptYes}}
			_, answer, err := confirm.Run()
			if err != nil {
				return err
			}
			if answer != PromptYes {
				continue
			}

			job := listed.FindByID(jobID)
			if job == nil {
				return fmt.Errorf("job %s is not listed", jobID)
			}
			if _, err := appendToExcludeFile(excludeFile, catalog.NewJobs([]catalog.JobPosting{*job}), time.Now()); err != nil {
				return err
			}
			logger.Info("appended to exclude file", zap.String("filename", excludeFile), zap.String("job_id", jobID))

			listed.Exclude(catalog.JobIDField, []string{jobID})
			results = dropResult(results, jobID)
		}
	}
}

// appendToExcludeFile adds jobs to the exclude file, creating it when
// missing, and returns the full list written.
func appendToExcludeFile(path string, jobs *catalog.Jobs, now time.Time) (*catalog.ExcludedJobs, error) {
	excluded, err := catalog.GetExcludedJobsFromFile(path)
	if errors.Is(err, os.ErrNotExist) {
		excluded, err = &catalog.ExcludedJobs{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading exclude file: %w", err)
	}

	excluded.Append(jobs.ToExcluded(now))

	if err := excluded.ToFile(path); err != nil {
		return nil, fmt.Errorf("writing exclude file: %w", err)
	}
	return excluded, nil
}

func findResult(results []matching.Result, id string) *matching.Result {
	for i := range results {
		if results[i].JobID.String() == id {
			return &results[i]
		}
	}
	return nil
}

func dropResult(results []matching.Result, id string) []matching.Result {
	kept := results[:0]
	for _, r := range results {
		if r.JobID.String() != id {
			kept = append(kept, r)
		}
	}
	return kept
}
