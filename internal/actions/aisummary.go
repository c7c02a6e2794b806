package actions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tjfontaine/roboto-ai-actions/internal/advisor"
	"github.com/tjfontaine/roboto-ai-actions/internal/core/domain"
	"github.com/tjfontaine/roboto-ai-actions/internal/core/ports"
)

// CreateAISummary asks the advisory agent for a Markdown summary of a dataset
// and stores it as the dataset summary. In dry-run mode the summary is only
// logged.
func (s *Service) CreateAISummary(ctx context.Context, inv Invocation) (*SummaryReport, error) {
	ds, err := s.DetermineDataset(ctx, inv)
	if err != nil {
		return nil, err
	}
	datasetID := ds.DatasetID

	ctx, r := s.startRun(ctx, ActionCreateAISummary, datasetID)
	report := &SummaryReport{RunID: r.record.ID, DatasetID: datasetID, DryRun: inv.DryRun}

	files, err := s.catalog.ListFiles(ctx, datasetID)
	if err != nil {
		err = fmt.Errorf("list files of dataset %s: %w", datasetID, err)
		s.finishRun(ctx, r, ports.RunStatusFailed, domain.OutcomeSummary{}, err)
		return report, err
	}
	report.Files = len(files)
	s.logger.Info("generating AI summary",
		slog.String("dataset_id", datasetID),
		slog.Int("files", len(files)),
	)

	summary, err := s.advisor.Ask(ctx, advisor.SummaryPrompt, datasetID, files)
	s.observeAttempt(ctx, domain.RetryAttempt{Number: 1, Transcript: summary, Err: err})
	if err != nil {
		s.finishRun(ctx, r, ports.RunStatusFailed, domain.OutcomeSummary{}, err)
		return report, err
	}
	report.Summary = summary

	if inv.DryRun {
		s.logger.Info("[dry run] skipping setting AI summary",
			slog.String("dataset_id", datasetID),
			slog.String("summary", summary),
		)
		s.finishRun(ctx, r, ports.RunStatusDryRun, domain.OutcomeSummary{}, nil)
		return report, nil
	}

	s.logger.Info("summary generated; persisting to dataset", slog.String("dataset_id", datasetID))
	if err := s.writer.SetDatasetSummary(ctx, datasetID, summary); err != nil {
		err = fmt.Errorf("set summary of dataset %s: %w", datasetID, err)
		s.finishRun(ctx, r, ports.RunStatusFailed, domain.OutcomeSummary{}, err)
		return report, err
	}
	report.Written = true

	s.finishRun(ctx, r, ports.RunStatusSucceeded, domain.OutcomeSummary{}, nil)
	return report, nil
}
