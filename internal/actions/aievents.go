package actions

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/tjfontaine/roboto-ai-actions/internal/advisor"
	"github.com/tjfontaine/roboto-ai-actions/internal/core/domain"
	"github.com/tjfontaine/roboto-ai-actions/internal/core/ports"
)

// CreateAIEvents asks the advisory agent for notable intervals of a dataset,
// validates its answer (retrying as configured) and creates one event per
// interval. In dry-run mode the validated batch is logged and nothing is
// written. The report is returned alongside any error.
func (s *Service) CreateAIEvents(ctx context.Context, inv Invocation) (*EventsReport, error) {
	ds, err := s.DetermineDataset(ctx, inv)
	if err != nil {
		return nil, err
	}
	datasetID := ds.DatasetID

	ctx, r := s.startRun(ctx, ActionCreateAIEvents, datasetID)
	report := &EventsReport{
		RunID:     r.record.ID,
		DatasetID: datasetID,
		DryRun:    inv.DryRun,
		Outcomes:  []OutcomeReport{},
	}

	files, err := s.candidateFiles(ctx, inv, datasetID)
	if err != nil {
		s.finishRun(ctx, r, ports.RunStatusFailed, domain.OutcomeSummary{}, err)
		return report, err
	}
	report.Files = len(files)

	batch, err := s.orchestrator.Run(ctx, s.advisor.Source(advisor.EventsPrompt, files), datasetID)
	report.Attempts = r.attempts()
	if err != nil {
		s.finishRun(ctx, r, ports.RunStatusFailed, domain.OutcomeSummary{}, err)
		return report, err
	}
	report.Batch = batch
	s.logBatch(batch)

	if inv.DryRun {
		s.logger.Info("[dry run] skipping event creation",
			slog.String("dataset_id", datasetID),
			slog.String("response", batchJSON(batch)),
		)
		s.finishRun(ctx, r, ports.RunStatusDryRun, domain.OutcomeSummary{}, nil)
		return report, nil
	}

	if batch.Len() == 0 {
		s.logger.Info("no events found in advisory response; nothing to create",
			slog.String("dataset_id", datasetID),
		)
		s.finishRun(ctx, r, ports.RunStatusSucceeded, domain.OutcomeSummary{}, nil)
		return report, nil
	}

	outcomes := s.persister.Persist(ctx, batch, datasetID, false)
	report.Outcomes = newOutcomeReports(outcomes)
	report.Summary = domain.Summarize(outcomes)

	s.logger.Info("created events",
		slog.String("dataset_id", datasetID),
		slog.String("created", report.Summary.String()),
	)
	s.finishRun(ctx, r, ports.RunStatusSucceeded, report.Summary, nil)
	return report, nil
}

func (s *Service) logBatch(batch *domain.ResponseBatch) {
	for i, d := range batch.Descriptors {
		s.logger.Info("event",
			slog.Int("index", i+1),
			slog.String("name", d.Name),
			slog.Float64("duration_s", d.DurationSeconds()),
			slog.Int("severity", int(d.Severity)),
			slog.Int("message_paths", len(d.MessagePathIDs)),
		)
		s.logger.Debug("event details",
			slog.Int("index", i+1),
			slog.String("description", d.Description),
			slog.String("message_path_ids", strings.Join(d.MessagePathIDs, ", ")),
		)
	}
}

func batchJSON(batch *domain.ResponseBatch) string {
	data, err := json.Marshal(batch)
	if err != nil {
		return err.Error()
	}
	return string(data)
}
