package actions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tjfontaine/roboto-ai-actions/internal/core/domain"
)

// DetermineDataset returns the dataset an invocation operates on: the dataset
// it was triggered on, else the dataset of its first input file. It returns
// domain.ErrNoDataset when neither is known.
func (s *Service) DetermineDataset(ctx context.Context, inv Invocation) (*domain.Dataset, error) {
	id := strings.TrimSpace(inv.DatasetID)
	if id == unspecifiedDatasetID {
		id = ""
	}
	if id == "" && len(inv.InputFiles) > 0 {
		id = inv.InputFiles[0].DatasetID
	}
	if id == "" {
		return nil, domain.ErrNoDataset
	}

	ds, err := s.catalog.GetDataset(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get dataset %s: %w", id, err)
	}
	return ds, nil
}

// candidateFiles returns the invocation's input files, or every file of the
// dataset when none were given.
func (s *Service) candidateFiles(ctx context.Context, inv Invocation, datasetID string) ([]domain.File, error) {
	if len(inv.InputFiles) > 0 {
		s.logger.Info("processing specified input files",
			slog.String("dataset_id", datasetID),
			slog.Int("files", len(inv.InputFiles)),
		)
		return inv.InputFiles, nil
	}

	files, err := s.catalog.ListFiles(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("list files of dataset %s: %w", datasetID, err)
	}
	s.logger.Info("no input files specified; listed dataset files",
		slog.String("dataset_id", datasetID),
		slog.Int("files", len(files)),
	)
	return files, nil
}
