package actions

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tjfontaine/roboto-ai-actions/internal/core/domain"
	"github.com/tjfontaine/roboto-ai-actions/internal/core/ports"
)

// ErrNoLocalInputs is returned by TagDataset when no input file is available on disk.
var ErrNoLocalInputs = errors.New("no downloaded input files")

// maxLineBytes bounds a single scanned log line.
const maxLineBytes = 4 << 20

// TagDataset scans the downloaded input files for the "keyword" parameter
// (DefaultKeyword when unset) and tags the dataset with it on the first
// matching line. In dry-run mode the tag is not written.
func (s *Service) TagDataset(ctx context.Context, inv Invocation) (*TagReport, error) {
	ds, err := s.DetermineDataset(ctx, inv)
	if err != nil {
		return nil, err
	}
	datasetID := ds.DatasetID
	keyword := inv.Parameter("keyword", DefaultKeyword)

	ctx, r := s.startRun(ctx, ActionTagDataset, datasetID)
	report := &TagReport{RunID: r.record.ID, DatasetID: datasetID, DryRun: inv.DryRun, Keyword: keyword}

	paths, err := localInputs(inv)
	if err != nil {
		s.finishRun(ctx, r, ports.RunStatusFailed, domain.OutcomeSummary{}, err)
		return report, err
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			s.finishRun(ctx, r, ports.RunStatusFailed, domain.OutcomeSummary{}, err)
			return report, err
		}

		found, err := fileContains(path, keyword)
		if err != nil {
			s.finishRun(ctx, r, ports.RunStatusFailed, domain.OutcomeSummary{}, err)
			return report, err
		}
		if !found {
			s.logger.Info("keyword not found in file", slog.String("keyword", keyword), slog.String("file", path))
			continue
		}

		report.Found = true
		report.File = path
		s.logger.Info("found keyword in file", slog.String("keyword", keyword), slog.String("file", path))

		if inv.DryRun {
			s.logger.Info("[dry run] not modifying dataset tags", slog.String("dataset_id", datasetID))
			s.finishRun(ctx, r, ports.RunStatusDryRun, domain.OutcomeSummary{}, nil)
			return report, nil
		}

		if err := s.writer.PutDatasetTags(ctx, datasetID, []string{keyword}); err != nil {
			err = fmt.Errorf("tag dataset %s: %w", datasetID, err)
			s.finishRun(ctx, r, ports.RunStatusFailed, domain.OutcomeSummary{}, err)
			return report, err
		}
		report.Tagged = true
		break
	}

	status := ports.RunStatusSucceeded
	if inv.DryRun {
		status = ports.RunStatusDryRun
	}
	s.finishRun(ctx, r, status, domain.OutcomeSummary{}, nil)
	return report, nil
}

// localInputs returns the on-disk paths of the invocation's inputs: the local
// paths of its input files, else every regular file under InputDir in lexical
// order.
func localInputs(inv Invocation) ([]string, error) {
	var paths []string
	for _, f := range inv.InputFiles {
		if f.LocalPath == "" {
			return nil, fmt.Errorf("input file %s (%s) was not downloaded: %w", f.FileID, f.RelativePath, ErrNoLocalInputs)
		}
		paths = append(paths, f.LocalPath)
	}
	if len(paths) > 0 {
		return paths, nil
	}

	if inv.InputDir == "" {
		return nil, ErrNoLocalInputs
	}
	err := filepath.WalkDir(inv.InputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan input dir %s: %w", inv.InputDir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("input dir %s: %w", inv.InputDir, ErrNoLocalInputs)
	}
	sort.Strings(paths)
	return paths, nil
}

func fileContains(path, keyword string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if strings.Contains(scanner.Text(), keyword) {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	return false, nil
}
