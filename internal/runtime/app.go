// Package runtime assembles the action service from configuration and
// manages the resources it holds.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/tiktoken-go/tokenizer"

	"github.com/tjfontaine/roboto-ai-actions/internal/actions"
	"github.com/tjfontaine/roboto-ai-actions/internal/advisor"
	"github.com/tjfontaine/roboto-ai-actions/internal/api/roboto"
	"github.com/tjfontaine/roboto-ai-actions/internal/core/domain"
	"github.com/tjfontaine/roboto-ai-actions/internal/core/ports"
	"github.com/tjfontaine/roboto-ai-actions/internal/extract"
	"github.com/tjfontaine/roboto-ai-actions/internal/pkg/config"
	"github.com/tjfontaine/roboto-ai-actions/internal/storage"
	"github.com/tjfontaine/roboto-ai-actions/internal/storage/memory"
	"github.com/tjfontaine/roboto-ai-actions/internal/storage/sqlite"
	"github.com/tjfontaine/roboto-ai-actions/internal/tokens"
)

// App holds the action service and everything it was built from.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpClient *http.Client

	client  *roboto.Client
	store   storage.Store
	ledger  ports.Ledger
	service *actions.Service

	closers []io.Closer
}

// New builds an App from cfg. By default events, summaries and tags go to the
// platform; store.type selects a local store instead.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			a.Close()
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	clientOpts := []roboto.ClientOption{
		roboto.WithBaseURL(cfg.Roboto.Endpoint),
		roboto.WithOrgID(cfg.Roboto.OrgID),
		roboto.WithTimeout(cfg.Roboto.HTTPTimeout),
	}
	if a.httpClient != nil {
		clientOpts = append(clientOpts, roboto.WithHTTPClient(a.httpClient))
	}
	a.client = roboto.NewClient(cfg.Roboto.APIKey, clientOpts...)

	if err := a.initStore(); err != nil {
		a.Close()
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := a.initLedger(); err != nil {
		a.Close()
		return nil, fmt.Errorf("init ledger: %w", err)
	}

	counter := tokens.NewCounter(tokenizer.Encoding(cfg.Advisor.Encoding))
	extractor := extract.New(
		extract.WithLenientJSON(cfg.Extract.LenientJSON),
		extract.WithLogger(a.logger),
	)
	adv := advisor.New(a.client,
		advisor.WithTimeout(cfg.Advisor.Timeout),
		advisor.WithPollInterval(cfg.Advisor.PollInterval),
		advisor.WithLogger(a.logger),
		advisor.WithTokenCounter(counter),
	)

	var events ports.EventStore = a.client
	var writer ports.DatasetWriter = a.client
	if a.store != nil {
		events, writer = a.store, a.store
	}

	serviceOpts := []actions.Option{
		actions.WithLogger(a.logger),
		actions.WithMaxAttempts(cfg.Advisor.MaxAttempts),
		actions.WithExtractor(extractor),
		actions.WithTokenCounter(counter),
	}
	if a.ledger != nil {
		serviceOpts = append(serviceOpts, actions.WithLedger(a.ledger))
	}
	a.service = actions.New(a.client, adv, events, writer, serviceOpts...)

	a.logger.Debug("actions runtime ready",
		slog.String("endpoint", cfg.Roboto.Endpoint),
		slog.String("store", a.storeName()),
		slog.Bool("ledger", a.ledger != nil),
		slog.Int("max_attempts", cfg.Advisor.MaxAttempts),
	)
	return a, nil
}

func (a *App) initStore() error {
	if a.store != nil {
		return nil
	}
	switch a.cfg.Store.Type {
	case config.StoreSQLite:
		store, err := sqlite.New(a.cfg.Store.SQLite.Path)
		if err != nil {
			return err
		}
		a.store = store
		a.closers = append(a.closers, store)
	case config.StoreMemory:
		a.store = memory.New()
	}
	return nil
}

// initLedger opens the ledger, sharing the local store when it lives in the
// same SQLite file.
func (a *App) initLedger() error {
	if a.ledger != nil || !a.cfg.Ledger.Enabled {
		return nil
	}
	if a.store != nil && (a.cfg.Store.Type != config.StoreSQLite || a.cfg.Store.SQLite.Path == a.cfg.Ledger.Path) {
		a.ledger = a.store
		return nil
	}
	ledger, err := sqlite.New(a.cfg.Ledger.Path)
	if err != nil {
		return err
	}
	a.ledger = ledger
	a.closers = append(a.closers, ledger)
	return nil
}

func (a *App) storeName() string {
	if a.store == nil {
		return config.StoreRoboto
	}
	return a.cfg.Store.Type
}

// Service returns the action service.
func (a *App) Service() *actions.Service {
	return a.service
}

// Store returns the local store, or nil when results go to the platform.
func (a *App) Store() storage.Store {
	return a.store
}

// Ledger returns the run ledger, or nil when disabled.
func (a *App) Ledger() ports.Ledger {
	return a.ledger
}

// Invocation builds the invocation described by the configuration.
func (a *App) Invocation() actions.Invocation {
	ic := a.cfg.Invocation
	inv := actions.Invocation{
		DatasetID:  ic.DatasetID,
		InputDir:   ic.InputDir,
		DryRun:     ic.DryRun,
		Parameters: ic.Parameters,
	}
	for _, f := range ic.InputFiles {
		inv.InputFiles = append(inv.InputFiles, domain.File{
			FileID:       f.FileID,
			DatasetID:    f.DatasetID,
			RelativePath: f.RelativePath,
			LocalPath:    f.LocalPath,
		})
	}
	return inv
}

// Run executes the named action with the configured invocation and returns
// its report.
func (a *App) Run(ctx context.Context, action string) (any, error) {
	inv := a.Invocation()
	switch action {
	case actions.ActionCreateAIEvents:
		report, err := a.service.CreateAIEvents(ctx, inv)
		if err != nil {
			return nil, err
		}
		return report, nil
	case actions.ActionCreateAISummary:
		report, err := a.service.CreateAISummary(ctx, inv)
		if err != nil {
			return nil, err
		}
		return report, nil
	case actions.ActionTagDataset:
		report, err := a.service.TagDataset(ctx, inv)
		if err != nil {
			return nil, err
		}
		return report, nil
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
}

// Close releases the stores opened by New.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
