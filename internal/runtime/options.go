package runtime

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/roboto-ai-actions/internal/core/ports"
	"github.com/tjfontaine/roboto-ai-actions/internal/storage"
	"github.com/tjfontaine/roboto-ai-actions/internal/storage/sqlite"
)

// Option is a functional option for configuring an App.
type Option func(*App) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithHTTPClient sends platform requests through client.
func WithHTTPClient(client *http.Client) Option {
	return func(a *App) error {
		a.httpClient = client
		return nil
	}
}

// WithStore writes events, summaries and tags to store instead of the
// platform, regardless of store.type.
func WithStore(store storage.Store) Option {
	return func(a *App) error {
		a.store = store
		return nil
	}
}

// WithSQLite opens a SQLite store at path and uses it as in WithStore.
func WithSQLite(path string) Option {
	return func(a *App) error {
		store, err := sqlite.New(path)
		if err != nil {
			return fmt.Errorf("create sqlite storage: %w", err)
		}
		a.store = store
		a.closers = append(a.closers, store)
		return nil
	}
}

// WithLedger records runs in ledger, regardless of ledger.enabled.
func WithLedger(ledger ports.Ledger) Option {
	return func(a *App) error {
		a.ledger = ledger
		return nil
	}
}
