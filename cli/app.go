// ABOUTME: Builds the config, logger, backend and facade a subcommand runs against
// ABOUTME: Chooses the REST client or the local SQLite backend from the resolved config
package cli

import (
	"database/sql"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/harperreed/devicedrop/apiclient"
	"github.com/harperreed/devicedrop/config"
	"github.com/harperreed/devicedrop/db"
	"github.com/harperreed/devicedrop/engine"
	"github.com/harperreed/devicedrop/prefs"
)

// app is one CLI invocation's wiring.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	api     engine.API
	facade  *engine.Facade
	backend *db.Backend // nil unless the local backend is in use
	closers []func() error
}

// openApp resolves config and connects to the configured backend. Logs go to
// logOut, or stderr when nil.
func (g *globalFlags) openApp(cmd *cobra.Command, logOut io.Writer) (*app, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	if logOut == nil {
		logOut = cmd.ErrOrStderr()
	}
	return newApp(cfg, cfg.NewLogger(logOut))
}

func newApp(cfg *config.Config, logger *log.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	switch cfg.Backend {
	case config.BackendLocal:
		database, err := db.OpenDatabase(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.closers = append(a.closers, database.Close)
		a.backend = db.NewBackend(database)
		a.api = a.backend
		a.logger.Debug("using local backend", "path", cfg.DBPath)
	case config.BackendHTTP:
		client, err := apiclient.New(apiclient.Options{
			BaseURL:           cfg.APIURL,
			Token:             cfg.Token,
			ClientID:          cfg.ClientID,
			ClientSecret:      cfg.ClientSecret,
			TokenURL:          cfg.TokenURL,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
			Timeout:           cfg.Timeout,
			Logger:            a.logger,
		})
		if err != nil {
			return nil, err
		}
		a.api = client
		a.logger.Debug("using admin api", "url", cfg.APIURL)
	}

	a.facade = engine.New(a.api,
		engine.WithLogger(a.logger),
		engine.WithPageSize(cfg.PageSize),
		engine.WithRecordIndex(cfg.CacheSize, cfg.CacheTTL),
	)
	return a, nil
}

// openBackend opens the SQLite database directly, whatever backend is
// configured. serve and seed always work on the local file.
func (g *globalFlags) openBackend(cmd *cobra.Command) (*config.Config, *log.Logger, *db.Backend, *sql.DB, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger := cfg.NewLogger(cmd.ErrOrStderr())
	database, err := db.OpenDatabase(cfg.DBPath)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return cfg, logger, db.NewBackend(database), database, nil
}

// presets returns the saved filter store, or nil when charm KV cannot be
// opened. Presets are a convenience and never block a command.
func (a *app) presets() *prefs.Store {
	c, err := openPrefsClient(a.cfg.PrefsSync)
	if err != nil {
		a.logger.Warn("saved filters unavailable", "err", err)
		return nil
	}
	return prefs.NewStore(c)
}

// newLoader builds a tab loader, seeded with saved filters when store is set.
func (a *app) newLoader(store *prefs.Store) *engine.Loader {
	if store == nil {
		return engine.NewLoader(a.facade)
	}
	return engine.NewLoader(a.facade, engine.WithPresets(store))
}

func (a *app) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
