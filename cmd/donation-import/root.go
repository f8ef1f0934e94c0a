package main

import (
	"os"

	"github.com/JonMunkholm/donfundy/internal/config"
	"github.com/JonMunkholm/donfundy/internal/core"
	"github.com/JonMunkholm/donfundy/internal/logging"
	"github.com/JonMunkholm/donfundy/internal/storage"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// app holds what the subcommands share once setup has run.
type app struct {
	driver      string
	databaseURL string

	cfg     *config.Config
	store   storage.Store
	service *core.Service
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:               "donation-import",
		Short:             "Import donation CSV files",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.driver, "driver", "", "Database driver: postgres or sqlite (overrides DATABASE_DRIVER)")
	root.PersistentFlags().StringVar(&a.databaseURL, "database-url", "", "PostgreSQL URL or SQLite path (overrides DATABASE_URL)")

	root.AddCommand(newRunCmd(a), newHistoryCmd(a), newMigrateCmd(a))
	return root
}

// setup loads configuration, opens the store and builds the service.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	// A missing .env file is fine; real environment variables take precedence.
	_ = godotenv.Load()

	if cmd.Flags().Changed("driver") {
		if err := os.Setenv("DATABASE_DRIVER", a.driver); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("database-url") {
		if err := os.Setenv("DATABASE_URL", a.databaseURL); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	logging.Setup(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

	store, err := storage.Open(cmd.Context(), cfg.Database)
	if err != nil {
		return err
	}
	a.store = store

	a.service, err = core.NewService(store, core.ServiceConfig{
		MaxConcurrent: 1,
		MaxWait:       cfg.Import.MaxWaitTime,
		Timeout:       cfg.Import.Timeout,
		HistoryLimit:  cfg.Import.HistoryLimit,
	})
	return err
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
		a.store = nil
	}
}
