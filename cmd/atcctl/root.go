package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/track.monitor/internal/config"
	"github.com/banshee-data/track.monitor/internal/db"
	"github.com/banshee-data/track.monitor/internal/session"
)

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

type globalFlags struct {
	configPath string
	dbPath     string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "atcctl",
		Short:         "Inspect, export and import track monitor session history",
		Long:          "atcctl works offline against the sqlite session history written by atcmonitor: list records, export samples or summaries as CSV, import CSV recordings and manage the schema.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "instrument configuration JSON")
	rootCmd.PersistentFlags().StringVar(&flags.dbPath, "db-path", "", "sqlite history database (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newHistoryCmd(flags),
		newExportCmd(flags),
		newSummaryCmd(flags),
		newImportCmd(flags),
		newMigrateCmd(flags),
		newAuditCmd(flags),
	)
	return rootCmd
}

func (f *globalFlags) loadConfig() (*config.InstrumentConfig, error) {
	cfg := config.EmptyInstrumentConfig()
	if f.configPath != "" {
		loaded, err := config.LoadInstrumentConfig(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if f.dbPath != "" {
		cfg.DBPath = &f.dbPath
	}
	return cfg, nil
}

// openStore opens the migrated database and loads its history into a store
// configured like the daemon's, so caps and ordering match. The caller closes
// the returned database.
func (f *globalFlags) openStore(cmd *cobra.Command) (*session.Store, *db.DB, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	historyDB, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		return nil, nil, err
	}
	opts := cfg.StoreOptions()
	opts.Persister = historyDB
	store := session.NewStore(opts)
	if err := store.Load(cmd.Context()); err != nil {
		historyDB.Close()
		return nil, nil, fmt.Errorf("load history: %w", err)
	}
	return store, historyDB, nil
}
