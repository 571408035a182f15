package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/track.monitor/internal/db"
)

func newMigrateCmd(flags *globalFlags) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the history database schema",
	}

	open := func() (*db.DB, error) {
		cfg, err := flags.loadConfig()
		if err != nil {
			return nil, err
		}
		return db.OpenDB(cfg.GetDBPath())
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			historyDB, err := open()
			if err != nil {
				return err
			}
			defer historyDB.Close()
			if err := historyDB.MigrateUp(); err != nil {
				return err
			}
			v, _, err := historyDB.MigrateVersion()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", v)
			return err
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			historyDB, err := open()
			if err != nil {
				return err
			}
			defer historyDB.Close()
			if err := historyDB.MigrateDown(); err != nil {
				return err
			}
			v, _, err := historyDB.MigrateVersion()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", v)
			return err
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the applied and latest schema versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			historyDB, err := open()
			if err != nil {
				return err
			}
			defer historyDB.Close()
			v, dirty, err := historyDB.MigrateVersion()
			if err != nil {
				return err
			}
			latest, err := db.LatestMigrationVersion()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "applied %d (latest %d, dirty %t)\n", v, latest, dirty)
			return err
		},
	}

	migrateCmd.AddCommand(upCmd, downCmd, versionCmd)
	return migrateCmd
}

func newAuditCmd(flags *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the most recent history writes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, historyDB, err := flags.openStore(cmd)
			if err != nil {
				return err
			}
			defer historyDB.Close()
			writes, err := historyDB.RecentWrites(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, w := range writes {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%d records\t%d bytes\tnewest=%s\n", w.WrittenAt, w.Records, w.Bytes, w.NewestID)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of writes to show")
	return cmd
}
