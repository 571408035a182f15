package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/track.monitor/internal/codec"
)

func newImportCmd(flags *globalFlags) *cobra.Command {
	var mapping string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a CSV recording into the history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := codec.ParseMode(mapping)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			store, historyDB, err := flags.openStore(cmd)
			if err != nil {
				return err
			}
			defer historyDB.Close()

			rec, res, err := codec.ImportInto(cmd.Context(), store, f, filepath.Base(args[0]), codec.MappingFor(mode), time.Now().UTC())
			if rec.ID == "" {
				return fmt.Errorf("import %s: %w", args[0], err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "imported %s: %d samples, %d rows skipped\n", rec.ID, rec.Stats.Samples, res.Skipped)
			for _, rowErr := range res.RowErrors {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %v\n", rowErr)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&mapping, "mapping", string(codec.ModeFixed), "column mapping: fixed or header")
	return cmd
}
