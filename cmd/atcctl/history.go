package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/track.monitor/internal/codec"
	"github.com/banshee-data/track.monitor/internal/session"
)

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List session records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, historyDB, err := flags.openStore(cmd)
			if err != nil {
				return err
			}
			defer historyDB.Close()

			records := store.History()
			if asJSON {
				out := make([]session.Record, len(records))
				for i, r := range records {
					out[i] = r.WithoutSamples()
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			return writeHistoryTable(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON (without samples)")
	return cmd
}

func writeHistoryTable(w io.Writer, records []session.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "no sessions")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tSOURCE\tLINE\tTRACK\tSTART PK\tSAMPLES\tLA\tLI\tLAI\tSEVERITY")
	for _, r := range records {
		severity := "-"
		if r.Analysis != nil {
			severity = string(r.Analysis.SeverityLevel)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.4f\t%d\t%d\t%d\t%d\t%s\n",
			r.ID, r.Date.UTC().Format(time.DateTime), r.Source, r.Stats.Line, r.Stats.Track,
			r.Stats.StartPosition, len(r.Samples), r.Stats.CountLA, r.Stats.CountLI, r.Stats.CountLAI, severity)
	}
	return tw.Flush()
}

// outputFile returns stdout for an empty path, or a created file.
func outputFile(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func newExportCmd(flags *globalFlags) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export the samples of one record as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, historyDB, err := flags.openStore(cmd)
			if err != nil {
				return err
			}
			defer historyDB.Close()

			rec, err := store.Record(args[0])
			if err != nil {
				return err
			}
			w, closeFn, err := outputFile(cmd, out)
			if err != nil {
				return err
			}
			if err := codec.Export(w, rec); err != nil {
				closeFn()
				return err
			}
			return closeFn()
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newSummaryCmd(flags *globalFlags) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Export one summary CSV row per record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, historyDB, err := flags.openStore(cmd)
			if err != nil {
				return err
			}
			defer historyDB.Close()

			w, closeFn, err := outputFile(cmd, out)
			if err != nil {
				return err
			}
			if err := codec.ExportSummary(w, store.History()); err != nil {
				closeFn()
				return err
			}
			return closeFn()
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	return cmd
}
