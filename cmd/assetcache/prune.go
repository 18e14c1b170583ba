package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/lucasew/assetcache/internal/errutil"
	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Evict assets until the cache fits its limits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		defer func() {
			errutil.LogMsg(client.Close(), "Failed to close cache client")
		}()

		report, err := client.Prune(cmd.Context())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "evicted %d assets, freed %s, %s remaining\n",
			report.Evicted, humanize.IBytes(uint64(report.FreedBytes)), humanize.IBytes(uint64(report.Remaining)))
		return err
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}
