package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/lucasew/assetcache/internal/errutil"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print cache occupancy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		defer func() {
			errutil.LogMsg(client.Close(), "Failed to close cache client")
		}()

		limit, err := parseSize("max-cache-size")
		if err != nil {
			return err
		}
		count, total, err := client.Usage(cmd.Context())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d assets, %s of %s\n",
			client.CacheDir(), count, humanize.IBytes(uint64(total)), humanize.IBytes(uint64(limit)))
		return err
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
