package main

import (
	"fmt"

	"github.com/lucasew/assetcache/internal/errutil"
	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load <key>...",
	Short: "Revalidate keys and print their local paths",
	Long: `load sends every key to the remote store in a single request and prints
one line per key: the local path, or the error for that key.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		defer func() {
			errutil.LogMsg(client.Close(), "Failed to close cache client")
		}()

		res, err := client.LoadMany(cmd.Context(), args)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, a := range res.Assets {
			if a.Err != nil {
				_, _ = fmt.Fprintf(out, "%s\terror\t%v\n", a.Key, a.Err)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\t%s\n", a.Key, a.Status, a.Path)
		}
		if n := len(res.Errors()); n > 0 {
			return fmt.Errorf("%d of %d assets failed", n, len(res.Assets))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
}
