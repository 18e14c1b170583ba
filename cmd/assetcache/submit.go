package main

import (
	"fmt"
	"os"
	"time"

	"github.com/lucasew/assetcache"
	"github.com/lucasew/assetcache/internal/errutil"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var submitCmd = &cobra.Command{
	Use:   "submit <file>...",
	Short: "Upload files to the remote store",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		defer func() {
			errutil.LogMsg(client.Close(), "Failed to close cache client")
		}()

		bar := progressbar.NewOptions(
			len(args),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("uploading"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(10),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionOnCompletion(func() {
				if _, err := fmt.Fprint(os.Stderr, "\n"); err != nil {
					errutil.LogMsg(err, "Failed to print newline to stderr")
				}
			}),
		)

		results := client.SubmitMany(cmd.Context(), args, viper.GetInt("parallel"),
			assetcache.WithProgress(func(assetcache.Submission) {
				errutil.LogMsg(bar.Add(1), "Failed to update progress bar")
			}),
		)

		failed := 0
		out := cmd.OutOrStdout()
		for _, r := range results {
			if r.Err != nil {
				failed++
				_, _ = fmt.Fprintf(out, "%s\terror\t%v\n", r.Path, r.Err)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\tok\t%s\n", r.Path, r.Ack)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d uploads failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().IntP("parallel", "p", assetcache.DefaultParallelism, "Max uploads in flight")
	mustBindPFlag("parallel", submitCmd.Flags().Lookup("parallel"))
}
