package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/lucasew/assetcache"
	"github.com/lucasew/assetcache/internal/errutil"
	"github.com/lucasew/assetcache/internal/httpclient"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "assetcache",
	Short: "A local disk cache in front of a remote asset store",
	Long: `assetcache keeps a size-bounded local copy of assets held by a remote store,
revalidating them in batches and evicting the least recently used ones.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if _, printErr := fmt.Fprintln(os.Stderr, err); printErr != nil {
			errutil.ReportError(printErr, "Failed to print error to stderr")
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("base-url", "", "Base URL of the remote store API")
	flags.String("api-key", "", "API key sent as a bearer token")
	flags.String("project", "", "Project identifier")
	flags.String("bucket", "", "Bucket identifier")
	flags.String("cache-dir", "./cache", "Directory holding cached assets")
	flags.String("max-cache-size", "500MiB", "Max cache size, greater than zero (e.g. 500MiB, 2GB)")
	flags.String("min-free-space", "0", "Min free disk space to keep on the cache volume (0 disables)")
	flags.String("extension", assetcache.DefaultExtension, "File extension of cached assets")
	flags.String("algo", "", "Fingerprint algorithm (md5, sha256, sha512)")
	flags.String("eviction-strategy", assetcache.DefaultEvictionStrategy, "Eviction strategy to use (lru)")
	flags.String("index-path", "", "Optional sqlite access-time index, outside the cache dir")
	flags.Duration("timeout", assetcache.DefaultTimeout, "Timeout of each remote request")
	flags.String("ca-cert", "", "Extra PEM CA certificate to trust for the remote store")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")

	for _, name := range []string{
		"base-url", "api-key", "project", "bucket", "cache-dir", "max-cache-size",
		"min-free-space", "extension", "algo", "eviction-strategy", "index-path",
		"timeout", "ca-cert", "log-level",
	} {
		mustBindPFlag(name, flags.Lookup(name))
	}
}

func initConfig() {
	viper.SetEnvPrefix("ASSETCACHE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: errutil.ParseLevel(viper.GetString("log-level")),
	})
	slog.SetDefault(slog.New(handler))
}

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q: %v", key, err))
	}
}

func parseSize(key string) (int64, error) {
	raw := viper.GetString(key)
	n, err := humanize.ParseBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return int64(n), nil
}

// newClient builds a cache client from flags and ASSETCACHE_* variables.
func newClient() (*assetcache.Client, error) {
	maxSize, err := parseSize("max-cache-size")
	if err != nil {
		return nil, err
	}
	if maxSize == 0 {
		return nil, fmt.Errorf("max-cache-size must be greater than zero")
	}
	minFree, err := parseSize("min-free-space")
	if err != nil {
		return nil, err
	}

	timeout := viper.GetDuration("timeout")
	httpClient, err := httpclient.NewClient(viper.GetString("ca-cert"), timeout)
	if err != nil {
		return nil, err
	}

	return assetcache.New(assetcache.Config{
		BaseURL:          viper.GetString("base-url"),
		APIKey:           viper.GetString("api-key"),
		Project:          viper.GetString("project"),
		Bucket:           viper.GetString("bucket"),
		CacheDir:         viper.GetString("cache-dir"),
		MaxCacheSize:     maxSize,
		MinFreeSpace:     minFree,
		Extension:        viper.GetString("extension"),
		Algo:             viper.GetString("algo"),
		EvictionStrategy: viper.GetString("eviction-strategy"),
		IndexPath:        viper.GetString("index-path"),
		Timeout:          timeout,
		HTTPClient:       httpClient,
	})
}
