package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/domainstack/pkg/cache"
)

// cacheCommand creates the cache command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the local sample cache",
		Long: `Inspect and clear the local sample cache.

Sampled arrays and placement exports are kept under $XDG_CACHE_HOME/domainstack.
Entries in a redis cache (DOMAINSTACK_REDIS_ADDR) expire on their own.`,
	}
	cmd.AddCommand(c.cacheInfoCommand(), c.cacheClearCommand(), c.cachePathCommand())
	return cmd
}

// openFileCache opens the local cache, or returns nil when it does not exist.
func openFileCache() (*cache.FileCache, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, fmt.Errorf("locate cache: %w", err)
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	return cache.NewFileCache(dir)
}

func (c *CLI) cacheInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show how many entries the cache holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := openFileCache()
			if err != nil || fc == nil {
				if err == nil {
					printInfo("Cache is empty")
				}
				return err
			}
			st, err := fc.Stats(cmd.Context())
			if err != nil {
				return err
			}
			printKeyValue("Directory", fc.Dir())
			printKeyValue("Entries", strconv.Itoa(st.Entries))
			printKeyValue("Size", formatBytes(st.Bytes))
			if st.Expired > 0 {
				printKeyValue("Expired", strconv.Itoa(st.Expired))
				printNextStep("Remove them", "domainstack cache clear --expired")
			}
			return nil
		},
	}
}

func (c *CLI) cacheClearCommand() *cobra.Command {
	var expired bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached samples and compositions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := openFileCache()
			if err != nil || fc == nil {
				if err == nil {
					printInfo("Cache is empty")
				}
				return err
			}

			var n int
			if expired {
				n, err = fc.Prune(cmd.Context())
			} else {
				n, err = fc.Clear(cmd.Context())
			}
			if err != nil {
				return err
			}
			printSuccess("Removed %d cached entries", n)
			printDetail("Directory: %s", fc.Dir())
			if os.Getenv(envRedisAddr) != "" {
				printWarning("Redis entries are not cleared")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&expired, "expired", false, "only remove expired or unreadable entries")
	return cmd
}

func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cacheDir()
			if err != nil {
				return fmt.Errorf("locate cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}
