package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/domainstack/pkg/buildinfo"
	"github.com/matzehuels/domainstack/pkg/cache"
	"github.com/matzehuels/domainstack/pkg/observability"
	"github.com/matzehuels/domainstack/pkg/pipeline"
	"github.com/matzehuels/domainstack/pkg/scene"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "domainstack"

	// envRedisAddr selects a shared redis sample cache.
	envRedisAddr = "DOMAINSTACK_REDIS_ADDR"

	// envMongoURI selects a mongo scene store.
	envMongoURI = "DOMAINSTACK_MONGO_URI"
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level. At debug level pipeline and cache
// events are logged through observability hooks.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
	if level <= log.DebugLevel {
		hooks := observability.NewLogHooks(c.Logger)
		observability.SetPipelineHooks(hooks)
		observability.SetCacheHooks(hooks)
	}
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:          appName,
		Short:        "domainstack places sampled simulation volumes on one canvas",
		Long:         `domainstack samples regions and slices of simulation datasets and computes the scale and translation that place every sample on a shared canvas, so layers of different extents and resolutions line up.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				c.SetLogLevel(LogDebug)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.composeCommand())
	root.AddCommand(c.pickCommand())
	root.AddCommand(c.sceneCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, noCache, inMemory bool) (*pipeline.Runner, error) {
	cache, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	r := pipeline.NewRunner(cache, nil, c.Logger)
	r.Loader.InMemory = inMemory
	return r, nil
}

// newCache returns a redis cache when DOMAINSTACK_REDIS_ADDR is set and a
// file cache under the XDG cache directory otherwise.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	if addr := os.Getenv(envRedisAddr); addr != "" {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: addr})
		if err != nil {
			return nil, err
		}
		c.Logger.Debug("using redis cache", "addr", addr)
		return rc, nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// newStore returns a mongo scene store when DOMAINSTACK_MONGO_URI is set and
// a file store under the XDG config directory otherwise.
func (c *CLI) newStore(ctx context.Context) (scene.Store, error) {
	if uri := os.Getenv(envMongoURI); uri != "" {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		c.Logger.Debug("using mongo scene store")
		return scene.NewMongoStore(ctx, scene.MongoConfig{URI: uri})
	}
	dir, err := scene.DefaultDir()
	if err != nil {
		return nil, err
	}
	return scene.NewFileStore(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/domainstack/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
