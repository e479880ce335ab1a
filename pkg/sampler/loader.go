package sampler

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/domainstack/pkg/cache"
	"github.com/matzehuels/domainstack/pkg/layer"
	"github.com/matzehuels/domainstack/pkg/ndarray"
	"github.com/matzehuels/domainstack/pkg/observability"
	"github.com/matzehuels/domainstack/pkg/selection"
)

// Loader reads datasets and samples them, caching at two levels: parsed
// datasets in memory (when InMemory is set) and sampled arrays in Cache.
// A Loader is safe for concurrent use.
type Loader struct {
	Cache    cache.Cache
	Keyer    cache.Keyer
	Logger   *log.Logger
	InMemory bool

	mu       sync.Mutex
	datasets map[string]*Dataset
}

// NewLoader creates a loader. A nil cache disables array caching, a nil
// keyer selects the default keyer and a nil logger discards output.
func NewLoader(c cache.Cache, keyer cache.Keyer, logger *log.Logger, inMemory bool) *Loader {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Loader{
		Cache:    c,
		Keyer:    keyer,
		Logger:   logger,
		InMemory: inMemory,
		datasets: make(map[string]*Dataset),
	}
}

// Load returns the dataset at path.
func (l *Loader) Load(path string) (*Dataset, error) {
	if l.InMemory {
		l.mu.Lock()
		ds, ok := l.datasets[path]
		l.mu.Unlock()
		if ok {
			l.Logger.Debug("using in-memory dataset", "path", path)
			return ds, nil
		}
	}

	ds, unknown, err := ReadDataset(path)
	if err != nil {
		return nil, err
	}
	if len(unknown) > 0 {
		l.Logger.Warn("ignoring unknown dataset keys", "path", path, "keys", unknown)
	}
	l.Logger.Debug("loaded dataset", "path", path, "name", ds.Name, "fields", len(ds.Profiles))

	if l.InMemory {
		l.mu.Lock()
		l.datasets[path] = ds
		l.mu.Unlock()
	}
	return ds, nil
}

// Forget drops every in-memory dataset.
func (l *Loader) Forget() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.datasets)
}

// Sample loads the dataset at path and samples every field of sel.
func (l *Loader) Sample(ctx context.Context, path string, sel selection.Selection) ([]layer.Spatial, error) {
	ds, err := l.Load(path)
	if err != nil {
		return nil, err
	}
	return l.SampleDataset(ctx, ds, sel)
}

// SampleDataset samples every field of sel from ds, reading and writing
// sampled arrays through the loader's cache.
func (l *Loader) SampleDataset(ctx context.Context, ds *Dataset, sel selection.Selection) ([]layer.Spatial, error) {
	if _, ok := l.Cache.(cache.NullCache); ok {
		return ds.Sample(sel)
	}

	start := time.Now()
	g, err := ds.plan(sel)
	if err != nil {
		return nil, err
	}
	out := make([]layer.Spatial, 0, len(sel.FieldList()))
	hits := 0
	for _, f := range sel.FieldList() {
		isLog, err := ds.TakeLog(f)
		if err != nil {
			return nil, err
		}
		// key on the resolved take_log flag
		kf := f
		kf.TakeLog = &isLog
		key := l.Keyer.SampleKey(ds.Path+"@"+ds.Hash, sel, kf)

		data, hit := l.cached(ctx, key)
		if hit {
			hits++
		} else {
			if data, _, err = ds.evaluate(g, f); err != nil {
				return nil, err
			}
			l.store(ctx, key, data)
		}

		s, err := ds.newLayer(g, f, data, isLog)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	l.Logger.Debug("sampled selection",
		"dataset", ds.Name,
		"kind", sel.Kind(),
		"fields", len(out),
		"cache_hits", hits,
		"duration", time.Since(start))
	return out, nil
}

func (l *Loader) cached(ctx context.Context, key string) (ndarray.Array, bool) {
	raw, hit, err := l.Cache.Get(ctx, key)
	if err != nil {
		l.Logger.Warn("sample cache read failed", "err", err)
		return nil, false
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, "sample")
		return nil, false
	}
	var d ndarray.Dense
	if err := d.UnmarshalBinary(raw); err != nil {
		l.Logger.Warn("discarding corrupt sample cache entry", "err", err)
		_ = l.Cache.Delete(ctx, key)
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, "sample")
	return &d, true
}

func (l *Loader) store(ctx context.Context, key string, data ndarray.Array) {
	d, err := data.Compute()
	if err != nil {
		return
	}
	raw, err := d.MarshalBinary()
	if err != nil {
		return
	}
	if err := l.Cache.Set(ctx, key, raw, cache.TTLSample); err != nil {
		l.Logger.Warn("sample cache write failed", "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "sample", len(raw))
}
