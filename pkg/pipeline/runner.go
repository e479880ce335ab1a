package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/domainstack/pkg/align"
	"github.com/matzehuels/domainstack/pkg/cache"
	dsio "github.com/matzehuels/domainstack/pkg/io"
	"github.com/matzehuels/domainstack/pkg/layer"
	"github.com/matzehuels/domainstack/pkg/observability"
	"github.com/matzehuels/domainstack/pkg/sampler"
	"github.com/matzehuels/domainstack/pkg/selection"
	"github.com/matzehuels/domainstack/pkg/timeseries"
)

// Runner executes runs with caching. The CLI and the server both use it.
//
// A Runner holds no per-run state; multiple goroutines may call Execute
// concurrently.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
	Loader *sampler.Loader
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
		Loader: sampler.NewLoader(c, keyer, logger, false),
	}
}

// Sampled is the result of sampling one (file, selection) pair.
type Sampled struct {
	Path      string
	Selection selection.Selection

	// Series is the index of the timeseries entry, or -1 for a dataset.
	Series int

	// Layers holds one sample per selected field, in field order.
	Layers []layer.Spatial
}

// Execute samples, composes and groups everything desc names.
func (r *Runner) Execute(ctx context.Context, desc *dsio.Description, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}

	result := &Result{}

	// Stage 1: Sample
	sampleStart := time.Now()
	sampled, err := r.Sample(ctx, desc, opts)
	if err != nil {
		return nil, err
	}
	result.Stats.SampleTime = time.Since(sampleStart)

	var toCompose []layer.Spatial
	groupings := make(map[int]*timeseries.Grouping)
	for _, sm := range sampled {
		result.Samples = append(result.Samples, sm.Layers...)
		if sm.Series >= 0 && desc.Timeseries[sm.Series].LoadAsStack {
			g, ok := groupings[sm.Series]
			if !ok {
				g = timeseries.NewGrouping()
				groupings[sm.Series] = g
			}
			for k, f := range sm.Selection.FieldList() {
				g.Add(sm.Selection, f, sm.Layers[k])
			}
			continue
		}
		toCompose = append(toCompose, sm.Layers...)
	}
	result.Stats.Samples = len(result.Samples)

	opts.Logger.Info("sampled datasets",
		"files", countFiles(sampled),
		"layers", result.Stats.Samples,
		"duration", result.Stats.SampleTime)

	// Stage 2: Compose
	if len(toCompose) > 0 {
		copts := opts.ComposeOptions()
		if opts.ChooseReference != nil && copts.Mode == align.ModeReference {
			idx, err := opts.ChooseReference(toCompose)
			if err != nil {
				return nil, fmt.Errorf("choose reference: %w", err)
			}
			copts.ReferenceIndex = &idx
		}
		alignStart := time.Now()
		observability.Pipeline().OnAlignStart(ctx, opts.Mode, len(toCompose))
		comp, err := align.Compose(toCompose, copts)
		result.Stats.AlignTime = time.Since(alignStart)
		observability.Pipeline().OnAlignComplete(ctx, opts.Mode, result.Stats.AlignTime, err)
		if err != nil {
			return nil, fmt.Errorf("compose: %w", err)
		}
		result.Composition = comp
		result.Layers = append(result.Layers, comp.Layers...)

		opts.Logger.Info("placed layers",
			"mode", opts.Mode,
			"layers", len(comp.Layers),
			"duration", result.Stats.AlignTime)
	}

	// Stage 3: Group
	for i := range desc.Timeseries {
		g, ok := groupings[i]
		if !ok {
			continue
		}
		groupStart := time.Now()
		stacks, err := g.ConcatenateAll()
		if err != nil {
			return nil, fmt.Errorf("stack timeseries %d: %w", i, err)
		}
		d := time.Since(groupStart)
		result.Stats.GroupTime += d
		result.Stats.Stacks += len(stacks)
		result.Layers = append(result.Layers, stacks...)
		observability.Pipeline().OnGroupComplete(ctx, g.Len(), len(g.Flat()), d)

		opts.Logger.Info("stacked timeseries",
			"index", i,
			"groups", g.Len(),
			"samples", len(g.Flat()))
	}

	return result, nil
}

// Sample samples every (file, selection) pair of desc, at most
// opts.Concurrency at a time. Results keep description order.
func (r *Runner) Sample(ctx context.Context, desc *dsio.Description, opts Options) ([]Sampled, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	jobs, err := r.plan(desc)
	if err != nil {
		return nil, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i := range jobs {
		j := &jobs[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			observability.Pipeline().OnSampleStart(ctx, j.Path, 1)
			layers, err := r.Loader.Sample(ctx, j.Path, j.Selection)
			observability.Pipeline().OnSampleComplete(ctx, j.Path, len(layers), time.Since(start), err)
			if err != nil {
				return fmt.Errorf("sample %s: %w", j.Path, err)
			}
			j.Layers = layers
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return jobs, nil
}

// plan lists the pairs of desc in description order.
func (r *Runner) plan(desc *dsio.Description) ([]Sampled, error) {
	var jobs []Sampled
	for _, ds := range desc.Datasets {
		for _, sel := range ds.Selections.All() {
			jobs = append(jobs, Sampled{Path: ds.Filename, Selection: sel, Series: -1})
		}
	}
	for i, ts := range desc.Timeseries {
		files, err := ts.FileSelection.Find()
		if err != nil {
			return nil, fmt.Errorf("timeseries %d: %w", i, err)
		}
		r.Logger.Debug("found timeseries files", "index", i, "files", len(files))
		for _, f := range files {
			for _, sel := range ts.Selections.All() {
				jobs = append(jobs, Sampled{Path: f, Selection: sel, Series: i})
			}
		}
	}
	return jobs, nil
}

func countFiles(sampled []Sampled) int {
	seen := make(map[string]struct{}, len(sampled))
	for _, sm := range sampled {
		seen[sm.Path] = struct{}{}
	}
	return len(seen)
}

// ExecuteExport runs desc and returns its placement export, reading and
// writing the composition cache. The boolean reports a cache hit.
func (r *Runner) ExecuteExport(ctx context.Context, desc *dsio.Description, opts Options) (dsio.Export, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return dsio.Export{}, false, fmt.Errorf("invalid options: %w", err)
	}
	hash, err := desc.Hash()
	if err != nil {
		return dsio.Export{}, false, err
	}
	key := r.Keyer.CompositionKey(hash, opts.CompositionKeyOpts())

	if !opts.Refresh {
		data, hit, err := r.Cache.Get(ctx, key)
		if err == nil && hit {
			if e, err := dsio.ReadExport(bytes.NewReader(data)); err == nil {
				observability.Cache().OnCacheHit(ctx, "composition")
				return e, true, nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, "composition")
	}

	res, err := r.Execute(ctx, desc, opts)
	if err != nil {
		return dsio.Export{}, false, err
	}
	e := dsio.NewExport(align.Mode(opts.Mode), res.Composition, res.Layers)

	var buf bytes.Buffer
	if err := dsio.WriteExport(e, &buf); err == nil {
		if err := r.Cache.Set(ctx, key, buf.Bytes(), cache.TTLComposition); err == nil {
			observability.Cache().OnCacheSet(ctx, "composition", buf.Len())
		}
	}
	return e, false, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}
