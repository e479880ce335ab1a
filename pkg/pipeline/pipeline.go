// Package pipeline runs a composition end to end: it samples every dataset
// named by a description, places the samples on one canvas and stacks
// timeseries.
//
// This package is shared by the CLI and the HTTP server so both apply the
// same defaults and caching.
//
// # Architecture
//
// A run has three stages:
//
//  1. Sample: each (dataset file, selection) pair is sampled concurrently,
//     bounded by [Options.Concurrency]. Results keep description order.
//  2. Compose: dataset samples, and timeseries samples not loaded as a
//     stack, are placed by [align.Compose].
//  3. Group: timeseries loaded as a stack are grouped by selection and field
//     and each group is stacked along a new leading time axis.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	desc, err := io.ImportDescription("description.json")
//	if err != nil {
//	    return err
//	}
//	result, err := runner.Execute(ctx, desc, pipeline.Options{Mode: "bounds"})
package pipeline

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/domainstack/pkg/align"
	"github.com/matzehuels/domainstack/pkg/cache"
	"github.com/matzehuels/domainstack/pkg/domain"
	"github.com/matzehuels/domainstack/pkg/errors"
	"github.com/matzehuels/domainstack/pkg/layer"
	"github.com/matzehuels/domainstack/pkg/units"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Server
// =============================================================================

const (
	// DefaultMode is the default placement mode.
	DefaultMode = align.ModeReference

	// DefaultPolicy is the default reference selection policy.
	DefaultPolicy = align.PolicyFirstInList

	// DefaultConcurrency bounds how many selections are sampled at once.
	DefaultConcurrency = 4
)

// DefaultUnit is the default bounds-mode working unit.
const DefaultUnit = domain.DefaultUnit

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options configures a run. It supports JSON for server requests.
type Options struct {
	Mode          string        `json:"mode,omitempty"`
	Policy        string        `json:"policy,omitempty"`
	Unit          string        `json:"unit,omitempty"`
	SceneCenter   *units.Vector `json:"scene_center,omitempty"`
	PromoteSlices bool          `json:"promote_slices,omitempty"`
	Concurrency   int           `json:"concurrency,omitempty"`

	// Reference anchors reference mode to the composed sample at this index
	// and overrides Policy.
	Reference *int `json:"reference,omitempty"`

	// Refresh bypasses the composition cache.
	Refresh bool `json:"refresh,omitempty"`

	// ChooseReference, if set, is called with the samples to compose and
	// returns the reference index. It overrides Reference and Policy.
	ChooseReference func(samples []layer.Spatial) (int, error) `json:"-"`

	// Logger overrides the runner's logger for one run.
	Logger *log.Logger `json:"-"`
}

// SetDefaults fills in unset options.
func (o *Options) SetDefaults() {
	if o.Mode == "" {
		o.Mode = string(DefaultMode)
	}
	if o.Policy == "" {
		o.Policy = string(DefaultPolicy)
	}
	if o.Unit == "" {
		o.Unit = string(DefaultUnit)
	}
	if o.Concurrency == 0 {
		o.Concurrency = DefaultConcurrency
	}
}

// Validate checks every option. Call SetDefaults first.
func (o *Options) Validate() error {
	if _, err := align.ParseMode(o.Mode); err != nil {
		return err
	}
	if _, err := align.ParsePolicy(o.Policy); err != nil {
		return err
	}
	if _, err := units.Parse(o.Unit); err != nil {
		return err
	}
	if o.Concurrency < 1 {
		return errors.New(errors.ErrCodeInvalidInput, "concurrency must be at least 1, got %d", o.Concurrency)
	}
	if o.Reference != nil && *o.Reference < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "reference index must not be negative, got %d", *o.Reference)
	}
	if o.SceneCenter != nil {
		if _, err := units.Parse(string(o.SceneCenter.Unit)); err != nil {
			return fmt.Errorf("scene center: %w", err)
		}
	}
	return nil
}

// ValidateAndSetDefaults applies defaults and validates.
func (o *Options) ValidateAndSetDefaults() error {
	o.SetDefaults()
	return o.Validate()
}

// ComposeOptions converts o for align.Compose.
func (o *Options) ComposeOptions() align.Options {
	return align.Options{
		Mode:           align.Mode(o.Mode),
		Policy:         align.Policy(o.Policy),
		Unit:           units.Unit(o.Unit),
		SceneCenter:    o.SceneCenter,
		ReferenceIndex: o.Reference,
		PromoteSlices:  o.PromoteSlices,
	}
}

// CompositionKeyOpts returns the cache key options of o.
func (o *Options) CompositionKeyOpts() cache.CompositionKeyOpts {
	k := cache.CompositionKeyOpts{
		Mode:          o.Mode,
		Policy:        o.Policy,
		Unit:          o.Unit,
		PromoteSlices: o.PromoteSlices,
		Reference:     o.Reference,
	}
	if o.SceneCenter != nil {
		k.SceneCenter = o.SceneCenter.String()
	}
	return k
}

// =============================================================================
// Result
// =============================================================================

// Result contains the outputs of a run.
type Result struct {
	// Layers holds the composed layers in sample order followed by one
	// stacked layer per timeseries group.
	Layers []layer.Layer

	// Composition is nil when every sample was part of a stacked timeseries.
	Composition *align.Composition

	// Samples holds every sample in description order, before placement.
	Samples []layer.Spatial

	Stats Stats
}

// Stats contains run statistics.
type Stats struct {
	Samples    int
	Stacks     int
	SampleTime time.Duration
	AlignTime  time.Duration
	GroupTime  time.Duration
}
