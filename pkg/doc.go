// Package pkg holds the libraries behind domainstack.
//
// domainstack samples regions and slices of simulation datasets and places
// every sample on one display canvas: each layer gets a scale and a
// translation so that layers of different extent, resolution and unit line
// up. Timeseries can instead be stacked along a leading time axis.
//
// # Data flow
//
//	description (JSON or TOML)
//	         ↓
//	    [io] parse, default and validate
//	         ↓
//	    [sampler] sample each (dataset, selection) pair, cached by [cache]
//	         ↓
//	    [align] place layers by reference frame or union bounds
//	         ↓
//	    [timeseries] stack grouped samples
//	         ↓
//	    [io] placement export, or a persisted [scene]
//
// [pipeline] runs this flow for the CLI and the HTTP server.
//
// # Packages
//
// [units] converts lengths, including the per-dataset code_length unit.
//
// [domain] describes a sampled box (Descriptor), the reference frame a batch
// is anchored to (ReferenceFrame) and the running union of many boxes
// (Accumulator).
//
// [selection] names the regions and slices to sample and the fields of each.
//
// [layer] carries sampled arrays with their display kwargs and metadata.
// [ndarray] is the n-dimensional array they hold.
//
// [scene] builds a composition up over several runs and stores it in files
// or MongoDB.
//
// [observability] exposes hooks for pipeline, cache and server events.
//
// [errors] defines the coded errors every package returns.
package pkg
