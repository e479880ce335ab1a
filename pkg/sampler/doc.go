// Package sampler produces spatial layers from analytic datasets.
//
// A dataset is a TOML file that declares a bounding box, the physical size of
// its code length, a simulation time and a set of field profiles. Sampling a
// [selection.Region] evaluates each requested field on a regular 3-D grid;
// sampling a [selection.Slice] evaluates it on a plane through the box. Each
// field becomes one [layer.Spatial] carrying the domain it was sampled from,
// ready for placement by package align.
//
// Example dataset:
//
//	name = "collapse"
//	time = 0.5
//	length_unit = "kpc"
//	code_length = 2.0
//
//	[domain]
//	left_edge = { value = [0.0, 0.0, 0.0], unit = "code_length" }
//	right_edge = { value = [1.0, 1.0, 1.0], unit = "code_length" }
//
//	[[fields]]
//	field_type = "gas"
//	field_name = "density"
//	profile = "gaussian"
//	amplitude = 100.0
//	width = 0.1
//	take_log = true
//
// A [Loader] reads datasets, optionally keeps them in memory, and stores
// sampled arrays in a [cache.Cache].
package sampler
