// Package io reads composition descriptions and writes placement exports.
//
// # Description Format
//
// A description lists the datasets to sample and, optionally, timeseries of
// dataset files that sample the same selections at successive times. JSON
// and TOML are both accepted; [ImportDescription] picks the decoder by file
// extension.
//
//	{
//	  "datasets": [
//	    {
//	      "filename": "collapse.toml",
//	      "selections": {
//	        "regions": [{
//	          "fields": [{"field_type": "gas", "field_name": "density"}],
//	          "left_edge": {"value": [0.2, 0.2, 0.2], "unit": "code_length"},
//	          "right_edge": {"value": [0.8, 0.8, 0.8], "unit": "code_length"},
//	          "resolution": [64, 64, 64]
//	        }],
//	        "slices": [{
//	          "fields": [{"field_type": "gas", "field_name": "temperature", "take_log": true}],
//	          "normal": "z",
//	          "slice_width": {"value": 10, "unit": "kpc"}
//	        }]
//	      }
//	    }
//	  ],
//	  "timeseries": [
//	    {
//	      "file_selection": {"directory": "outputs", "file_pattern": "snap_*.toml", "file_range": [0, 10, 2]},
//	      "selections": {"slices": [{"fields": [{"field_type": "gas", "field_name": "density"}], "normal": "x"}]},
//	      "load_as_stack": true
//	    }
//	  ]
//	}
//
// Relative dataset file names and timeseries directories are resolved
// against the directory of the description file.
//
// # Placement Export
//
// [WriteExport] encodes the result of a composition: the placement mode, the
// reference frame or accumulated bounds, and per layer its name, shape,
// scale, translation, data range and log flag. Arrays are not exported.
package io
