// Package domain tracks the physical geometry of sampled layers and derives
// the pixel-space placement that puts them on one shared canvas.
//
// A [Descriptor] records one layer's extent and resolution. Placement can be
// anchored two ways:
//
//   - [ReferenceFrame]: one descriptor is frozen as the anchor; every other
//     layer is scaled by its grid width relative to the anchor's and
//     translated by its left-edge offset in anchor pixels.
//   - [Accumulator]: the union bounding box and the finest grid width are
//     accumulated over all layers; layers are scaled relative to the finest
//     pixel and translated from the box origin or a user-set scene center.
//
// Nothing in this package logs, blocks or synchronizes. An Accumulator must
// be owned by a single goroutine.
package domain
