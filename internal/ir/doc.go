// Package ir provides the value model shared by every livecoll layer.
//
// Rows are IRObjects: string keys mapped to a small sealed set of value
// types. The package also owns canonical JSON (the only encoding used for
// stored rows and change fingerprints) and the schema types compiled from
// CUE by package schema.
//
// Key design constraints:
//   - NO float types anywhere - numbers are int64
//   - ir imports nothing internal; every other package imports ir
//   - Canonical output is byte-identical for equal values (NFC, sorted keys)
package ir
