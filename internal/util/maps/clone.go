// Package maps holds map helpers shared by the page store and the
// designer state.
package maps

import stdmaps "maps"

// Clone returns a shallow clone of the input map.
// It returns nil for nil or empty input, so empty component data is
// stored as NULL and reads back as nil.
func Clone[K comparable, V any](m map[K]V) map[K]V {
	if len(m) == 0 {
		return nil
	}
	return stdmaps.Clone(m)
}
