package syntax

import (
	"iter"
	"slices"

	"go.gopad.dev/go-tree-sitter-syntax/internal/ranges"
	"go.gopad.dev/go-tree-sitter-syntax/query"
)

// QuerySelector picks the query to run on a layer. Layers for which it
// returns nil are skipped.
type QuerySelector func(*Layer) *query.Query

// Capture is a capture of a layer query.
type Capture struct {
	query.Capture
	Layer *Layer
}

// QueryIter merges the captures of every layer in a byte range into one
// stream ordered by start byte, deeper layers first. It is single use and
// borrows the forest's trees until closed.
type QueryIter struct {
	layers []*iterLayer
	all    []*iterLayer
}

// Query runs the query chosen by selector over every layer intersecting
// [start, end).
func (f *Forest) Query(selector QuerySelector, start, end uint) *QueryIter {
	it := &QueryIter{}
	for order, l := range f.LayersInRange(start, end) {
		if l.tree == nil {
			continue
		}
		q := selector(l)
		if q == nil {
			continue
		}

		hullStart, hullEnd, ok := ranges.Hull(l.ranges)
		layerStart, layerEnd := max(hullStart, start), min(hullEnd, end)
		if !ok || layerStart >= layerEnd {
			continue
		}

		layer := f.newIterLayer(l, order, q, layerStart, layerEnd)
		it.all = append(it.all, layer)
		if _, ok := layer.peek(); ok {
			it.layers = append(it.layers, layer)
		}
	}

	slices.SortFunc(it.layers, func(a, b *iterLayer) int {
		ka, _ := a.sortKey()
		kb, _ := b.sortKey()
		return ka.compare(kb)
	})
	return it
}

func (it *QueryIter) Next() (Capture, bool) {
	if len(it.layers) == 0 {
		return Capture{}, false
	}

	layer := it.layers[0]
	c, _ := layer.next()
	it.sortLayers()

	return Capture{Capture: c, Layer: layer.layer}, true
}

// All yields the remaining captures and closes the iterator when done.
func (it *QueryIter) All() iter.Seq[Capture] {
	return func(yield func(Capture) bool) {
		defer it.Close()
		for {
			c, ok := it.Next()
			if !ok || !yield(c) {
				return
			}
		}
	}
}

// Truncated reports whether any layer cursor exceeded its match limit.
func (it *QueryIter) Truncated() bool {
	for _, layer := range it.all {
		if layer.captures.Truncated() {
			return true
		}
	}
	return false
}

func (it *QueryIter) Close() {
	for _, layer := range it.all {
		layer.captures.Close()
	}
	it.layers = nil
}

// sortLayers moves the first layer to its position after its head changed.
// The other layers are already sorted.
func (it *QueryIter) sortLayers() {
	for len(it.layers) > 0 {
		key, ok := it.layers[0].sortKey()
		if !ok {
			it.layers[0].captures.Close()
			it.layers = it.layers[1:]
			continue
		}

		var i int
		for i+1 < len(it.layers) {
			nextKey, _ := it.layers[i+1].sortKey()
			if key.greaterThan(nextKey) {
				i++
				continue
			}
			break
		}
		if i > 0 {
			rotateLeft(it.layers[:i+1], 1)
		}
		return
	}
}

// rotateLeft rotates s in place so that s[mid] becomes the first element.
func rotateLeft[T any](s []T, mid int) []T {
	slices.Reverse(s[:mid])
	slices.Reverse(s[mid:])
	slices.Reverse(s)
	return s
}
