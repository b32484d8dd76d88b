package syntax

import (
	"cmp"
	"slices"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"go.gopad.dev/go-tree-sitter-syntax/query"
)

type sortKey struct {
	start   uint
	depth   uint
	pattern uint
	order   int
}

// compare compares the current sortKey (k) with another sortKey (other).
// Captures are ordered by start byte, deeper layers first, then by pattern
// index and finally by the pre-order position of their layer.
//
// Returns:
//
// -1 if other is greater
//
//	1 if k is greater
//
// 0 if both are equal
func (k sortKey) compare(other sortKey) int {
	if k.start < other.start {
		return -1
	}
	if k.start > other.start {
		return 1
	}

	if k.depth > other.depth {
		return -1
	}
	if k.depth < other.depth {
		return 1
	}

	if k.pattern < other.pattern {
		return -1
	}
	if k.pattern > other.pattern {
		return 1
	}

	return cmp.Compare(k.order, other.order)
}

func (k sortKey) greaterThan(other sortKey) bool {
	return k.compare(other) == 1
}

func (k sortKey) lessThan(other sortKey) bool {
	return k.compare(other) == -1
}

// iterLayer is the capture cursor of one layer with a one capture lookahead.
type iterLayer struct {
	layer    *Layer
	order    int
	captures *query.CaptureCursor
	peeked   *query.Capture

	// injections are the ranges of the layer's children, sorted by start.
	injections []tree_sitter.Range
	injection  int
}

func (f *Forest) newIterLayer(l *Layer, order int, q *query.Query, start, end uint) *iterLayer {
	return &iterLayer{
		layer:      l,
		order:      order,
		captures:   q.Captures(l.tree.RootNode(), f.text, query.WithByteRange(start, end), query.WithMatchLimit(f.opts.matchLimit)),
		injections: f.injectionRanges(l),
	}
}

// injectionRanges returns the ranges of the children of l sorted by start.
func (f *Forest) injectionRanges(l *Layer) []tree_sitter.Range {
	var injections []tree_sitter.Range
	for _, id := range l.children {
		if child := f.Layer(id); child != nil {
			injections = append(injections, child.ranges...)
		}
	}
	slices.SortFunc(injections, func(a, b tree_sitter.Range) int {
		return cmp.Compare(a.StartByte, b.StartByte)
	})
	return injections
}

// occludedBy reports whether [start, end) starts inside one of the sorted
// injections and does not extend past it.
func occludedBy(injections []tree_sitter.Range, start, end uint) bool {
	i, _ := slices.BinarySearchFunc(injections, start, func(r tree_sitter.Range, start uint) int {
		return cmp.Compare(r.StartByte, start)
	})
	if i == 0 {
		return false
	}
	r := injections[i-1]
	return r.StartByte < start && end <= r.EndByte
}

func (l *iterLayer) peek() (query.Capture, bool) {
	if l.peeked != nil {
		return *l.peeked, true
	}

	for {
		c, ok := l.captures.Next()
		if !ok {
			return query.Capture{}, false
		}
		if c.StartByte() == c.EndByte() || l.occluded(c) {
			continue
		}
		l.peeked = &c
		return c, true
	}
}

func (l *iterLayer) next() (query.Capture, bool) {
	c, ok := l.peek()
	l.peeked = nil
	return c, ok
}

// occluded reports whether c starts inside an injected child and does not
// extend past it. Captures starting at the injection start are kept.
func (l *iterLayer) occluded(c query.Capture) bool {
	start, end := c.StartByte(), c.EndByte()
	for l.injection+1 < len(l.injections) && l.injections[l.injection+1].StartByte < start {
		l.injection++
	}
	if l.injection >= len(l.injections) {
		return false
	}

	r := l.injections[l.injection]
	return r.StartByte < start && end <= r.EndByte
}

func (l *iterLayer) sortKey() (sortKey, bool) {
	c, ok := l.peek()
	if !ok {
		return sortKey{}, false
	}
	return sortKey{
		start:   c.StartByte(),
		depth:   l.layer.depth,
		pattern: c.PatternIndex,
		order:   l.order,
	}, true
}
