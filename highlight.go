package syntax

import (
	"cmp"
	"iter"
	"slices"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"go.gopad.dev/go-tree-sitter-syntax/query"
)

// CaptureSource yields captures ordered by start byte, such as a [QueryIter].
type CaptureSource interface {
	Next() (Capture, bool)
}

// Classifier maps a capture to its highlight. Captures it rejects are ignored.
type Classifier func(Capture) (Highlight, bool)

type activeHighlight struct {
	end       uint
	highlight Highlight
	capture   Capture
}

type resolvedCapture struct {
	capture   Capture
	highlight Highlight
	start     uint
	end       uint
}

// Resolver turns overlapping captures into a properly nested stream of
// highlight events partitioning a byte range.
//
// Captures sharing a start byte open enclosing first. For equal ranges in one
// layer an ancestor node opens before its descendants and a node captured by
// several patterns opens in pattern order, so the last pattern is innermost.
// An equal range captured in a shallower layer is dropped. A capture crossing
// the end of the enclosing highlight is clipped to it.
//
// A capture of a layer with several ranges only highlights the parts of its
// node inside those ranges; the text between them belongs to other layers.
type Resolver struct {
	src      CaptureSource
	start    uint
	end      uint
	classify Classifier

	pos       uint
	stack     []activeHighlight
	pending   *resolvedCapture
	lookahead *resolvedCapture
	deferred  []resolvedCapture
	exhausted bool
	queue     []Event
	done      bool
}

// NewResolver resolves the captures of src within [start, end).
func NewResolver(src CaptureSource, start, end uint, classify Classifier) *Resolver {
	return &Resolver{
		src:      src,
		start:    start,
		end:      max(start, end),
		classify: classify,
		pos:      start,
	}
}

func (r *Resolver) Next() (Event, bool) {
	for len(r.queue) == 0 {
		if r.done {
			return nil, false
		}
		r.step()
	}

	event := r.queue[0]
	r.queue = r.queue[1:]
	return event, true
}

// All yields the remaining events.
func (r *Resolver) All() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for {
			event, ok := r.Next()
			if !ok || !yield(event) {
				return
			}
		}
	}
}

func (r *Resolver) step() {
	group := r.nextGroup()
	if len(group) == 0 {
		for len(r.stack) > 0 {
			r.closeTop()
		}
		r.sourceTo(r.end)
		r.done = true
		return
	}

	start := group[0].start
	for len(r.stack) > 0 && r.stack[len(r.stack)-1].end <= start {
		r.closeTop()
	}
	r.sourceTo(start)

	for _, c := range orderGroup(group) {
		end := c.end
		if len(r.stack) > 0 {
			end = min(end, r.stack[len(r.stack)-1].end)
		}
		if end <= start {
			continue
		}

		r.stack = append(r.stack, activeHighlight{
			end:       end,
			highlight: c.highlight,
			capture:   c.capture,
		})
		r.queue = append(r.queue, EventStart{
			Pos:       start,
			Highlight: c.highlight,
			Capture:   c.capture.Name,
			Language:  c.capture.Layer.grammar.name,
			Layer:     c.capture.Layer.id,
			NodeID:    c.capture.Node.Id(),
		})
	}
}

func (r *Resolver) closeTop() {
	top := r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]

	r.sourceTo(top.end)
	r.queue = append(r.queue, EventEnd{
		Pos:       top.end,
		Highlight: top.highlight,
		Capture:   top.capture.Name,
		NodeID:    top.capture.Node.Id(),
	})
}

func (r *Resolver) sourceTo(pos uint) {
	if pos <= r.pos {
		return
	}
	r.queue = append(r.queue, EventSource{Start: r.pos, End: pos})
	r.pos = pos
}

// pull returns the next capture piece in start order. Pieces of a capture
// split at layer range boundaries wait in deferred until the source catches
// up with them.
func (r *Resolver) pull() (resolvedCapture, bool) {
	if r.pending != nil {
		c := *r.pending
		r.pending = nil
		return c, true
	}

	for r.lookahead == nil {
		c, ok := r.read()
		if !ok {
			break
		}
		pieces := r.split(c)
		if len(pieces) == 0 {
			continue
		}
		r.lookahead = &pieces[0]
		r.deferred = append(r.deferred, pieces[1:]...)
		slices.SortStableFunc(r.deferred, func(a, b resolvedCapture) int {
			return cmp.Compare(a.start, b.start)
		})
	}

	if len(r.deferred) > 0 && (r.lookahead == nil || r.deferred[0].start < r.lookahead.start) {
		c := r.deferred[0]
		r.deferred = r.deferred[1:]
		return c, true
	}
	if r.lookahead == nil {
		return resolvedCapture{}, false
	}
	c := *r.lookahead
	r.lookahead = nil
	return c, true
}

// read returns the next classified capture clamped to the resolver range.
func (r *Resolver) read() (resolvedCapture, bool) {
	for !r.exhausted {
		c, ok := r.src.Next()
		if !ok || c.StartByte() >= r.end {
			r.exhausted = true
			break
		}

		highlight, ok := r.classify(c)
		if !ok {
			continue
		}
		start, end := max(c.StartByte(), r.start), min(c.EndByte(), r.end)
		if start >= end {
			continue
		}
		return resolvedCapture{
			capture:   c,
			highlight: highlight,
			start:     start,
			end:       end,
		}, true
	}
	return resolvedCapture{}, false
}

// split cuts c at the range boundaries of its layer.
func (r *Resolver) split(c resolvedCapture) []resolvedCapture {
	rs := c.capture.Layer.ranges
	if len(rs) <= 1 {
		return []resolvedCapture{c}
	}

	i, _ := slices.BinarySearchFunc(rs, c.start, func(rng tree_sitter.Range, start uint) int {
		if rng.EndByte <= start {
			return -1
		}
		return 1
	})

	var pieces []resolvedCapture
	for _, rng := range rs[i:] {
		if rng.StartByte >= c.end {
			break
		}
		start, end := max(c.start, rng.StartByte), min(c.end, rng.EndByte)
		if start >= end {
			continue
		}
		piece := c
		piece.start, piece.end = start, end
		pieces = append(pieces, piece)
	}
	return pieces
}

// nextGroup returns the captures sharing the next start byte.
func (r *Resolver) nextGroup() []resolvedCapture {
	first, ok := r.pull()
	if !ok {
		return nil
	}

	group := []resolvedCapture{first}
	for {
		c, ok := r.pull()
		if !ok {
			break
		}
		if c.start != first.start {
			r.pending = &c
			break
		}
		group = append(group, c)
	}
	return group
}

func orderGroup(group []resolvedCapture) []resolvedCapture {
	slices.SortStableFunc(group, func(a, b resolvedCapture) int {
		if a.end != b.end {
			return cmp.Compare(b.end, a.end)
		}
		if a.capture.Layer != b.capture.Layer {
			return cmp.Compare(a.capture.Layer.depth, b.capture.Layer.depth)
		}
		if a.capture.Node.Id() == b.capture.Node.Id() {
			return cmp.Compare(a.capture.PatternIndex, b.capture.PatternIndex)
		}
		if isAncestor(a.capture.Node, b.capture.Node) {
			return -1
		}
		if isAncestor(b.capture.Node, a.capture.Node) {
			return 1
		}
		return 0
	})

	deepest := make(map[uint]uint, len(group))
	for _, c := range group {
		deepest[c.end] = max(deepest[c.end], c.capture.Layer.depth)
	}
	return slices.DeleteFunc(group, func(c resolvedCapture) bool {
		return c.capture.Layer.depth < deepest[c.end]
	})
}

func isAncestor(ancestor tree_sitter.Node, node tree_sitter.Node) bool {
	id := ancestor.Id()
	for parent := node.Parent(); parent != nil; parent = parent.Parent() {
		if parent.Id() == id {
			return true
		}
	}
	return false
}

func highlightsQuery(l *Layer) *query.Query {
	return l.grammar.highlights
}

// classifyHighlight maps a highlight query capture to its highlight. A
// `@local.reference` takes the highlight of the definition it refers to and
// patterns marked `(#is-not? local)` ignore locals.
func (f *Forest) classifyHighlight(c Capture) (Highlight, bool) {
	g, ls := c.Layer.grammar, c.Layer.locals
	if isCapture(g.localReferenceCaptureIndex, c.Index) {
		if ls == nil {
			return 0, false
		}
		def, ok := ls.reference(string(f.text[c.StartByte():c.EndByte()]), c.StartByte())
		if !ok || def.highlight == nil {
			return 0, false
		}
		return *def.highlight, true
	}

	if ls != nil && c.PatternIndex < uint(len(g.nonLocalPatterns)) && g.nonLocalPatterns[c.PatternIndex] {
		if ls.defined(string(f.text[c.StartByte():c.EndByte()]), c.StartByte()) {
			return 0, false
		}
	}
	return g.HighlightFor(c.Index)
}

// Highlight resolves the highlight queries of every layer in [start, end)
// into a single event stream. Breaking out of the loop releases the cursors.
func (f *Forest) Highlight(start, end uint) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		stop := min(end, f.Len())
		it := f.Query(highlightsQuery, start, stop)
		defer it.Close()

		for event := range NewResolver(it, start, stop, f.classifyHighlight).All() {
			if !yield(event) {
				return
			}
		}
	}
}
