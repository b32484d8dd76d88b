package query

import (
	"iter"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// DefaultMatchLimit caps the number of in-progress matches a cursor tracks.
const DefaultMatchLimit = 256

// CursorOption configures a cursor created by [Query.Captures] or [Query.Matches].
type CursorOption func(*cursorOptions)

type cursorOptions struct {
	start, end uint
	ranged     bool
	matchLimit uint
}

// WithByteRange restricts a cursor to nodes intersecting [start, end).
func WithByteRange(start, end uint) CursorOption {
	return func(o *cursorOptions) {
		o.start, o.end = start, end
		o.ranged = true
	}
}

// WithMatchLimit overrides [DefaultMatchLimit]. Zero keeps the default.
func WithMatchLimit(limit uint) CursorOption {
	return func(o *cursorOptions) {
		if limit > 0 {
			o.matchLimit = limit
		}
	}
}

// Capture is a single captured node.
type Capture struct {
	Node         tree_sitter.Node
	Index        uint
	Name         string
	PatternIndex uint
	MatchID      uint
}

func (c Capture) StartByte() uint {
	return c.Node.StartByte()
}

func (c Capture) EndByte() uint {
	return c.Node.EndByte()
}

// Match is a complete match of one pattern.
type Match struct {
	ID           uint
	PatternIndex uint
	Captures     []Capture
}

// Nodes returns every node captured under index, in capture order.
func (m Match) Nodes(index uint) []tree_sitter.Node {
	var nodes []tree_sitter.Node
	for _, c := range m.Captures {
		if c.Index == index {
			nodes = append(nodes, c.Node)
		}
	}
	return nodes
}

type cursor struct {
	query     *Query
	source    []byte
	ts        *tree_sitter.QueryCursor
	closed    bool
	truncated bool
}

func (q *Query) newCursor(source []byte, opts []CursorOption) *cursor {
	o := cursorOptions{matchLimit: DefaultMatchLimit}
	for _, opt := range opts {
		opt(&o)
	}

	ts := tree_sitter.NewQueryCursor()
	ts.SetMatchLimit(o.matchLimit)
	if o.ranged {
		ts.SetByteRange(o.start, o.end)
	}

	return &cursor{
		query:  q,
		source: source,
		ts:     ts,
	}
}

func (c *cursor) capture(match *tree_sitter.QueryMatch, i uint) Capture {
	qc := match.Captures[i]
	return Capture{
		Node:         qc.Node,
		Index:        uint(qc.Index),
		Name:         c.query.captureNames[qc.Index],
		PatternIndex: match.PatternIndex,
		MatchID:      match.Id(),
	}
}

func (c *cursor) isTruncated() bool {
	if c.closed {
		return c.truncated
	}
	return c.ts.DidExceedMatchLimit()
}

func (c *cursor) close() {
	if c.closed {
		return
	}
	c.truncated = c.ts.DidExceedMatchLimit()
	c.closed = true
	c.ts.Close()
}

// CaptureCursor yields captures in document order. It is single use.
//
// Captures are streamed before their match is complete, so a quantified
// capture may not report every node it matched. Use a [MatchCursor] when all
// nodes of a match are needed.
type CaptureCursor struct {
	c        *cursor
	captures tree_sitter.QueryCaptures
}

// Captures runs q over node and returns a cursor over its captures.
func (q *Query) Captures(node *tree_sitter.Node, source []byte, opts ...CursorOption) *CaptureCursor {
	c := q.newCursor(source, opts)
	return &CaptureCursor{
		c:        c,
		captures: c.ts.Captures(q.ts, node, source),
	}
}

// Next returns the next capture whose match satisfies every predicate.
// Failing matches are removed so none of their other captures surface.
func (c *CaptureCursor) Next() (Capture, bool) {
	if c.c.closed {
		return Capture{}, false
	}
	for {
		match, index := c.captures.Next()
		if match == nil {
			c.c.close()
			return Capture{}, false
		}
		if !c.c.query.satisfies(match, c.c.source) {
			match.Remove()
			continue
		}
		return c.c.capture(match, index), true
	}
}

// All yields the remaining captures and closes the cursor when done.
func (c *CaptureCursor) All() iter.Seq[Capture] {
	return func(yield func(Capture) bool) {
		defer c.Close()
		for {
			capture, ok := c.Next()
			if !ok || !yield(capture) {
				return
			}
		}
	}
}

// Truncated reports whether the cursor dropped matches because it exceeded
// its match limit.
func (c *CaptureCursor) Truncated() bool {
	return c.c.isTruncated()
}

func (c *CaptureCursor) Close() {
	c.c.close()
}

// MatchCursor yields complete matches in the order they finish.
type MatchCursor struct {
	c       *cursor
	matches tree_sitter.QueryMatches
}

// Matches runs q over node and returns a cursor over its matches.
func (q *Query) Matches(node *tree_sitter.Node, source []byte, opts ...CursorOption) *MatchCursor {
	c := q.newCursor(source, opts)
	return &MatchCursor{
		c:       c,
		matches: c.ts.Matches(q.ts, node, source),
	}
}

func (c *MatchCursor) Next() (Match, bool) {
	if c.c.closed {
		return Match{}, false
	}
	for {
		match := c.matches.Next()
		if match == nil {
			c.c.close()
			return Match{}, false
		}
		if !c.c.query.satisfies(match, c.c.source) {
			continue
		}

		m := Match{
			ID:           match.Id(),
			PatternIndex: match.PatternIndex,
			Captures:     make([]Capture, len(match.Captures)),
		}
		for i := range match.Captures {
			m.Captures[i] = c.c.capture(match, uint(i))
		}
		return m, true
	}
}

// All yields the remaining matches and closes the cursor when done.
func (c *MatchCursor) All() iter.Seq[Match] {
	return func(yield func(Match) bool) {
		defer c.Close()
		for {
			match, ok := c.Next()
			if !ok || !yield(match) {
				return
			}
		}
	}
}

func (c *MatchCursor) Truncated() bool {
	return c.c.isTruncated()
}

func (c *MatchCursor) Close() {
	c.c.close()
}
