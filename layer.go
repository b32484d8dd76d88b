package syntax

import (
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"go.gopad.dev/go-tree-sitter-syntax/internal/ranges"
)

// LayerID is a stable handle to a layer of a [Forest]. Handles of removed
// layers never resolve again, even when their slot is reused.
type LayerID struct {
	index   uint32
	version uint32
}

func (id LayerID) String() string {
	return fmt.Sprintf("%d.%d", id.index, id.version)
}

// LayerState tracks a layer through a reparse.
//
//	Fresh -> Stale -> Reparsing -> Fresh
//	any   -> Invalidated
type LayerState uint8

const (
	// LayerFresh layers have a tree matching the current text.
	LayerFresh LayerState = iota
	// LayerStale layers had their ranges touched by an edit or were just created.
	LayerStale
	// LayerReparsing layers are being parsed.
	LayerReparsing
	// LayerInvalidated layers were removed from the forest.
	LayerInvalidated
)

func (s LayerState) String() string {
	switch s {
	case LayerFresh:
		return "fresh"
	case LayerStale:
		return "stale"
	case LayerReparsing:
		return "reparsing"
	case LayerInvalidated:
		return "invalidated"
	default:
		return fmt.Sprintf("LayerState(%d)", int(s))
	}
}

// Layer is one parse tree of a [Forest] covering a set of byte ranges in a
// single grammar.
type Layer struct {
	id        LayerID
	grammar   *Grammar
	parent    LayerID
	hasParent bool
	children  []LayerID
	ranges    []tree_sitter.Range
	tree      *tree_sitter.Tree
	depth     uint
	combined  bool
	state     LayerState

	generation uint64
	// fingerprint of the text under ranges when the injection query last ran.
	fingerprint [32]byte
	injected    bool
	locals      *locals
}

func (l *Layer) ID() LayerID {
	return l.id
}

func (l *Layer) Grammar() *Grammar {
	return l.grammar
}

// Parent returns the parent handle. ok is false for the root layer.
func (l *Layer) Parent() (id LayerID, ok bool) {
	return l.parent, l.hasParent
}

func (l *Layer) Children() []LayerID {
	return l.children
}

// Ranges returns the ordered, disjoint byte ranges of the layer.
func (l *Layer) Ranges() []tree_sitter.Range {
	return l.ranges
}

// Tree returns the current syntax tree. It is nil when the last parse of the
// root layer failed.
func (l *Layer) Tree() *tree_sitter.Tree {
	return l.tree
}

func (l *Layer) Depth() uint {
	return l.depth
}

// Combined reports whether the layer was created from an injection.combined
// pattern.
func (l *Layer) Combined() bool {
	return l.combined
}

func (l *Layer) State() LayerState {
	return l.state
}

// Generation counts the successful parses of the layer.
func (l *Layer) Generation() uint64 {
	return l.generation
}

func (l *Layer) intersects(start, end uint) bool {
	return ranges.Intersects(l.ranges, start, end)
}

func (l *Layer) contains(start, end uint) bool {
	for _, r := range l.ranges {
		if r.StartByte <= start && end <= r.EndByte {
			return true
		}
	}
	return false
}

func (l *Layer) String() string {
	start, end, _ := ranges.Hull(l.ranges)
	return fmt.Sprintf("%s[%s %d..%d]", l.grammar.name, l.id, start, end)
}
