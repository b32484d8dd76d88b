package syntax

import (
	"cmp"
	"slices"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"go.gopad.dev/go-tree-sitter-syntax/query"
)

// TextObject is a structural region found by a text object query, for example
// a function body or the parameters of a call. Quantified captures such as
// `(comment)+ @comment.around` group all their nodes into one object.
type TextObject struct {
	Layer LayerID
	Nodes []tree_sitter.Node
}

// Grouped reports whether the object spans several nodes.
func (o TextObject) Grouped() bool {
	return len(o.Nodes) > 1
}

func (o TextObject) StartByte() uint {
	return o.Nodes[0].StartByte()
}

func (o TextObject) EndByte() uint {
	return o.Nodes[len(o.Nodes)-1].EndByte()
}

// TextObjects returns the nodes captured as captureName by the queries chosen
// by selector in [start, end), one object per match, ordered by start byte.
// Matches of a layer inside one of its injected children are skipped.
func (f *Forest) TextObjects(selector QuerySelector, captureName string, start, end uint) []TextObject {
	var objects []TextObject
	for _, l := range f.LayersInRange(start, end) {
		q := selector(l)
		if q == nil || l.tree == nil {
			continue
		}
		index, ok := q.CaptureIndex(captureName)
		if !ok {
			continue
		}

		injections := f.injectionRanges(l)
		cursor := q.Matches(l.tree.RootNode(), f.text, query.WithByteRange(start, end), query.WithMatchLimit(f.opts.matchLimit))
		for match := range cursor.All() {
			nodes := match.Nodes(index)
			if len(nodes) == 0 {
				continue
			}
			o := TextObject{Layer: l.id, Nodes: nodes}
			if occludedBy(injections, o.StartByte(), o.EndByte()) {
				continue
			}
			objects = append(objects, o)
		}
	}

	slices.SortStableFunc(objects, func(a, b TextObject) int {
		return cmp.Compare(a.StartByte(), b.StartByte())
	})
	return objects
}
