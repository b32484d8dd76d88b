package syntax

import (
	"cmp"
	"slices"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	"go.uber.org/zap"

	"go.gopad.dev/go-tree-sitter-syntax/internal/ranges"
	"go.gopad.dev/go-tree-sitter-syntax/query"
)

// injectionItem is a group of injection content nodes that become one layer.
type injectionItem struct {
	marker   InjectionMarker
	nodes    []tree_sitter.Node
	include  ranges.IncludeChildren
	combined bool
	pattern  uint
	matchID  uint
}

type combinedKey struct {
	pattern uint
	marker  InjectionMarker
}

// injections runs the injection query of l over tree. Every match becomes one
// group, except for injection.combined patterns whose content nodes are merged
// per pattern and language marker.
func (f *Forest) injections(l *Layer, tree *tree_sitter.Tree, parentName string) []injectionItem {
	q := l.grammar.injections
	if q == nil {
		return nil
	}

	start, end, _ := ranges.Hull(l.ranges)
	cursor := q.Matches(tree.RootNode(), f.text, query.WithByteRange(start, end), query.WithMatchLimit(f.opts.matchLimit))
	defer cursor.Close()

	var items []injectionItem
	combined := make(map[combinedKey]int)
	for match := range cursor.All() {
		item := l.grammar.injectionForMatch(parentName, match, f.text)
		if item.marker.Value == "" || len(item.nodes) == 0 {
			continue
		}

		if item.combined {
			key := combinedKey{pattern: item.pattern, marker: item.marker}
			if i, ok := combined[key]; ok {
				items[i].nodes = append(items[i].nodes, item.nodes...)
				continue
			}
			combined[key] = len(items)
		}
		items = append(items, item)
	}

	if cursor.Truncated() {
		f.log.Debug("injection query exceeded match limit", zap.Stringer("layer", l))
	}
	return items
}

type injectionGroup struct {
	grammar  *Grammar
	ranges   []tree_sitter.Range
	combined bool
}

// reconcile diffs the injection groups found in l against its children.
// A child with the same grammar and overlapping ranges is kept and marked
// stale when its ranges changed, groups without such a child create a new
// layer and children without a group are removed with their subtree.
func (f *Forest) reconcile(l *Layer, items []injectionItem) {
	var groups []injectionGroup
	for _, item := range items {
		var grammar *Grammar
		if f.opts.injectionCallback != nil {
			grammar = f.opts.injectionCallback(item.marker)
		}
		if grammar == nil {
			continue
		}

		slices.SortFunc(item.nodes, func(a, b tree_sitter.Node) int {
			return cmp.Compare(a.StartByte(), b.StartByte())
		})
		rs := ranges.Intersect(l.ranges, item.nodes, item.include)
		if len(rs) == 0 {
			continue
		}
		// an injection covering its own layer again would recurse forever
		if grammar == l.grammar && ranges.Equal(rs, l.ranges) {
			continue
		}

		groups = append(groups, injectionGroup{
			grammar:  grammar,
			ranges:   rs,
			combined: item.combined,
		})
	}

	existing := l.children
	used := make([]bool, len(existing))
	children := make([]LayerID, 0, len(groups))

next:
	for _, g := range groups {
		for i, id := range existing {
			child := f.Layer(id)
			if used[i] || child == nil || child.grammar != g.grammar || !ranges.Overlaps(child.ranges, g.ranges) {
				continue
			}

			used[i] = true
			if !ranges.Equal(child.ranges, g.ranges) {
				child.state = LayerStale
			}
			child.ranges = g.ranges
			child.combined = g.combined
			children = append(children, id)
			continue next
		}

		child := f.insert(&Layer{
			grammar:   g.grammar,
			parent:    l.id,
			hasParent: true,
			ranges:    g.ranges,
			depth:     l.depth + 1,
			combined:  g.combined,
			state:     LayerStale,
		})
		f.log.Debug("layer created", zap.Stringer("layer", child), zap.Stringer("parent", l))
		children = append(children, child.id)
	}

	l.children = children
	for i, id := range existing {
		if !used[i] {
			f.drop(id)
		}
	}

	slices.SortStableFunc(l.children, func(a, b LayerID) int {
		return cmp.Compare(f.Layer(a).ranges[0].StartByte, f.Layer(b).ranges[0].StartByte)
	})
}
