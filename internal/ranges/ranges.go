// Package ranges implements the byte range algebra shared by the layer forest:
// translating layer ranges through edits and intersecting injection content
// nodes with the ranges of their parent layer.
package ranges

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Max marks an unbounded range end.
const Max = ^uint(0)

// IncludeChildren controls which children of an injection content node are
// part of the injected document.
type IncludeChildren uint8

const (
	// IncludeNone excludes every child of the content node.
	IncludeNone IncludeChildren = iota
	// IncludeAll keeps the full range of the content node.
	IncludeAll
	// IncludeUnnamed excludes only named children.
	IncludeUnnamed
)

// Intersect computes the ranges that should be included when parsing an injection.
// This takes into account three things:
//   - parentRanges: the ranges must all fall within the *current* layer's ranges.
//   - nodes: every injection takes place within a set of nodes. The injection ranges are the
//     ranges of those nodes. Nodes must be sorted by start byte.
//   - include: for some injections the content nodes' children should be excluded
//     from the nested document, so that only the content nodes' *own* content is reparsed. For
//     other injections the content nodes' entire ranges should be reparsed, including the ranges
//     of their children.
func Intersect(parentRanges []tree_sitter.Range, nodes []tree_sitter.Node, include IncludeChildren) []tree_sitter.Range {
	if len(nodes) == 0 || len(parentRanges) == 0 {
		return nil
	}

	cursor := nodes[0].Walk()
	defer cursor.Close()

	var result []tree_sitter.Range

	parentRange := parentRanges[0]
	parentRanges = parentRanges[1:]

	for _, node := range nodes {
		precedingRange := tree_sitter.Range{
			EndByte:  node.StartByte(),
			EndPoint: node.StartPosition(),
		}
		followingRange := tree_sitter.Range{
			StartByte:  node.EndByte(),
			StartPoint: node.EndPosition(),
			EndByte:    Max,
			EndPoint:   tree_sitter.NewPoint(Max, Max),
		}

		var excludedRanges []tree_sitter.Range
		for _, child := range node.Children(cursor) {
			switch include {
			case IncludeNone:
				excludedRanges = append(excludedRanges, child.Range())
			case IncludeUnnamed:
				if child.IsNamed() {
					excludedRanges = append(excludedRanges, child.Range())
				}
			}
		}
		excludedRanges = append(excludedRanges, followingRange)

		for _, excludedRange := range excludedRanges {
			r := tree_sitter.Range{
				StartByte:  precedingRange.EndByte,
				StartPoint: precedingRange.EndPoint,
				EndByte:    excludedRange.StartByte,
				EndPoint:   excludedRange.StartPoint,
			}
			precedingRange = excludedRange

			if r.EndByte < parentRange.StartByte {
				continue
			}

			for parentRange.StartByte <= r.EndByte {
				if parentRange.EndByte > r.StartByte {
					if r.StartByte < parentRange.StartByte {
						r.StartByte = parentRange.StartByte
						r.StartPoint = parentRange.StartPoint
					}

					if parentRange.EndByte < r.EndByte {
						if r.StartByte < parentRange.EndByte {
							result = append(result, tree_sitter.Range{
								StartByte:  r.StartByte,
								StartPoint: r.StartPoint,
								EndByte:    parentRange.EndByte,
								EndPoint:   parentRange.EndPoint,
							})
						}
						r.StartByte = parentRange.EndByte
						r.StartPoint = parentRange.EndPoint
					} else {
						if r.StartByte < r.EndByte {
							result = append(result, r)
						}
						break
					}
				}

				if len(parentRanges) == 0 {
					return result
				}
				parentRange = parentRanges[0]
				parentRanges = parentRanges[1:]
			}
		}
	}

	return result
}

// Translate maps ranges through a single edit. Ranges before the edit are
// unchanged, ranges after it shift by the length delta and ranges intersecting
// it are widened (or shrunk) to the edit's new extent. Ranges that collapse to
// zero length are dropped.
//
// moved reports that at least one range shifted without its content changing,
// modified that the content of at least one range was touched.
func Translate(rs []tree_sitter.Range, edit tree_sitter.InputEdit) (out []tree_sitter.Range, moved bool, modified bool) {
	pureInsertion := edit.OldEndByte == edit.StartByte
	out = make([]tree_sitter.Range, 0, len(rs))

	for _, r := range rs {
		switch {
		case edit.StartByte > r.EndByte:
			// edit is after the range
		case edit.OldEndByte < r.StartByte, pureInsertion && edit.StartByte == r.StartByte && r.StartByte < r.EndByte:
			r.StartByte = shift(r.StartByte, edit)
			r.StartPoint = PointAdd(edit.NewEndPosition, PointSub(r.StartPoint, edit.OldEndPosition))
			r.EndByte = shift(r.EndByte, edit)
			r.EndPoint = PointAdd(edit.NewEndPosition, PointSub(r.EndPoint, edit.OldEndPosition))
			moved = moved || edit.NewEndByte != edit.OldEndByte
		case edit.StartByte < r.StartByte:
			// the edit starts before the range and reaches into it
			r.StartByte = edit.NewEndByte
			r.StartPoint = edit.NewEndPosition
			r.EndByte, r.EndPoint = shiftEnd(r, edit)
			modified = true
		default:
			r.EndByte, r.EndPoint = shiftEnd(r, edit)
			modified = true
		}

		if r.StartByte < r.EndByte {
			out = append(out, r)
		} else {
			modified = true
		}
	}

	return out, moved, modified
}

func shift(offset uint, edit tree_sitter.InputEdit) uint {
	if offset == Max {
		return Max
	}
	return edit.NewEndByte + (offset - edit.OldEndByte)
}

func shiftEnd(r tree_sitter.Range, edit tree_sitter.InputEdit) (uint, tree_sitter.Point) {
	if r.EndByte <= edit.OldEndByte {
		return edit.NewEndByte, edit.NewEndPosition
	}
	return shift(r.EndByte, edit), PointAdd(edit.NewEndPosition, PointSub(r.EndPoint, edit.OldEndPosition))
}

// PointAdd advances a by the extent b.
func PointAdd(a, b tree_sitter.Point) tree_sitter.Point {
	if a.Row == Max || b.Row == Max {
		return tree_sitter.NewPoint(Max, Max)
	}
	if b.Row > 0 {
		return tree_sitter.NewPoint(a.Row+b.Row, b.Column)
	}
	return tree_sitter.NewPoint(a.Row, a.Column+b.Column)
}

// PointSub returns the extent from b to a. a must not precede b.
func PointSub(a, b tree_sitter.Point) tree_sitter.Point {
	if a.Row == Max {
		return tree_sitter.NewPoint(Max, Max)
	}
	if a.Row > b.Row {
		return tree_sitter.NewPoint(a.Row-b.Row, a.Column)
	}
	if a.Column < b.Column {
		return tree_sitter.NewPoint(0, 0)
	}
	return tree_sitter.NewPoint(0, a.Column-b.Column)
}

// Overlaps reports whether any range of a intersects any range of b. Both
// slices must be sorted.
func Overlaps(a, b []tree_sitter.Range) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].StartByte < b[j].EndByte && b[j].StartByte < a[i].EndByte {
			return true
		}
		if a[i].EndByte <= b[j].EndByte {
			i++
		} else {
			j++
		}
	}
	return false
}

// Intersects reports whether any range of rs intersects [start, end).
func Intersects(rs []tree_sitter.Range, start, end uint) bool {
	for _, r := range rs {
		if r.StartByte >= end {
			return false
		}
		if r.EndByte > start {
			return true
		}
	}
	return false
}

// Equal reports whether a and b cover the same bytes in the same pieces.
func Equal(a, b []tree_sitter.Range) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].StartByte != b[i].StartByte || a[i].EndByte != b[i].EndByte {
			return false
		}
	}
	return true
}

// Hull returns the smallest single range containing all of rs.
func Hull(rs []tree_sitter.Range) (start uint, end uint, ok bool) {
	if len(rs) == 0 {
		return 0, 0, false
	}
	return rs[0].StartByte, rs[len(rs)-1].EndByte, true
}

// Len returns the number of bytes covered by rs.
func Len(rs []tree_sitter.Range) uint {
	var n uint
	for _, r := range rs {
		n += r.EndByte - r.StartByte
	}
	return n
}
