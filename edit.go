package syntax

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"go.gopad.dev/go-tree-sitter-syntax/internal/ranges"
)

var (
	// ErrEditOutOfBounds is returned when an edit does not fit the document it applies to.
	ErrEditOutOfBounds = errors.New("edit out of bounds")
	// ErrTextMismatch is returned when the new text does not have the length the edits produce.
	ErrTextMismatch = errors.New("text does not match edits")
	// ErrParse is returned when the root layer cannot be parsed.
	ErrParse = errors.New("parse failed")
)

// Edit replaces RemovedLen bytes at StartByte with InsertedLen new bytes.
// Offsets of an edit refer to the document after all previous edits.
type Edit struct {
	StartByte   uint
	RemovedLen  uint
	InsertedLen uint
}

// inputEdits converts edits to tree-sitter edits with row/column positions.
//
// Positions are computed on an intermediate buffer per edit, reading the
// inserted bytes from the final text. When a later edit of the batch changes
// bytes an earlier one inserted, those bytes are no longer known and the batch
// is described by a single edit spanning every change instead.
func inputEdits(old []byte, text []byte, edits []Edit) ([]tree_sitter.InputEdit, error) {
	length := uint(len(old))
	exact := true
	for i, e := range edits {
		if e.StartByte > length || e.RemovedLen > length-e.StartByte {
			return nil, fmt.Errorf("%w: edit %d removes [%d, %d) from %d bytes", ErrEditOutOfBounds, i, e.StartByte, e.StartByte+e.RemovedLen, length)
		}
		length = length - e.RemovedLen + e.InsertedLen
		if _, ok := insertedText(text, edits, i); !ok {
			exact = false
		}
	}
	if length != uint(len(text)) {
		return nil, fmt.Errorf("%w: edits produce %d bytes, got %d", ErrTextMismatch, length, len(text))
	}
	if !exact {
		return []tree_sitter.InputEdit{spanningEdit(old, text, edits)}, nil
	}

	buf := slices.Clone(old)
	result := make([]tree_sitter.InputEdit, 0, len(edits))
	for i, e := range edits {
		inserted, _ := insertedText(text, edits, i)
		startPoint := pointAt(buf, e.StartByte)
		result = append(result, tree_sitter.InputEdit{
			StartByte:      e.StartByte,
			OldEndByte:     e.StartByte + e.RemovedLen,
			NewEndByte:     e.StartByte + e.InsertedLen,
			StartPosition:  startPoint,
			OldEndPosition: pointAt(buf, e.StartByte+e.RemovedLen),
			NewEndPosition: ranges.PointAdd(startPoint, extent(inserted)),
		})

		buf = slices.Concat(buf[:e.StartByte], inserted, buf[e.StartByte+e.RemovedLen:])
	}
	return result, nil
}

// insertedText returns the bytes inserted by edits[i] as they appear in text.
// It reports false when a later edit removes or replaces any of them.
func insertedText(text []byte, edits []Edit, i int) ([]byte, bool) {
	start, end := edits[i].StartByte, edits[i].StartByte+edits[i].InsertedLen
	if start == end {
		return nil, true
	}

	for _, later := range edits[i+1:] {
		switch {
		case later.StartByte+later.RemovedLen <= start:
			start = start - later.RemovedLen + later.InsertedLen
			end = end - later.RemovedLen + later.InsertedLen
		case later.StartByte >= end:
		default:
			return nil, false
		}
	}

	if end > uint(len(text)) {
		return nil, false
	}
	return text[start:end], true
}

// spanningEdit describes a batch of edits as one edit from the first changed
// byte to the start of the longest suffix no edit touches.
func spanningEdit(old []byte, text []byte, edits []Edit) tree_sitter.InputEdit {
	length := uint(len(old))
	start, suffix := length, length
	for _, e := range edits {
		start = min(start, e.StartByte)
		suffix = min(suffix, length-e.StartByte-e.RemovedLen)
		length = length - e.RemovedLen + e.InsertedLen
	}

	oldEnd := uint(len(old)) - suffix
	newEnd := uint(len(text)) - suffix
	return tree_sitter.InputEdit{
		StartByte:      start,
		OldEndByte:     oldEnd,
		NewEndByte:     newEnd,
		StartPosition:  pointAt(old, start),
		OldEndPosition: pointAt(old, oldEnd),
		NewEndPosition: pointAt(text, newEnd),
	}
}

// pointAt returns the row and byte column of offset in text.
func pointAt(text []byte, offset uint) tree_sitter.Point {
	prefix := text[:offset]
	row := uint(bytes.Count(prefix, []byte{'\n'}))
	column := offset - uint(bytes.LastIndexByte(prefix, '\n')+1)
	return tree_sitter.NewPoint(row, column)
}

// extent returns the point reached after text starting from the origin.
func extent(text []byte) tree_sitter.Point {
	return pointAt(text, uint(len(text)))
}

func documentRange(text []byte) tree_sitter.Range {
	return tree_sitter.Range{
		StartByte:  0,
		StartPoint: tree_sitter.NewPoint(0, 0),
		EndByte:    uint(len(text)),
		EndPoint:   extent(text),
	}
}
