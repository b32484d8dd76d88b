package syntax

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

func TestInputEdits(t *testing.T) {
	tests := []struct {
		name     string
		old      string
		text     string
		edits    []Edit
		expected []tree_sitter.InputEdit
	}{
		{
			name:  "insert lines",
			old:   "ab\ncd",
			text:  "ab\ncx\nyd",
			edits: []Edit{{StartByte: 4, InsertedLen: 3}},
			expected: []tree_sitter.InputEdit{{
				StartByte:      4,
				OldEndByte:     4,
				NewEndByte:     7,
				StartPosition:  tree_sitter.NewPoint(1, 1),
				OldEndPosition: tree_sitter.NewPoint(1, 1),
				NewEndPosition: tree_sitter.NewPoint(2, 1),
			}},
		},
		{
			name:  "delete lines",
			old:   "a\nb\nc",
			text:  "ac",
			edits: []Edit{{StartByte: 1, RemovedLen: 3}},
			expected: []tree_sitter.InputEdit{{
				StartByte:      1,
				OldEndByte:     4,
				NewEndByte:     1,
				StartPosition:  tree_sitter.NewPoint(0, 1),
				OldEndPosition: tree_sitter.NewPoint(2, 0),
				NewEndPosition: tree_sitter.NewPoint(0, 1),
			}},
		},
		{
			name: "later edit before earlier insertion",
			old:  "abc\n",
			text: "ZZabcX\nY\n",
			edits: []Edit{
				{StartByte: 3, InsertedLen: 3},
				{StartByte: 0, InsertedLen: 2},
			},
			expected: []tree_sitter.InputEdit{
				{
					StartByte:      3,
					OldEndByte:     3,
					NewEndByte:     6,
					StartPosition:  tree_sitter.NewPoint(0, 3),
					OldEndPosition: tree_sitter.NewPoint(0, 3),
					NewEndPosition: tree_sitter.NewPoint(1, 1),
				},
				{
					StartByte:      0,
					OldEndByte:     0,
					NewEndByte:     2,
					StartPosition:  tree_sitter.NewPoint(0, 0),
					OldEndPosition: tree_sitter.NewPoint(0, 0),
					NewEndPosition: tree_sitter.NewPoint(0, 2),
				},
			},
		},
		{
			name: "later edit replaces inserted lines",
			old:  "ab",
			text: "QY\nb",
			edits: []Edit{
				{StartByte: 1, InsertedLen: 4},
				{StartByte: 0, RemovedLen: 3, InsertedLen: 1},
			},
			expected: []tree_sitter.InputEdit{{
				StartByte:      0,
				OldEndByte:     1,
				NewEndByte:     3,
				StartPosition:  tree_sitter.NewPoint(0, 0),
				OldEndPosition: tree_sitter.NewPoint(0, 1),
				NewEndPosition: tree_sitter.NewPoint(1, 0),
			}},
		},
		{
			name: "later edit inside inserted text",
			old:  "a\nb",
			text: "a\nxZz\nb",
			edits: []Edit{
				{StartByte: 2, InsertedLen: 4},
				{StartByte: 3, RemovedLen: 1, InsertedLen: 1},
			},
			expected: []tree_sitter.InputEdit{{
				StartByte:      2,
				OldEndByte:     2,
				NewEndByte:     6,
				StartPosition:  tree_sitter.NewPoint(1, 0),
				OldEndPosition: tree_sitter.NewPoint(1, 0),
				NewEndPosition: tree_sitter.NewPoint(2, 0),
			}},
		},
		{
			name:     "no edits",
			old:      "abc",
			text:     "abc",
			expected: []tree_sitter.InputEdit{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := inputEdits([]byte(tt.old), []byte(tt.text), tt.edits)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestInputEdits_Errors(t *testing.T) {
	_, err := inputEdits([]byte("abc"), []byte("abc"), []Edit{{StartByte: 4}})
	assert.True(t, errors.Is(err, ErrEditOutOfBounds))

	// the second edit is out of bounds only after the first one shrank the text
	_, err = inputEdits([]byte("abc"), []byte(""), []Edit{{StartByte: 0, RemovedLen: 2}, {StartByte: 0, RemovedLen: 2}})
	assert.True(t, errors.Is(err, ErrEditOutOfBounds))

	_, err = inputEdits([]byte("abc"), []byte("ab"), []Edit{{StartByte: 0, InsertedLen: 1}})
	assert.True(t, errors.Is(err, ErrTextMismatch))
}

func TestPointAt(t *testing.T) {
	text := []byte("ab\n\ncde")
	assert.Equal(t, tree_sitter.NewPoint(0, 0), pointAt(text, 0))
	assert.Equal(t, tree_sitter.NewPoint(0, 2), pointAt(text, 2))
	assert.Equal(t, tree_sitter.NewPoint(1, 0), pointAt(text, 3))
	assert.Equal(t, tree_sitter.NewPoint(2, 0), pointAt(text, 4))
	assert.Equal(t, tree_sitter.NewPoint(2, 3), extent(text))
}
