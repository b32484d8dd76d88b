package syntax

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"go.gopad.dev/go-tree-sitter-syntax/query"
)

type span struct {
	Capture string
	Start   uint
	End     uint
}

// spans returns the highlights of events in opening order.
func spans(events []Event) []span {
	var (
		result []span
		open   []int
	)
	for _, event := range events {
		switch e := event.(type) {
		case EventStart:
			open = append(open, len(result))
			result = append(result, span{Capture: e.Capture, Start: e.Pos})
		case EventEnd:
			result[open[len(open)-1]].End = e.Pos
			open = open[:len(open)-1]
		}
	}
	return result
}

func TestForest_Highlight(t *testing.T) {
	g := newTestGrammar(t, goHighlights, "")
	source := "var x = 1"
	f := openTestForest(t, source, g)

	events := collectEvents(t, f.Highlight(0, f.Len()), 0, f.Len())

	expected := []Event{
		EventStart{Pos: 0, Highlight: 0, Capture: "keyword", Language: "go"},
		EventSource{Start: 0, End: 3},
		EventEnd{Pos: 3, Highlight: 0, Capture: "keyword"},
		EventSource{Start: 3, End: 4},
		EventStart{Pos: 4, Highlight: 1, Capture: "variable", Language: "go"},
		EventSource{Start: 4, End: 5},
		EventEnd{Pos: 5, Highlight: 1, Capture: "variable"},
		EventSource{Start: 5, End: 8},
		EventStart{Pos: 8, Highlight: 2, Capture: "number", Language: "go"},
		EventSource{Start: 8, End: 9},
		EventEnd{Pos: 9, Highlight: 2, Capture: "number"},
	}
	if diff := cmp.Diff(expected, events, ignoreIDs); diff != "" {
		t.Errorf("unexpected events (-want +got):\n%s", diff)
	}

	for _, event := range events {
		if e, ok := event.(EventStart); ok {
			assert.Equal(t, f.Root().ID(), e.Layer)
		}
	}
}

func TestForest_HighlightRange(t *testing.T) {
	g := newTestGrammar(t, goHighlights, "")
	f := openTestForest(t, "var x = 1", g)

	tests := []struct {
		name     string
		start    uint
		end      uint
		expected []span
	}{
		{"clip start", 1, 9, []span{{"keyword", 1, 3}, {"variable", 4, 5}, {"number", 8, 9}}},
		{"drop empty", 5, 9, []span{{"number", 8, 9}}},
		{"clip end", 0, 2, []span{{"keyword", 0, 2}}},
		{"past end", 8, 100, []span{{"number", 8, 9}}},
		{"empty", 3, 3, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := collectEvents(t, f.Highlight(tt.start, tt.end), tt.start, min(max(tt.start, tt.end), f.Len()))
			assert.Equal(t, tt.expected, spans(events))
		})
	}
}

func TestForest_HighlightNesting(t *testing.T) {
	//        0             14            28 29   34
	source := "package main\n\nfunc main() {\n\tfoo()\n}\n"

	tests := []struct {
		name       string
		highlights string
		names      []string
		expected   []span
	}{
		{
			name: "ancestor opens first",
			highlights: `
(call_expression) @function.call
(expression_statement) @statement
`,
			names:    []string{"function.call", "statement"},
			expected: []span{{"statement", 29, 34}, {"function.call", 29, 34}},
		},
		{
			name: "same node opens in pattern order",
			highlights: `
(call_expression function: (identifier) @function)
(identifier) @variable
`,
			names:    []string{"function", "variable"},
			expected: []span{{"variable", 19, 23}, {"function", 29, 32}, {"variable", 29, 32}},
		},
		{
			name: "enclosing first",
			highlights: `
(identifier) @variable
(call_expression) @function.call
`,
			names:    []string{"variable", "function.call"},
			expected: []span{{"variable", 19, 23}, {"function.call", 29, 34}, {"variable", 29, 32}},
		},
		{
			name: "unrecognised captures are skipped",
			highlights: `
(identifier) @variable
(call_expression) @function.call
`,
			names:    []string{"function"},
			expected: []span{{"function.call", 29, 34}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGrammar(goLanguage, "go", []byte(tt.highlights), nil, nil)
			require.NoError(t, err)
			t.Cleanup(g.Close)
			g.Configure(tt.names)

			f := openTestForest(t, source, g)
			events := collectEvents(t, f.Highlight(0, f.Len()), 0, f.Len())
			assert.Equal(t, tt.expected, spans(events))
		})
	}
}

func TestForest_HighlightInjection(t *testing.T) {
	g := newTestGrammar(t, goHighlights, singleInjection)
	f := openTestForest(t, twoFunctions, g)

	child := f.Layer(f.Root().Children()[0])
	require.NotNil(t, child)

	events := collectEvents(t, f.Highlight(0, f.Len()), 0, f.Len())
	assert.Equal(t, []span{
		{"keyword", 14, 18},
		{"variable", 19, 20},
		{"keyword", 27, 31},
		{"variable", 32, 33},
	}, spans(events))

	for _, event := range events {
		e, ok := event.(EventStart)
		if !ok || e.Pos >= 25 {
			continue
		}
		assert.Equal(t, child.ID(), e.Layer, "the deeper layer wins for %s at %d", e.Capture, e.Pos)
	}
}

type sliceSource []Capture

func (s *sliceSource) Next() (Capture, bool) {
	if len(*s) == 0 {
		return Capture{}, false
	}
	c := (*s)[0]
	*s = (*s)[1:]
	return c, true
}

func parseGo(t *testing.T, source string) *tree_sitter.Tree {
	t.Helper()

	parser := tree_sitter.NewParser()
	defer parser.Close()
	require.NoError(t, parser.SetLanguage(goLanguage))

	tree := parser.Parse([]byte(source), nil)
	require.NotNil(t, tree)
	t.Cleanup(tree.Close)
	return tree
}

func TestResolver_Crossing(t *testing.T) {
	g := newTestGrammar(t, goHighlights, "")
	outer := parseGo(t, "var x = 1")
	inner := parseGo(t, "var x = 1234")

	// var_spec [4, 9) and int_literal [8, 12) from another layer
	spec := outer.RootNode().NamedDescendantForByteRange(4, 9)
	number := inner.RootNode().NamedDescendantForByteRange(8, 12)
	require.Equal(t, "var_spec", spec.Kind())
	require.Equal(t, "int_literal", number.Kind())

	src := sliceSource{
		{Capture: query.Capture{Node: *spec, Name: "variable"}, Layer: &Layer{grammar: g}},
		{Capture: query.Capture{Node: *number, Name: "number"}, Layer: &Layer{grammar: g, depth: 1}},
	}
	classify := func(c Capture) (Highlight, bool) {
		if c.Name == "number" {
			return 2, true
		}
		return 1, true
	}

	var events []Event
	for event := range NewResolver(&src, 0, 12, classify).All() {
		events = append(events, event)
	}

	expected := []Event{
		EventSource{Start: 0, End: 4},
		EventStart{Pos: 4, Highlight: 1, Capture: "variable", Language: "go"},
		EventSource{Start: 4, End: 8},
		EventStart{Pos: 8, Highlight: 2, Capture: "number", Language: "go"},
		EventSource{Start: 8, End: 9},
		EventEnd{Pos: 9, Highlight: 2, Capture: "number"},
		EventEnd{Pos: 9, Highlight: 1, Capture: "variable"},
		EventSource{Start: 9, End: 12},
	}
	if diff := cmp.Diff(expected, events, ignoreIDs); diff != "" {
		t.Errorf("unexpected events (-want +got):\n%s", diff)
	}
}

func TestResolver_Empty(t *testing.T) {
	var src sliceSource
	var events []Event
	for event := range NewResolver(&src, 2, 7, nil).All() {
		events = append(events, event)
	}
	assert.Equal(t, []Event{EventSource{Start: 2, End: 7}}, events)
}
