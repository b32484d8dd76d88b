package syntax

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const localsHighlights = `
(identifier) @variable
((identifier) @function.builtin
  (#is-not? local)
  (#eq? @function.builtin "len"))
`

func newLocalsGrammar(t *testing.T, locals string) *Grammar {
	t.Helper()

	g, err := NewGrammar(goLanguage, "go", []byte(localsHighlights), nil, []byte(locals))
	require.NoError(t, err)
	t.Cleanup(g.Close)

	g.Configure([]string{"variable", "function", "parameter"})
	return g
}

// occurrence returns the span of the n-th occurrence of word in text.
func occurrence(text string, word string, n int, capture string) span {
	offset := 0
	for range n {
		offset += strings.Index(text[offset:], word) + len(word)
	}
	start := offset + strings.Index(text[offset:], word)
	return span{capture, uint(start), uint(start + len(word))}
}

// identifierAt returns the span of the identifier starting the first occurrence of prefix.
func identifierAt(text string, prefix string, capture string) span {
	start := strings.Index(text, prefix)
	return span{capture, uint(start), uint(start + 1)}
}

func TestForest_HighlightLocals(t *testing.T) {
	const locals = `
(function_declaration) @local.scope
(parameter_declaration name: (identifier) @local.definition.parameter)
(identifier) @local.reference
`
	g := newLocalsGrammar(t, locals)
	require.NotNil(t, g.LocalsQuery())

	text := "package main\n\nfunc f(len int) int { return len }\n\nfunc g() int { return len }\n"
	f := openTestForest(t, text, g)

	events := collectEvents(t, f.Highlight(0, f.Len()), 0, f.Len())
	assert.Equal(t, []span{
		identifierAt(text, "f(", "variable"),
		// the definition is not a reference to itself
		occurrence(text, "len", 0, "variable"),
		occurrence(text, "len", 1, "variable"),
		occurrence(text, "len", 1, "local.reference"),
		identifierAt(text, "g(", "variable"),
		// outside f the name is the builtin again
		occurrence(text, "len", 2, "variable"),
		occurrence(text, "len", 2, "function.builtin"),
	}, spans(events))

	for _, event := range events {
		if e, ok := event.(EventStart); ok && e.Capture == "local.reference" {
			assert.Equal(t, Highlight(2), e.Highlight, "references highlight like their definition")
		}
	}
}

func TestForest_HighlightLocalsInherits(t *testing.T) {
	tests := []struct {
		name     string
		locals   string
		expected string
	}{
		{
			name: "inheriting scope",
			locals: `
(function_declaration) @local.scope
(parameter_declaration name: (identifier) @local.definition.parameter)
(func_literal) @local.scope
(identifier) @local.reference
`,
			expected: "local.reference",
		},
		{
			name: "isolated scope",
			locals: `
(function_declaration) @local.scope
(parameter_declaration name: (identifier) @local.definition.parameter)
((func_literal) @local.scope
  (#set! local.scope-inherits false))
(identifier) @local.reference
`,
			expected: "function.builtin",
		},
	}

	text := "package main\n\nfunc f(len int) int {\n\treturn func() int { return len }()\n}\n"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newLocalsGrammar(t, tt.locals)
			f := openTestForest(t, text, g)

			events := collectEvents(t, f.Highlight(0, f.Len()), 0, f.Len())
			assert.Contains(t, spans(events), occurrence(text, "len", 1, tt.expected))
		})
	}
}

func TestForest_HighlightLocalsAfterEdit(t *testing.T) {
	g := newLocalsGrammar(t, `
(function_declaration) @local.scope
(parameter_declaration name: (identifier) @local.definition.parameter)
(identifier) @local.reference
`)

	text := "package main\n\nfunc f(n int) int { return len }\n"
	f := openTestForest(t, text, g)

	events := collectEvents(t, f.Highlight(0, f.Len()), 0, f.Len())
	assert.Contains(t, spans(events), occurrence(text, "len", 0, "function.builtin"))

	// renaming the parameter turns the builtin into a reference
	start := strings.Index(text, "n int")
	text, edit := replace(text, start, 1, "len")
	require.NoError(t, f.ApplyEdits([]byte(text), edit))

	events = collectEvents(t, f.Highlight(0, f.Len()), 0, f.Len())
	got := spans(events)
	assert.Contains(t, got, occurrence(text, "len", 1, "local.reference"))
	assert.NotContains(t, got, occurrence(text, "len", 1, "function.builtin"))
}

func TestLocals_Lookup(t *testing.T) {
	parameter := Highlight(2)
	ls := &locals{
		scopes: []localScope{
			{end: ^uint(0), parent: -1, children: []int{1}},
			{start: 10, end: 50, inherits: true, parent: 0, children: []int{2}, defs: []localDef{
				{name: "x", start: 12, end: 13, highlight: &parameter},
			}},
			{start: 20, end: 30, parent: 1, defs: []localDef{
				{name: "y", start: 22, end: 23},
			}},
		},
	}

	assert.Equal(t, 0, ls.scopeAt(5))
	assert.Equal(t, 1, ls.scopeAt(15))
	assert.Equal(t, 2, ls.scopeAt(25))
	assert.Equal(t, 1, ls.scopeAt(30))

	def, ok := ls.reference("x", 40)
	require.True(t, ok)
	assert.Equal(t, &parameter, def.highlight)

	_, ok = ls.reference("x", 12)
	assert.False(t, ok, "a definition does not refer to itself")
	assert.True(t, ls.defined("x", 12))

	_, ok = ls.reference("x", 25)
	assert.False(t, ok, "scope 2 does not inherit")
	_, ok = ls.reference("y", 25)
	assert.True(t, ok)
	_, ok = ls.reference("y", 40)
	assert.False(t, ok)
}
