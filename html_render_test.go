package syntax

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLRender_Render(t *testing.T) {
	tests := []struct {
		name       string
		source     string
		highlights string
		expected   string
	}{
		{
			name:       "spans",
			source:     "var x = 1",
			highlights: goHighlights,
			expected:   `<span class="hl-keyword">var</span> <span class="hl-variable">x</span> = <span class="hl-number">1</span>`,
		},
		{
			name:       "escape",
			source:     "var s = \"<a href='x'>&</a>\"",
			highlights: `(interpreted_string_literal) @string`,
			expected:   `var s = <span class="hl-string">&#34;&lt;a href=&#39;x&#39;&gt;&amp;&lt;/a&gt;&#34;</span>`,
		},
		{
			name:       "reopen spans across lines",
			source:     "var s = `a\nb`",
			highlights: `(raw_string_literal) @string`,
			expected:   "var s = <span class=\"hl-string\">`a</span>\n<span class=\"hl-string\">b`</span>",
		},
		{
			name:       "dotted capture names",
			source:     "var x = 1",
			highlights: `(identifier) @variable.builtin`,
			expected:   `var <span class="hl-variable-builtin">x</span> = 1`,
		},
	}

	names := []string{"keyword", "variable", "variable.builtin", "number", "string"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGrammar(goLanguage, "go", []byte(tt.highlights), nil, nil)
			require.NoError(t, err)
			t.Cleanup(g.Close)
			g.Configure(names)

			f := openTestForest(t, tt.source, g)

			htmlRender := NewHTMLRender()
			var buf bytes.Buffer
			err = htmlRender.Render(&buf, f.Highlight(0, f.Len()), f.Text(), htmlRender.ClassAttributeCallback(names))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}

func TestHTMLRender_RenderCSS(t *testing.T) {
	theme, err := LoadTheme(strings.NewReader(`
name: test
styles:
  keyword: "color: #A578EA;"
  function.builtin: "color: #73FBF1;"
`))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, NewHTMLRender().RenderCSS(&buf, theme))
	assert.Equal(t, `.hl-function-builtin {
  color: #73FBF1;
}
.hl-keyword {
  color: #A578EA;
}
`, buf.String())
}
