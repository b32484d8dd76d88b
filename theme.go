package syntax

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"
)

// Theme maps capture names to css declarations.
//
//	name: monokai
//	styles:
//	  keyword: "color: #F92672;"
//	  function.builtin: "color: #66D9EF;"
type Theme struct {
	Name   string            `yaml:"name"`
	Styles map[string]string `yaml:"styles"`
}

// LoadTheme decodes a yaml theme.
func LoadTheme(r io.Reader) (Theme, error) {
	var theme Theme
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&theme); err != nil {
		return Theme{}, fmt.Errorf("error decoding theme: %w", err)
	}
	if len(theme.Styles) == 0 {
		return Theme{}, fmt.Errorf("theme %q has no styles", theme.Name)
	}
	return theme, nil
}

// Names returns the sorted capture names of the theme. They are meant to be
// passed to [Grammar.Configure].
func (t Theme) Names() []string {
	return slices.Sorted(maps.Keys(t.Styles))
}
