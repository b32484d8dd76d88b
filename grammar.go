package syntax

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"go.gopad.dev/go-tree-sitter-syntax/internal/ranges"
	"go.gopad.dev/go-tree-sitter-syntax/query"
)

const (
	captureInjectionContent  = "injection.content"
	captureInjectionLanguage = "injection.language"
	captureInjectionFilename = "injection.filename"
	captureInjectionShebang  = "injection.shebang"

	propertyInjectionLanguage               = "injection.language"
	propertyInjectionCombined               = "injection.combined"
	propertyInjectionSelf                   = "injection.self"
	propertyInjectionParent                 = "injection.parent"
	propertyInjectionIncludeChildren        = "injection.include-children"
	propertyInjectionIncludeUnnamedChildren = "injection.include-unnamed-children"

	captureLocalPrefix         = "local."
	captureLocalScope          = "local.scope"
	captureLocalDefinition     = "local.definition"
	captureLocalReference      = "local.reference"
	propertyLocal              = "local"
	propertyLocalScopeInherits = "local.scope-inherits"
)

var injectionPropertyKeys = []string{
	propertyInjectionLanguage,
	propertyInjectionCombined,
	propertyInjectionSelf,
	propertyInjectionParent,
	propertyInjectionIncludeChildren,
	propertyInjectionIncludeUnnamedChildren,
}

// shebangRegex extracts the interpreter name of a shebang line, skipping its
// directory and an env invocation with flags.
var shebangRegex = regexp.MustCompile(`#!\s*(?:\S*[/\\](?:env\s+(?:-\S+\s+)*)?)?([^\s.\d]+)`)

// Highlight is the index of a recognised capture name passed to [Grammar.Configure].
type Highlight uint

// DefaultHighlight is the highlight of text that no capture covers.
const DefaultHighlight = Highlight(^uint(0))

// InjectionMarkerKind tells how an injection names its language.
type InjectionMarkerKind uint8

const (
	// InjectionName is a language name or alias.
	InjectionName InjectionMarkerKind = iota
	// InjectionFilename is a file name or path, resolved by its extension.
	InjectionFilename
	// InjectionShebang is the interpreter named by a shebang line.
	InjectionShebang
)

func (k InjectionMarkerKind) String() string {
	switch k {
	case InjectionName:
		return "name"
	case InjectionFilename:
		return "filename"
	case InjectionShebang:
		return "shebang"
	default:
		return fmt.Sprintf("InjectionMarkerKind(%d)", int(k))
	}
}

// InjectionMarker identifies the language of an injection.
type InjectionMarker struct {
	Kind  InjectionMarkerKind
	Value string
}

func (m InjectionMarker) String() string {
	return m.Kind.String() + ":" + m.Value
}

// InjectionCallback resolves the grammar of an injected language. It returns
// nil for unknown languages, which drops the injection.
type InjectionCallback func(marker InjectionMarker) *Grammar

// Grammar bundles a tree-sitter language with its compiled queries.
type Grammar struct {
	name       string
	language   *tree_sitter.Language
	highlights *query.Query
	injections *query.Query
	locals     *query.Query

	injectionContentCaptureIndex  *uint
	injectionLanguageCaptureIndex *uint
	injectionFilenameCaptureIndex *uint
	injectionShebangCaptureIndex  *uint

	localScopeCaptureIndex     *uint
	localReferenceCaptureIndex *uint
	nonLocalPatterns           []bool

	highlightIndices  []*Highlight
	definitionIndices []*Highlight
}

// NewGrammar compiles the highlight, injection and locals queries of a
// language. Any query may be empty.
//
// The locals query tracks scopes and definitions. Its `@local.reference`
// captures highlight like the definition they refer to, and highlight patterns
// marked `(#is-not? local)` skip nodes naming a definition in scope.
func NewGrammar(language *tree_sitter.Language, name string, highlightsQuery []byte, injectionQuery []byte, localsQuery []byte) (*Grammar, error) {
	g := &Grammar{
		name:     name,
		language: language,
	}

	if len(highlightsQuery) > 0 || len(localsQuery) > 0 {
		source := string(highlightsQuery)
		if len(localsQuery) > 0 {
			source += "\n" + string(localsQuery)
		}
		q, err := query.Compile(language, source)
		if err != nil {
			return nil, fmt.Errorf("error compiling %s highlights query: %w", name, err)
		}
		g.highlights = q

		if i, ok := q.CaptureIndex(captureLocalReference); ok {
			g.localReferenceCaptureIndex = &i
		}
		g.nonLocalPatterns = make([]bool, q.PatternCount())
		for i := range q.PatternCount() {
			positive, ok := q.PropertyPredicate(i, propertyLocal)
			g.nonLocalPatterns[i] = ok && !positive
		}
	}

	if len(injectionQuery) > 0 {
		q, err := query.Compile(language, string(injectionQuery), query.WithPropertyKeys(injectionPropertyKeys...))
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("error compiling %s injection query: %w", name, err)
		}
		g.injections = q

		for i, captureName := range q.CaptureNames() {
			ui := uint(i)
			switch captureName {
			case captureInjectionContent:
				g.injectionContentCaptureIndex = &ui
			case captureInjectionLanguage:
				g.injectionLanguageCaptureIndex = &ui
			case captureInjectionFilename:
				g.injectionFilenameCaptureIndex = &ui
			case captureInjectionShebang:
				g.injectionShebangCaptureIndex = &ui
			}
		}
	}

	if len(localsQuery) > 0 {
		q, err := query.Compile(language, string(localsQuery), query.WithPropertyKeys(propertyLocalScopeInherits))
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("error compiling %s locals query: %w", name, err)
		}
		g.locals = q

		if i, ok := q.CaptureIndex(captureLocalScope); ok {
			g.localScopeCaptureIndex = &i
		}
	}

	return g, nil
}

// Configure maps the highlight query's capture names to the given recognised
// names. A capture name that is not recognised falls back to its longest
// recognised dotted prefix, so "function.builtin" highlights as "function"
// unless "function.builtin" is recognised itself.
//
// Definitions of the locals query map by their kind: a reference to a
// `@local.definition.function` highlights as "function".
//
// Configure must be called before the grammar is shared with a [Forest].
func (g *Grammar) Configure(recognisedNames []string) {
	if g.highlights != nil {
		captureNames := g.highlights.CaptureNames()
		g.highlightIndices = make([]*Highlight, len(captureNames))
		for i, captureName := range captureNames {
			if strings.HasPrefix(captureName, captureLocalPrefix) {
				continue
			}
			g.highlightIndices[i] = lookupHighlight(recognisedNames, captureName)
		}
	}

	if g.locals != nil {
		captureNames := g.locals.CaptureNames()
		g.definitionIndices = make([]*Highlight, len(captureNames))
		for i, captureName := range captureNames {
			kind, ok := strings.CutPrefix(captureName, captureLocalDefinition+".")
			if !ok {
				continue
			}
			g.definitionIndices[i] = lookupHighlight(recognisedNames, kind)
		}
	}
}

func lookupHighlight(recognisedNames []string, captureName string) *Highlight {
	for {
		j := slices.Index(recognisedNames, captureName)
		if j != -1 {
			index := Highlight(j)
			return &index
		}

		lastDot := strings.LastIndex(captureName, ".")
		if lastDot == -1 {
			return nil
		}
		captureName = captureName[:lastDot]
	}
}

func (g *Grammar) Name() string {
	return g.name
}

func (g *Grammar) Language() *tree_sitter.Language {
	return g.language
}

// HighlightsQuery returns the compiled highlight query or nil. It includes the
// patterns of the locals query.
func (g *Grammar) HighlightsQuery() *query.Query {
	return g.highlights
}

// InjectionQuery returns the compiled injection query or nil.
func (g *Grammar) InjectionQuery() *query.Query {
	return g.injections
}

// LocalsQuery returns the compiled locals query or nil.
func (g *Grammar) LocalsQuery() *query.Query {
	return g.locals
}

// HighlightFor returns the highlight a capture of the highlight query maps to.
func (g *Grammar) HighlightFor(captureIndex uint) (Highlight, bool) {
	return highlightAt(g.highlightIndices, captureIndex)
}

func highlightAt(indices []*Highlight, captureIndex uint) (Highlight, bool) {
	if captureIndex >= uint(len(indices)) {
		return 0, false
	}
	h := indices[captureIndex]
	if h == nil {
		return 0, false
	}
	return *h, true
}

// Close releases the compiled queries.
func (g *Grammar) Close() {
	for _, q := range []*query.Query{g.highlights, g.injections, g.locals} {
		if q != nil {
			q.Close()
		}
	}
}

func isCapture(index *uint, captureIndex uint) bool {
	return index != nil && *index == captureIndex
}

// injectionForMatch extracts the language, content nodes and directives of an
// injection query match.
func (g *Grammar) injectionForMatch(parentName string, match query.Match, source []byte) injectionItem {
	item := injectionItem{
		pattern: match.PatternIndex,
		matchID: match.ID,
	}
	if g.injectionContentCaptureIndex == nil {
		return item
	}

	for _, capture := range match.Captures {
		switch {
		case isCapture(g.injectionLanguageCaptureIndex, capture.Index):
			item.marker = InjectionMarker{Kind: InjectionName, Value: capture.Node.Utf8Text(source)}
		case isCapture(g.injectionFilenameCaptureIndex, capture.Index):
			item.marker = InjectionMarker{Kind: InjectionFilename, Value: capture.Node.Utf8Text(source)}
		case isCapture(g.injectionShebangCaptureIndex, capture.Index):
			if interpreter, ok := shebangInterpreter(capture.Node.Utf8Text(source)); ok {
				item.marker = InjectionMarker{Kind: InjectionShebang, Value: interpreter}
			}
		case capture.Index == *g.injectionContentCaptureIndex:
			item.nodes = append(item.nodes, capture.Node)
		}
	}

	if item.marker.Value == "" {
		item.marker.Kind = InjectionName
		if name, ok := g.injections.Property(match.PatternIndex, propertyInjectionLanguage); ok {
			item.marker.Value = name
		} else if _, ok := g.injections.Property(match.PatternIndex, propertyInjectionSelf); ok {
			item.marker.Value = g.name
		} else if _, ok := g.injections.Property(match.PatternIndex, propertyInjectionParent); ok {
			item.marker.Value = parentName
		}
	}

	if _, ok := g.injections.Property(match.PatternIndex, propertyInjectionIncludeChildren); ok {
		item.include = ranges.IncludeAll
	} else if _, ok := g.injections.Property(match.PatternIndex, propertyInjectionIncludeUnnamedChildren); ok {
		item.include = ranges.IncludeUnnamed
	}
	_, item.combined = g.injections.Property(match.PatternIndex, propertyInjectionCombined)

	return item
}

// shebangInterpreter returns the interpreter of a shebang on the first or
// second line of text. Some languages allow a blank line before it.
func shebangInterpreter(text string) (string, bool) {
	lines := text
	if first := strings.IndexByte(lines, '\n'); first != -1 {
		if second := strings.IndexByte(lines[first+1:], '\n'); second != -1 {
			lines = lines[:first+1+second]
		}
	}

	m := shebangRegex.FindStringSubmatch(lines)
	if m == nil {
		return "", false
	}
	return m[1], true
}
