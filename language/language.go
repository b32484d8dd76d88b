// Package language keeps the grammars a document may inject and compiles
// them on first use.
package language

import (
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	"go.uber.org/zap"

	syntax "go.gopad.dev/go-tree-sitter-syntax"
)

// Language is the raw definition of a grammar.
//
// FileTypes are file base names ("Makefile") or extensions without the dot
// ("go"). Shebangs are interpreter names ("python3").
type Language struct {
	Name            string
	Aliases         []string
	FileTypes       []string
	Shebangs        []string
	HighlightsQuery []byte
	InjectionQuery  []byte
	LocalsQuery     []byte
	Lang            *tree_sitter.Language
}

func New(name string, ptr unsafe.Pointer, highlightsQuery []byte, injectionQuery []byte, localsQuery []byte, aliases ...string) Language {
	return Language{
		Name:            name,
		Aliases:         aliases,
		HighlightsQuery: highlightsQuery,
		InjectionQuery:  injectionQuery,
		LocalsQuery:     localsQuery,
		Lang:            tree_sitter.NewLanguage(ptr),
	}
}

// Registry resolves language names to compiled grammars. It is safe for
// concurrent use.
//
// Grammars handed out by [Registry.Load] stay valid until [Registry.Close],
// even when their language is registered again. Close the forests using them
// first.
type Registry struct {
	log             *zap.Logger
	recognisedNames []string

	mu        sync.Mutex
	languages map[string]Language
	aliases   map[string]string
	grammars  map[string]*syntax.Grammar
	retired   []*syntax.Grammar
	failed    map[string]struct{}
}

// NewRegistry creates a registry configuring every grammar with
// recognisedNames.
func NewRegistry(logger *zap.Logger, recognisedNames []string, languages ...Language) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		log:             logger,
		recognisedNames: recognisedNames,
		languages:       make(map[string]Language),
		aliases:         make(map[string]string),
		grammars:        make(map[string]*syntax.Grammar),
		failed:          make(map[string]struct{}),
	}
	for _, l := range languages {
		r.Register(l)
	}
	return r
}

// Register adds or replaces a language. A grammar already loaded for the
// name is retired: later loads compile the new definition.
func (r *Registry) Register(l Language) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.grammars[l.Name]; ok {
		r.retired = append(r.retired, g)
		delete(r.grammars, l.Name)
	}
	delete(r.failed, l.Name)

	r.languages[l.Name] = l
	for _, alias := range l.Aliases {
		r.aliases[alias] = l.Name
	}
}

// Names returns the registered language names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.languages))
	for name := range r.languages {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Resolve returns the grammar an injection marker names. A file name matches
// a language by its base name first and its extension second. Resolve has the
// signature of [syntax.InjectionCallback].
func (r *Registry) Resolve(marker syntax.InjectionMarker) *syntax.Grammar {
	switch marker.Kind {
	case syntax.InjectionFilename:
		base := filepath.Base(marker.Value)
		name, ok := r.languageFor(func(l Language) bool { return slices.Contains(l.FileTypes, base) })
		if !ok {
			ext := strings.TrimPrefix(filepath.Ext(base), ".")
			if ext == "" {
				return nil
			}
			name, ok = r.languageFor(func(l Language) bool { return slices.Contains(l.FileTypes, ext) })
		}
		if !ok {
			return nil
		}
		return r.Load(name)
	case syntax.InjectionShebang:
		name, ok := r.languageFor(func(l Language) bool { return slices.Contains(l.Shebangs, marker.Value) })
		if !ok {
			return nil
		}
		return r.Load(name)
	default:
		return r.Load(marker.Value)
	}
}

// languageFor returns the first language by name for which match holds.
func (r *Registry) languageFor(match func(Language) bool) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.languages))
	for name := range r.languages {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if match(r.languages[name]) {
			return name, true
		}
	}
	return "", false
}

// Load returns the grammar of a language name or alias. It returns nil for
// unknown languages and for languages whose queries fail to compile.
func (r *Registry) Load(name string) *syntax.Grammar {
	r.mu.Lock()
	defer r.mu.Unlock()

	if canonical, ok := r.aliases[name]; ok {
		name = canonical
	}
	if g, ok := r.grammars[name]; ok {
		return g
	}
	if _, ok := r.failed[name]; ok {
		return nil
	}

	l, ok := r.languages[name]
	if !ok {
		return nil
	}

	g, err := syntax.NewGrammar(l.Lang, l.Name, l.HighlightsQuery, l.InjectionQuery, l.LocalsQuery)
	if err != nil {
		r.log.Warn("failed to compile grammar", zap.String("language", name), zap.Error(err))
		r.failed[name] = struct{}{}
		return nil
	}
	g.Configure(r.recognisedNames)

	r.log.Debug("compiled grammar", zap.String("language", name))
	r.grammars[name] = g
	return g
}

// Close releases every compiled grammar, including retired ones.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, g := range r.grammars {
		g.Close()
		delete(r.grammars, name)
	}
	for _, g := range r.retired {
		g.Close()
	}
	r.retired = nil
}
