package syntax

import (
	"slices"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"go.gopad.dev/go-tree-sitter-syntax/internal/ranges"
	"go.gopad.dev/go-tree-sitter-syntax/query"
)

type localDef struct {
	name      string
	start     uint
	end       uint
	highlight *Highlight
}

type localScope struct {
	start    uint
	end      uint
	inherits bool
	parent   int
	children []int
	defs     []localDef
}

// locals is the scope tree of one layer. Scope 0 spans the whole layer.
type locals struct {
	scopes []localScope
}

func isLocalDefinition(captureName string) bool {
	return captureName == captureLocalDefinition || strings.HasPrefix(captureName, captureLocalDefinition+".")
}

// buildLocals runs the locals query of l over tree. Captures arrive ordered by
// start byte, so scopes are nested with a stack of the open ones.
func (f *Forest) buildLocals(l *Layer, tree *tree_sitter.Tree) *locals {
	g := l.grammar
	if g.locals == nil {
		return nil
	}
	from, to, _ := ranges.Hull(l.ranges)

	ls := &locals{
		scopes: []localScope{{end: ranges.Max, parent: -1}},
	}
	stack := []int{0}

	source := f.text
	cursor := g.locals.Captures(tree.RootNode(), source, query.WithByteRange(from, to), query.WithMatchLimit(f.opts.matchLimit))
	for c := range cursor.All() {
		start, end := c.StartByte(), c.EndByte()
		for len(stack) > 1 && ls.scopes[stack[len(stack)-1]].end <= start {
			stack = stack[:len(stack)-1]
		}
		top := stack[len(stack)-1]

		switch {
		case isCapture(g.localScopeCaptureIndex, c.Index):
			inherits := true
			if value, ok := g.locals.Property(c.PatternIndex, propertyLocalScopeInherits); ok {
				inherits = value != "false"
			}
			index := len(ls.scopes)
			ls.scopes = append(ls.scopes, localScope{
				start:    start,
				end:      end,
				inherits: inherits,
				parent:   top,
			})
			ls.scopes[top].children = append(ls.scopes[top].children, index)
			stack = append(stack, index)
		case isLocalDefinition(c.Name):
			var highlight *Highlight
			if h, ok := highlightAt(g.definitionIndices, c.Index); ok {
				highlight = &h
			}
			ls.scopes[top].defs = append(ls.scopes[top].defs, localDef{
				name:      string(source[start:end]),
				start:     start,
				end:       end,
				highlight: highlight,
			})
		}
	}
	return ls
}

// scopeAt returns the innermost scope containing pos.
func (ls *locals) scopeAt(pos uint) int {
	scope := 0
	for {
		children := ls.scopes[scope].children
		i, _ := slices.BinarySearchFunc(children, pos, func(child int, pos uint) int {
			if ls.scopes[child].end <= pos {
				return -1
			}
			return 1
		})
		if i == len(children) || ls.scopes[children[i]].start > pos {
			return scope
		}
		scope = children[i]
	}
}

// lookup returns the last definition of name visible at pos for which visible
// holds, searching outwards while scopes inherit.
func (ls *locals) lookup(name string, pos uint, visible func(localDef) bool) (localDef, bool) {
	scope := ls.scopeAt(pos)
	for {
		s := &ls.scopes[scope]
		for _, def := range slices.Backward(s.defs) {
			if def.name == name && visible(def) {
				return def, true
			}
		}
		if !s.inherits || s.parent < 0 {
			return localDef{}, false
		}
		scope = s.parent
	}
}

// reference returns the definition a reference at pos refers to. Only
// definitions ending before the reference count.
func (ls *locals) reference(name string, pos uint) (localDef, bool) {
	return ls.lookup(name, pos, func(def localDef) bool {
		return def.end <= pos
	})
}

// defined reports whether name at pos is a local: a definition or a
// reference to one.
func (ls *locals) defined(name string, pos uint) bool {
	_, ok := ls.lookup(name, pos, func(def localDef) bool {
		return def.start <= pos
	})
	return ok
}
