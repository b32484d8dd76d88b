// Package query compiles tree-sitter queries and runs them against a single
// syntax tree.
//
// Compilation is atomic: a query either compiles completely, including its
// predicates and directives, or fails with a positioned [*CompileError].
// Cursors produce matches and captures lazily and never fail; a cursor that
// hits its match limit sets its truncation flag instead.
package query

import (
	"fmt"
	"slices"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// ErrorKind classifies a [CompileError].
type ErrorKind int

const (
	KindSyntax ErrorKind = iota
	KindUndefinedNode
	KindUndefinedField
	KindUndefinedCapture
	KindInvalidPredicate
	KindImpossiblePattern
	KindLanguage
	KindUnknownPredicate
)

func (k ErrorKind) String() string {
	switch k {
	case KindSyntax:
		return "syntax error"
	case KindUndefinedNode:
		return "undefined node type"
	case KindUndefinedField:
		return "undefined field"
	case KindUndefinedCapture:
		return "undefined capture"
	case KindInvalidPredicate:
		return "invalid predicate"
	case KindImpossiblePattern:
		return "impossible pattern"
	case KindLanguage:
		return "incompatible language"
	case KindUnknownPredicate:
		return "unknown predicate"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// CompileError is returned by [Compile]. Row and Column are zero based.
type CompileError struct {
	Kind    ErrorKind
	Row     uint
	Column  uint
	Offset  uint
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("query %s at %d:%d: %s", e.Kind, e.Row+1, e.Column+1, e.Message)
}

func fromQueryError(err *tree_sitter.QueryError) *CompileError {
	kind := KindSyntax
	switch err.Kind {
	case tree_sitter.QueryErrorNodeType:
		kind = KindUndefinedNode
	case tree_sitter.QueryErrorField:
		kind = KindUndefinedField
	case tree_sitter.QueryErrorCapture:
		kind = KindUndefinedCapture
	case tree_sitter.QueryErrorPredicate:
		kind = KindInvalidPredicate
	case tree_sitter.QueryErrorStructure:
		kind = KindImpossiblePattern
	case tree_sitter.QueryErrorLanguage:
		kind = KindLanguage
	}
	return &CompileError{
		Kind:    kind,
		Row:     err.Row,
		Column:  err.Column,
		Offset:  err.Offset,
		Message: err.Message,
	}
}

func errorAt(source string, offset uint, kind ErrorKind, format string, args ...any) *CompileError {
	var row, column uint
	for i := 0; i < len(source) && uint(i) < offset; i++ {
		if source[i] == '\n' {
			row++
			column = 0
			continue
		}
		column++
	}
	return &CompileError{
		Kind:    kind,
		Row:     row,
		Column:  column,
		Offset:  offset,
		Message: fmt.Sprintf(format, args...),
	}
}

// CompileOption configures [Compile].
type CompileOption func(*compileOptions)

type compileOptions struct {
	propertyKeys []string
}

// WithPropertyKeys restricts the keys accepted by `#set!` directives. Any other
// key fails compilation with [KindUnknownPredicate].
func WithPropertyKeys(keys ...string) CompileOption {
	return func(o *compileOptions) {
		o.propertyKeys = append(o.propertyKeys, keys...)
	}
}

// Query is a compiled set of patterns. It is immutable and may be shared by
// cursors running on different goroutines.
type Query struct {
	ts           *tree_sitter.Query
	captureNames []string
	predicates   [][]predicate
}

// Compile compiles source against language.
func Compile(language *tree_sitter.Language, source string, opts ...CompileOption) (*Query, error) {
	var o compileOptions
	for _, opt := range opts {
		opt(&o)
	}

	ts, qerr := tree_sitter.NewQuery(language, source)
	if qerr != nil {
		return nil, fromQueryError(qerr)
	}

	predicates := make([][]predicate, ts.PatternCount())
	for i := range ts.PatternCount() {
		for _, p := range ts.GeneralPredicates(i) {
			pred, err := parsePredicate(p)
			if err != nil {
				offset := ts.StartByteForPattern(i)
				ts.Close()
				return nil, errorAt(source, offset, err.kind, "%s", err.message)
			}
			predicates[i] = append(predicates[i], pred)
		}

		if o.propertyKeys == nil {
			continue
		}
		for _, setting := range ts.PropertySettings(i) {
			if !slices.Contains(o.propertyKeys, setting.Key) {
				offset := ts.StartByteForPattern(i)
				ts.Close()
				return nil, errorAt(source, offset, KindUnknownPredicate, "unsupported property %q", setting.Key)
			}
		}
	}

	return &Query{
		ts:           ts,
		captureNames: ts.CaptureNames(),
		predicates:   predicates,
	}, nil
}

// Close releases the native query.
func (q *Query) Close() {
	q.ts.Close()
}

// PatternCount returns the number of patterns in the query.
func (q *Query) PatternCount() uint {
	return q.ts.PatternCount()
}

// PatternStart returns the byte offset of a pattern in the query source.
func (q *Query) PatternStart(pattern uint) uint {
	return q.ts.StartByteForPattern(pattern)
}

// CaptureNames returns the capture names indexed by capture index.
func (q *Query) CaptureNames() []string {
	return q.captureNames
}

// CaptureIndex returns the index of the named capture.
func (q *Query) CaptureIndex(name string) (uint, bool) {
	i := slices.Index(q.captureNames, name)
	if i == -1 {
		return 0, false
	}
	return uint(i), true
}

// Property returns the value of a `#set!` directive on pattern. ok reports
// whether the key is set at all; valueless directives return an empty value.
func (q *Query) Property(pattern uint, key string) (value string, ok bool) {
	for _, setting := range q.ts.PropertySettings(pattern) {
		if setting.Key != key {
			continue
		}
		if setting.Value != nil {
			return *setting.Value, true
		}
		return "", true
	}
	return "", false
}

// PropertyPredicate reports whether pattern has an `#is?` or `#is-not?`
// predicate on key. positive is false for `#is-not?`.
func (q *Query) PropertyPredicate(pattern uint, key string) (positive bool, ok bool) {
	for _, p := range q.ts.PropertyPredicates(pattern) {
		if p.Property.Key == key {
			return p.Positive, true
		}
	}
	return false, false
}

// satisfies evaluates the engine's own predicates. Native text predicates are
// already applied by the tree-sitter cursor.
func (q *Query) satisfies(match *tree_sitter.QueryMatch, source []byte) bool {
	for _, p := range q.predicates[match.PatternIndex] {
		if !p.satisfied(match.Captures, source) {
			return false
		}
	}
	return true
}
