package query

import (
	"fmt"
	"regexp"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

type predicateKind uint8

const (
	predicateEqFold predicateKind = iota
	predicateAnyOfFold
	predicateMatchFold
	predicateContains
)

// predicate is one of the case-insensitive or containment predicates the
// engine evaluates on top of tree-sitter's native text predicates.
type predicate struct {
	kind    predicateKind
	negated bool
	capture uint
	// other is the second capture of a capture-to-capture comparison.
	other  *uint
	values []string
	regex  *regexp.Regexp
}

var predicateNames = map[string]struct {
	kind    predicateKind
	negated bool
}{
	"eq-ci?":         {predicateEqFold, false},
	"not-eq-ci?":     {predicateEqFold, true},
	"any-of-ci?":     {predicateAnyOfFold, false},
	"not-any-of-ci?": {predicateAnyOfFold, true},
	"match-ci?":      {predicateMatchFold, false},
	"not-match-ci?":  {predicateMatchFold, true},
	"contains?":      {predicateContains, false},
	"not-contains?":  {predicateContains, true},
}

type predicateError struct {
	kind    ErrorKind
	message string
}

func parsePredicate(p tree_sitter.QueryPredicate) (predicate, *predicateError) {
	def, ok := predicateNames[p.Operator]
	if !ok {
		return predicate{}, &predicateError{KindUnknownPredicate, fmt.Sprintf("unknown predicate #%s", p.Operator)}
	}

	invalid := func(format string, args ...any) (predicate, *predicateError) {
		return predicate{}, &predicateError{KindInvalidPredicate, fmt.Sprintf("#%s: "+format, append([]any{p.Operator}, args...)...)}
	}

	if len(p.Args) < 2 {
		return invalid("expected a capture and at least one argument, got %d arguments", len(p.Args))
	}
	if p.Args[0].CaptureId == nil {
		return invalid("first argument must be a capture")
	}

	pred := predicate{
		kind:    def.kind,
		negated: def.negated,
		capture: *p.Args[0].CaptureId,
	}

	rest := p.Args[1:]
	switch def.kind {
	case predicateEqFold:
		if len(rest) != 1 {
			return invalid("expected exactly two arguments, got %d", len(p.Args))
		}
		if rest[0].CaptureId != nil {
			pred.other = rest[0].CaptureId
			return pred, nil
		}
		pred.values = []string{*rest[0].String}
	case predicateMatchFold:
		if len(rest) != 1 || rest[0].String == nil {
			return invalid("expected a capture and a pattern")
		}
		re, err := regexp.Compile("(?i)" + *rest[0].String)
		if err != nil {
			return invalid("invalid pattern: %v", err)
		}
		pred.regex = re
	default:
		for _, arg := range rest {
			if arg.String == nil {
				return invalid("arguments after the capture must be strings")
			}
			pred.values = append(pred.values, *arg.String)
		}
	}

	return pred, nil
}

func (p predicate) satisfied(captures []tree_sitter.QueryCapture, source []byte) bool {
	var other *string
	if p.other != nil {
		for _, c := range captures {
			if uint(c.Index) == *p.other {
				text := c.Node.Utf8Text(source)
				other = &text
				break
			}
		}
		if other == nil {
			return true
		}
	}

	for _, c := range captures {
		if uint(c.Index) != p.capture {
			continue
		}
		if p.test(c.Node.Utf8Text(source), other) == p.negated {
			return false
		}
	}
	return true
}

func (p predicate) test(text string, other *string) bool {
	switch p.kind {
	case predicateEqFold:
		if other != nil {
			return strings.EqualFold(text, *other)
		}
		return strings.EqualFold(text, p.values[0])
	case predicateAnyOfFold:
		for _, v := range p.values {
			if strings.EqualFold(text, v) {
				return true
			}
		}
		return false
	case predicateMatchFold:
		return p.regex.MatchString(text)
	case predicateContains:
		for _, v := range p.values {
			if strings.Contains(text, v) {
				return true
			}
		}
		return false
	}
	return false
}
