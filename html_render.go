package syntax

import (
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"
	"unicode/utf8"
)

var (
	escapeAmpersand   = []byte("&amp;")
	escapeSingle      = []byte("&#39;")
	escapeLessThan    = []byte("&lt;")
	escapeGreaterThan = []byte("&gt;")
	escapeDouble      = []byte("&#34;")
)

// AttributeCallback is a callback function that returns the html element attributes for a highlight span.
// This can be anything from classes, ids, or inline styles.
type AttributeCallback func(h Highlight, languageName string) []byte

type openSpan struct {
	highlight Highlight
	language  string
}

// HTMLRender renders highlight events as html spans.
type HTMLRender struct {
	// ClassPrefix is prepended to the css class of every capture name.
	ClassPrefix string
}

func NewHTMLRender() *HTMLRender {
	return &HTMLRender{
		ClassPrefix: "hl-",
	}
}

// Class returns the css class of a capture name. Dots are replaced by dashes.
func (r *HTMLRender) Class(captureName string) string {
	return r.ClassPrefix + strings.ReplaceAll(captureName, ".", "-")
}

// ClassAttributeCallback returns an [AttributeCallback] adding the class of
// the recognised name of each highlight.
func (r *HTMLRender) ClassAttributeCallback(recognisedNames []string) AttributeCallback {
	return func(h Highlight, _ string) []byte {
		if h == DefaultHighlight || int(h) >= len(recognisedNames) {
			return nil
		}
		return []byte(`class="` + r.Class(recognisedNames[h]) + `"`)
	}
}

// RenderCSS writes one css rule per style of the theme.
func (r *HTMLRender) RenderCSS(w io.Writer, theme Theme) error {
	for _, name := range theme.Names() {
		if _, err := fmt.Fprintf(w, ".%s {\n  %s\n}\n", r.Class(name), theme.Styles[name]); err != nil {
			return err
		}
	}
	return nil
}

// Render renders the source to the writer with spans for each highlight.
// Spans are closed before and reopened after every newline so that every line
// is valid html on its own.
// The [AttributeCallback] is used to generate the classes or inline styles for each span.
func (r *HTMLRender) Render(w io.Writer, events iter.Seq[Event], source []byte, callback AttributeCallback) error {
	var spans []openSpan
	for event := range events {
		switch e := event.(type) {
		case EventStart:
			spans = append(spans, openSpan{highlight: e.Highlight, language: e.Language})
			if err := startHighlight(w, e.Highlight, e.Language, callback); err != nil {
				return fmt.Errorf("error while starting highlight: %w", err)
			}
		case EventEnd:
			spans = spans[:len(spans)-1]
			if err := endHighlight(w); err != nil {
				return fmt.Errorf("error while ending highlight: %w", err)
			}
		case EventSource:
			if err := addText(w, source[e.Start:e.End], spans, callback); err != nil {
				return fmt.Errorf("error while writing source: %w", err)
			}
		}
	}

	return nil
}

func addText(w io.Writer, source []byte, spans []openSpan, callback AttributeCallback) error {
	for len(source) > 0 {
		c, l := utf8.DecodeRune(source)
		source = source[l:]

		if c == utf8.RuneError || c == '\r' {
			continue
		}

		if c == '\n' {
			for range spans {
				if err := endHighlight(w); err != nil {
					return err
				}
			}

			if _, err := w.Write([]byte{'\n'}); err != nil {
				return err
			}

			for _, span := range spans {
				if err := startHighlight(w, span.highlight, span.language, callback); err != nil {
					return err
				}
			}

			continue
		}

		var b []byte
		switch c {
		case '&':
			b = escapeAmpersand
		case '\'':
			b = escapeSingle
		case '<':
			b = escapeLessThan
		case '>':
			b = escapeGreaterThan
		case '"':
			b = escapeDouble
		default:
			b = utf8.AppendRune(nil, c)
		}

		if _, err := w.Write(b); err != nil {
			return err
		}
	}

	return nil
}

func startHighlight(w io.Writer, h Highlight, languageName string, callback AttributeCallback) error {
	if _, err := io.WriteString(w, "<span"); err != nil {
		return err
	}

	var attributes []byte
	if callback != nil {
		attributes = callback(h, languageName)
	}

	if len(attributes) > 0 {
		if _, err := w.Write(slices.Concat([]byte(" "), attributes)); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, ">")
	return err
}

func endHighlight(w io.Writer) error {
	_, err := io.WriteString(w, "</span>")
	return err
}
