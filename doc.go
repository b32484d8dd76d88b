/*
Package syntax provides incremental, multi-language syntax highlighting via [tree-sitter](https://github.com/tree-sitter/tree-sitter).

A document is held by a [Forest]: one syntax tree for the document grammar and one per embedded language
region found by the grammar's injection query. Edits are applied with [Forest.ApplyEdits], which reparses only
the layers an edit touched and keeps the injected layers in sync.

# Usage

Create a [Grammar] for every language and configure the capture names used by your theme.
An [InjectionCallback] resolves the markers of injected languages: a name, a file name or the
interpreter of a shebang line. The Resolve method of the registry in the language package is one.

	language := tree_sitter.NewLanguage(tree_sitter_go.Language())

	grammar, err := syntax.NewGrammar(language, "go", highlightsQuery, injectionQuery, localsQuery)
	if err != nil {
		log.Fatal(err)
	}
	grammar.Configure(theme.Names())

	forest, err := syntax.Open(source, grammar, syntax.WithInjectionCallback(registry.Resolve))
	if err != nil {
		log.Fatal(err)
	}
	defer forest.Close()

	for event := range forest.Highlight(0, forest.Len()) {
		switch e := event.(type) {
		case syntax.EventStart:
			log.Printf("Highlight start: %s (%s)", e.Capture, e.Language)
		case syntax.EventEnd:
			log.Printf("Highlight end")
		case syntax.EventSource:
			log.Printf("Source: %d-%d", e.Start, e.End)
		}
	}

After the document changed pass the new text together with the edits that produced it:

	err = forest.ApplyEdits(newSource, syntax.Edit{StartByte: 10, RemovedLen: 3, InsertedLen: 5})

Other queries, for example text objects, run over all layers through [Forest.Query] and [Forest.TextObjects].
*/
package syntax
