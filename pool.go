package syntax

import (
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// parserPool hands out parsers to concurrent layer parses.
type parserPool struct {
	mu      sync.Mutex
	parsers []*tree_sitter.Parser
}

func (p *parserPool) push(parser *tree_sitter.Parser) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parsers = append(p.parsers, parser)
}

func (p *parserPool) pop() *tree_sitter.Parser {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.parsers) == 0 {
		return tree_sitter.NewParser()
	}

	parser := p.parsers[len(p.parsers)-1]
	p.parsers = p.parsers[:len(p.parsers)-1]
	return parser
}

func (p *parserPool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, parser := range p.parsers {
		parser.Close()
	}
	p.parsers = nil
}
