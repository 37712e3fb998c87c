package pyimport

import (
	"fmt"
	"os"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// ParserPool holds a single pooled Tree-sitter Python parser. Tree-sitter
// parsers are not thread-safe, so parsing is serialized with a mutex; the
// Tree returned by Parse is safe to read concurrently afterward, which is
// what lets Extractor.Dependencies run in parallel over many test sources.
type ParserPool struct {
	mu     sync.Mutex
	parser *tree_sitter.Parser
}

// NewParserPool creates a pooled Python parser.
func NewParserPool() (*ParserPool, error) {
	p := tree_sitter.NewParser()
	lang := tree_sitter.NewLanguage(tree_sitter_python.Language())
	if err := p.SetLanguage(lang); err != nil {
		p.Close()
		return nil, fmt.Errorf("set python language: %w", err)
	}
	return &ParserPool{parser: p}, nil
}

// Close releases the pooled parser.
func (pp *ParserPool) Close() {
	if pp.parser != nil {
		pp.parser.Close()
	}
}

// parseFile reads path and parses it into a Tree-sitter tree. The caller
// must call tree.Close() when done.
func (pp *ParserPool) parseFile(path string) (*tree_sitter.Tree, []byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	pp.mu.Lock()
	tree := pp.parser.Parse(content, nil)
	pp.mu.Unlock()

	if tree == nil {
		return nil, nil, fmt.Errorf("tree-sitter parse returned nil for %s", path)
	}
	return tree, content, nil
}
