package pyimport

import (
	"os"
	"path/filepath"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Extractor derives the production dependencies of a test source by parsing
// its top-level import statements with a pooled Tree-sitter Python parser.
// An Extractor holds no mutable state of its own and is safe to share
// across goroutines; all per-call state lives in the arguments and return
// value, so many test sources can be processed concurrently by a bounded
// pool of goroutines.
type Extractor struct {
	pool *ParserPool
}

// NewExtractor creates an Extractor backed by pool.
func NewExtractor(pool *ParserPool) *Extractor {
	return &Extractor{pool: pool}
}

// Dependencies returns the set of absolute production-source paths that
// testPath depends on through its top-level imports. If testPath cannot be
// read or its parse tree contains a syntax error, it returns an empty set
// rather than an error: the subprocess run will surface the underlying
// error at run time.
func (e *Extractor) Dependencies(testPath string, r Resolver) map[string]bool {
	deps := make(map[string]bool)
	tree, content, err := e.pool.parseFile(testPath)
	if err != nil {
		return deps
	}
	defer tree.Close()
	if tree.RootNode().HasError() {
		return deps
	}

	importerDir := filepath.Dir(testPath)
	root := tree.RootNode()
	for i := uint(0); i < root.ChildCount(); i++ {
		node := root.Child(i)
		if node == nil {
			continue
		}
		switch node.Kind() {
		case "import_statement":
			for _, modName := range dottedNamesIn(node, content) {
				if dep, ok := resolveModule(modName, r.RootPackage, importerDir); ok {
					deps[dep] = true
				}
			}
		case "import_from_statement":
			e.handleFromImport(node, content, r, importerDir, deps)
		}
	}
	return deps
}

// handleFromImport handles a `from A.B import name1, name2` statement:
// if A.B resolves to a file (an aggregator module), each imported name is
// chased through its re-export chain; names that cannot be resolved fall
// back to yielding the aggregator itself, at most once. If A.B does not
// resolve to a file but is a package under the watched tree, each name is
// resolved as A.B.name directly.
func (e *Extractor) handleFromImport(
	node *tree_sitter.Node, content []byte, r Resolver, importerDir string, deps map[string]bool,
) {
	modNode := node.ChildByFieldName("module_name")
	if modNode == nil || modNode.Kind() == "relative_import" {
		return
	}
	modString := nodeText(modNode, content)
	names := importedNamesIn(node, content, modNode)

	if dep, found := resolveModule(modString, r.RootPackage, importerDir); found {
		unresolved := false
		for _, name := range names {
			if target, ok := e.resolveFromImport(dep, name, r, map[string]bool{}); ok {
				deps[target] = true
			} else {
				unresolved = true
			}
		}
		if unresolved {
			deps[dep] = true
		}
		return
	}

	if !isPackageImport(modString, r) {
		return
	}
	for _, name := range names {
		if target, ok := resolveModule(modString+"."+name, r.RootPackage, importerDir); ok {
			deps[target] = true
		}
	}
}

// resolveFromImport follows a re-export chain: it parses mod's own
// top-level imports looking for one whose name matches imp (a wildcard
// import matches any name), recursing into the matched module. A chase
// that ends at a module whose imports no longer mention imp has found the
// defining module, which is returned. It returns ("", false) when mod's
// imports do not mention imp at all, signaling to the caller that the
// aggregator itself should be yielded. seen breaks import cycles.
func (e *Extractor) resolveFromImport(mod, imp string, r Resolver, seen map[string]bool) (string, bool) {
	if seen[mod] {
		return "", false
	}
	seen[mod] = true
	tree, content, err := e.pool.parseFile(mod)
	if err != nil {
		return "", false
	}
	defer tree.Close()

	importerDir := filepath.Dir(mod)
	root := tree.RootNode()
	for i := uint(0); i < root.ChildCount(); i++ {
		node := root.Child(i)
		if node == nil {
			continue
		}
		switch node.Kind() {
		case "import_from_statement":
			modNode := node.ChildByFieldName("module_name")
			if modNode == nil || modNode.Kind() == "relative_import" {
				continue
			}
			modString := nodeText(modNode, content)
			names := importedNamesIn(node, content, modNode)

			if dep, found := resolveModule(modString, r.RootPackage, importerDir); found {
				for _, name := range names {
					// A bare "import *" re-exports everything the
					// aggregator pulled in, so it can match any
					// requested name; chase through it the same way
					// as an explicit match.
					if name != imp && name != "*" {
						continue
					}
					if target, ok := e.resolveFromImport(dep, imp, r, seen); ok {
						return target, true
					}
					// Nothing below dep re-exports imp, so dep is
					// where the name lives.
					return dep, true
				}
				continue
			}
			if !isPackageImport(modString, r) {
				continue
			}
			for _, name := range names {
				if name != imp {
					continue
				}
				return resolveModule(modString+"."+name, r.RootPackage, importerDir)
			}
		case "import_statement":
			for _, modName := range dottedNamesIn(node, content) {
				if modName != imp {
					continue
				}
				return resolveModule(modName, r.RootPackage, importerDir)
			}
		}
	}
	return "", false
}

// dottedNamesIn returns the raw dotted module paths named by an
// import_statement's children, ignoring any "as alias" (resolution always
// targets the pre-alias dotted path).
func dottedNamesIn(node *tree_sitter.Node, content []byte) []string {
	var out []string
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "dotted_name":
			out = append(out, nodeText(child, content))
		case "aliased_import":
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				out = append(out, nodeText(nameNode, content))
			}
		}
	}
	return out
}

// importedNamesIn returns the names listed after "import" in a
// from-import, skipping the module_name node itself. A bare "*" is
// reported as the literal string "*".
func importedNamesIn(node *tree_sitter.Node, content []byte, modNode *tree_sitter.Node) []string {
	var out []string
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || sameNode(child, modNode) {
			continue
		}
		switch child.Kind() {
		case "wildcard_import":
			out = append(out, "*")
		case "aliased_import":
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				out = append(out, nodeText(nameNode, content))
			}
		case "dotted_name", "identifier":
			out = append(out, nodeText(child, content))
		}
	}
	return out
}

func sameNode(a, b *tree_sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

func nodeText(node *tree_sitter.Node, content []byte) string {
	return string(content[node.StartByte():node.EndByte()])
}

// resolveModule resolves a dotted module path to a file: translate dots
// to path separators, append ".py", and look first under the parent of
// the root package, then relative to importerDir.
func resolveModule(moduleString, rootPackage, importerDir string) (string, bool) {
	rel := filepath.Join(strings.Split(moduleString, ".")...) + ".py"

	if rootPackage != "" {
		candidate := filepath.Join(filepath.Dir(rootPackage), rel)
		if fileExists(candidate) {
			return candidate, true
		}
	}

	candidate := filepath.Join(importerDir, rel)
	if fileExists(candidate) {
		return candidate, true
	}
	return "", false
}

// isPackageImport reports whether pkg names a package of the watched
// tree: either its tail segment is the root package's own basename, or
// it names one of the known sub-packages.
func isPackageImport(pkg string, r Resolver) bool {
	relPath := filepath.Join(strings.Split(pkg, ".")...)
	if filepath.Base(relPath) == filepath.Base(r.RootPackage) {
		return true
	}
	absPath := filepath.Join(filepath.Dir(r.RootPackage), relPath)
	return r.SubPackages[absPath]
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
