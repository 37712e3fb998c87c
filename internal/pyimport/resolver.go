// Package pyimport parses the top-level import statements of a Python test
// source and resolves them to the production source files they pull in,
// following re-export chains through aggregator modules.
package pyimport

// Resolver is the capability an Extractor needs to resolve imports against a
// watched tree: where the root package lives, and which directories are
// known sub-packages. It is passed explicitly into every call instead of
// being a back-reference held by the test source, so the extractor stays
// a pure function of its inputs.
type Resolver struct {
	// RootPackage is the absolute path to the outermost enclosing package.
	RootPackage string

	// SubPackages is the set of absolute directory paths discovered under
	// the watched tree, used by the package-import predicate.
	SubPackages map[string]bool
}
