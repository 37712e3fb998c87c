// Package version provides the pywatch tool version.
package version

// Version is the pywatch tool version.
// Can be overridden at build time with:
//   go build -ldflags "-X github.com/pywatch/pywatch/pkg/version.Version=2.0.1"
var Version = "dev"
