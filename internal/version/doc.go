// Package version exposes build metadata injected through Go ldflags.
package version
