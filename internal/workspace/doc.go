// Package workspace manages the scoped temporary directory that holds the
// downloaded installer for one run.
package workspace
