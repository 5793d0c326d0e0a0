// Package bootstrap runs the single download-then-install workflow.
//
// It creates a temporary workspace, resolves the latest release, streams the
// installer into the workspace under a stall watchdog, verifies its SHA-256,
// runs it silently and finally removes the workspace. Any failure ends the
// run immediately and leaves the workspace on disk.
package bootstrap
