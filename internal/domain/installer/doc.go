// Package installer contains the failure taxonomy shared by every phase of
// the bootstrap run and the mapping from failures to process exit codes.
package installer
