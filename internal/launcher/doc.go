// Package launcher runs the verified installer silently and reports how it exited.
//
// The installer is started with a fixed argument list, never through a shell,
// and waited for without a deadline. Its exit code is reported, not enforced.
package launcher
