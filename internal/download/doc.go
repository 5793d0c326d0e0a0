// Package download streams the installer payload to disk while hashing it,
// supervised by a watchdog that aborts transfers that stop making progress.
//
// The downloader and the watchdog share a Progress value. The downloader is
// the only writer of the byte counter; either side may raise the abort flag,
// which is never lowered again. The watchdog goroutine is not awaited: it
// notices the abort flag on its next tick and returns.
package download
