// Package transport builds the HTTP client shared by the release resolver
// and the downloader, and the per-operation deadlines they rely on.
package transport
