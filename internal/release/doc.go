// Package release resolves the descriptor of the latest published installer
// build from the update service metadata endpoint.
package release
