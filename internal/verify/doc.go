// Package verify checks downloaded payloads against their published digests.
package verify
