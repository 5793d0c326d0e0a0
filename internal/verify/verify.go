package verify

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/oshokin/code-winstaller/internal/domain/installer"
)

// SHA256 compares digest with the hex-encoded expected hash in constant time.
// Hex decoding accepts either letter case. Any difference, including an
// undecodable or wrongly sized expected value, wraps installer.ErrChecksumMismatch.
func SHA256(digest []byte, expectedHex string) error {
	expected, err := hex.DecodeString(strings.TrimSpace(expectedHex))
	if err != nil {
		return fmt.Errorf("decode expected hash: %w: %w", installer.ErrChecksumMismatch, err)
	}

	if len(expected) != sha256.Size {
		return fmt.Errorf("expected hash has %d bytes, want %d: %w",
			len(expected), sha256.Size, installer.ErrChecksumMismatch)
	}

	if subtle.ConstantTimeCompare(digest, expected) != 1 {
		return fmt.Errorf("got %x, want %x: %w", digest, expected, installer.ErrChecksumMismatch)
	}

	return nil
}
