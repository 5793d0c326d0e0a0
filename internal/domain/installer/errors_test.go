package installer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestExitCode verifies that wrapped sentinels map to their dedicated exit codes.
func TestExitCode(t *testing.T) {
	t.Parallel()

	cases := map[error]int{
		nil:                 ExitOK,
		errors.New("boom"):  ExitUnknown,
		ErrNetwork:          ExitNetwork,
		ErrParse:            ExitParse,
		ErrStalledTransfer:  ExitStalledTransfer,
		ErrConnectionReset:  ExitConnectionReset,
		ErrChecksumMismatch: ExitChecksumMismatch,
		ErrLaunch:           ExitLaunch,
		ErrWorkspace:        ExitWorkspace,
		ErrWrite:            ExitWrite,
	}

	for err, want := range cases {
		require.Equal(t, want, ExitCode(err), "%v", err)
	}

	wrapped := fmt.Errorf("download installer: %w", ErrStalledTransfer)
	require.Equal(t, ExitStalledTransfer, ExitCode(wrapped))
}

// TestExitCode_AllFailuresNonZero makes sure every failure kind exits non-zero.
func TestExitCode_AllFailuresNonZero(t *testing.T) {
	t.Parallel()

	for _, entry := range exitCodes {
		require.NotEqual(t, ExitOK, ExitCode(entry.err))
	}
}
