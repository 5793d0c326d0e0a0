package installer

import "errors"

var (
	// ErrNetwork is a timeout, transport failure or non-success HTTP status.
	ErrNetwork = errors.New("network error")
	// ErrParse means the release metadata is malformed or incomplete.
	ErrParse = errors.New("parse error")
	// ErrStalledTransfer is raised when the watchdog detects insufficient progress.
	ErrStalledTransfer = errors.New("stalled transfer")
	// ErrConnectionReset means the stream ended early without a stall being flagged.
	ErrConnectionReset = errors.New("connection reset")
	// ErrChecksumMismatch means the payload digest differs from the expected hash.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrLaunch means the installer process could not be created.
	ErrLaunch = errors.New("launch error")
	// ErrWorkspace means the temporary directory or file could not be prepared.
	ErrWorkspace = errors.New("workspace error")
	// ErrWrite means the payload could not be written or flushed to disk.
	ErrWrite = errors.New("write error")
)

// Exit codes reported by the process for each failure kind.
const (
	ExitOK               = 0
	ExitUnknown          = 1
	ExitNetwork          = 2
	ExitParse            = 3
	ExitStalledTransfer  = 4
	ExitConnectionReset  = 5
	ExitChecksumMismatch = 6
	ExitLaunch           = 7
	ExitWorkspace        = 8
	ExitWrite            = 9
)

//nolint:gochecknoglobals // Lookup table, never mutated.
var exitCodes = []struct {
	err  error
	code int
}{
	{ErrStalledTransfer, ExitStalledTransfer},
	{ErrConnectionReset, ExitConnectionReset},
	{ErrChecksumMismatch, ExitChecksumMismatch},
	{ErrNetwork, ExitNetwork},
	{ErrParse, ExitParse},
	{ErrLaunch, ExitLaunch},
	{ErrWorkspace, ExitWorkspace},
	{ErrWrite, ExitWrite},
}

// ExitCode maps err to the process exit status. Nil maps to ExitOK and any
// error outside the taxonomy maps to ExitUnknown.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	for _, entry := range exitCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}

	return ExitUnknown
}
