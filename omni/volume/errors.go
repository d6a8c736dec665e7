package volume

import (
	"errors"
	"fmt"
)

// Win32 error codes the core classifies. Declared locally so the
// classification logic compiles and tests run on every platform.
const (
	codeFileNotFound            = 2
	codePathNotFound            = 3
	codeNotReady                = 21
	codeHandleEOF               = 38
	codeBadNetPath              = 53
	codeBadNetName              = 67
	codeInvalidParameter        = 87
	codeInvalidName             = 123
	codeJournalDeleteInProgress = 1178
	codeJournalNotActive        = 1179
	codeJournalEntryDeleted     = 1181
)

// Common sentinel errors used across the core packages.
var (
	// ErrUnsupported is returned by device operations on platforms without
	// raw NTFS volume access.
	ErrUnsupported = errors.New("raw volume access is only supported on Windows")

	// ErrCancelled reports that an operation observed a token bump or a
	// cancel request and published no partial state.
	ErrCancelled = errors.New("operation cancelled")
)

// DeviceError is an OS-level failure of a volume or file operation. It
// carries the raw error code so callers can classify it, and renders as one
// sentence with the hex code and system message.
type DeviceError struct {
	Context string
	Code    uint32
	Message string
}

func (e *DeviceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s (0x%08X)", e.Context, e.Code)
	}
	return fmt.Sprintf("%s (0x%08X %s)", e.Context, e.Code, e.Message)
}

// NewDeviceError builds a DeviceError from a context sentence and a raw
// error code.
func NewDeviceError(context string, code uint32, message string) *DeviceError {
	return &DeviceError{Context: context, Code: code, Message: message}
}

// ErrorCode extracts the raw OS code from err, or 0 when err carries none.
func ErrorCode(err error) uint32 {
	var de *DeviceError
	if errors.As(err, &de) {
		return de.Code
	}
	return 0
}

// IsEndOfFile reports whether code marks the end of an MFT enumeration
// handle.
func IsEndOfFile(code uint32) bool {
	return code == codeHandleEOF
}

// IsJournalMissing reports whether a journal query failed because no journal
// exists on the volume. The driver answers by creating one.
func IsJournalMissing(code uint32) bool {
	return code == codeJournalNotActive ||
		code == codeJournalDeleteInProgress ||
		code == codeFileNotFound
}

// IsJournalLost reports whether a journal read failed because the journal
// was truncated, deleted, or recreated underneath the watcher. The only
// recovery is a full reindex.
func IsJournalLost(code uint32) bool {
	return code == codeJournalEntryDeleted ||
		code == codeJournalDeleteInProgress ||
		code == codeJournalNotActive ||
		code == codeInvalidParameter
}

// IsPathMissing reports whether a per-file stat failure means the indexed
// entry is stale (deleted, moved, or on an unreachable share). Stale
// entries are dropped silently.
func IsPathMissing(code uint32) bool {
	return code == codeFileNotFound ||
		code == codePathNotFound ||
		code == codeInvalidName ||
		code == codeBadNetPath ||
		code == codeBadNetName ||
		code == codeNotReady
}
