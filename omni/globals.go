package internal

import (
	"os"

	"github.com/rs/zerolog"
)

var (
	// DefaultAppName is used for config lookup paths and log fields.
	DefaultAppName        = "omnisearch"
	DefaultAppCMDShortCut = "omni"

	// DefaultDrive is indexed when the caller passes an empty or invalid
	// drive letter.
	DefaultDrive = "C"
)

const (
	// DefaultEnumBufferSize is the reply buffer handed to each MFT
	// enumeration control call.
	DefaultEnumBufferSize = 4 * 1024 * 1024

	// DefaultWatchBufferSize is the reply buffer for journal reads.
	DefaultWatchBufferSize = 1 * 1024 * 1024

	// DefaultSequentialBufferSize is the per-worker scratch buffer for
	// sequential reads (full hashing, byte comparison).
	DefaultSequentialBufferSize = 1 * 1024 * 1024

	// DefaultChunkBufferSize is the per-worker scratch buffer for the
	// head/tail reads of the quick signature.
	DefaultChunkBufferSize = 64 * 1024
)

// GetLogger returns a properly configured zerolog logger instance
func GetLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Str("app", DefaultAppName).Logger()
}
