// Package errors provides small error-handling helpers shared by pilotdeck packages.
package errors

import (
	"io"

	"github.com/rs/zerolog"
)

// DeferClose closes an io.Closer and logs a failure instead of dropping it.
// Use this in defer statements for response bodies and files.
func DeferClose(logger zerolog.Logger, closer io.Closer, msg string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}

// DrainAndClose discards what is left of r before closing it so the
// underlying HTTP connection can be reused.
func DrainAndClose(logger zerolog.Logger, r io.ReadCloser, msg string) {
	if r == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64*1024))
	DeferClose(logger, r, msg)
}
