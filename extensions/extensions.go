// Package extensions provides concrete sync3.Extension implementations for
// the named side channels the server may speak: end-to-end encryption
// counters, to-device messaging, account data, typing notifications and read
// receipts. Each type is safe for concurrent use: OnRequest/OnResponse are
// called from the engine's own loop goroutine, but accessor methods are
// expected to be called from whatever goroutine owns UI state.
package extensions

import (
	"os"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
})
