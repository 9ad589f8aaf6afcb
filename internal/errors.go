package internal

import (
	"fmt"
	"os"
	"runtime"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
})

// ErrAborted is the sentinel a Transport should wrap when an in-flight
// long-poll was cancelled by the engine itself (resend() or stop()), as
// opposed to failing for genuine transport reasons. The loop checks for this
// with errors.Is rather than matching on an error string.
var ErrAborted = fmt.Errorf("sliding sync: request aborted")

// HTTPError is returned by a Transport when the server responded with a
// non-2xx status. The loop reports this to observers via a
// Lifecycle(RequestFinished) event and then backs off, rather than
// logging-and-swallowing it like a TransportError.
type HTTPError struct {
	StatusCode int
	Err        error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("sliding sync: HTTP %d: %s", e.StatusCode, e.Err)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// TransportError wraps any other failure to complete a long-poll (DNS,
// connection reset, decode failure). It is logged (and captured to Sentry)
// and backed off like an HTTPError, but it is not reported to observers.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sliding sync: transport error: %s", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DuplicateExtensionError is returned by ExtensionRegistry.Register when an
// extension with the same name has already been registered.
type DuplicateExtensionError struct {
	Name string
}

func (e *DuplicateExtensionError) Error() string {
	return fmt.Sprintf("sliding sync: duplicate extension %q", e.Name)
}

// Assert that the expression is true, similar to assert() in C. If expr is false, print or panic.
//
// If expr is false and SLIDINGSYNCCLIENT_DEBUG=1 then the program panics.
// If expr is false and SLIDINGSYNCCLIENT_DEBUG is unset or not '1' then the program logs an error along with
// a field which contains the file/line number of the caller/assertion of Assert.
// Assert should be used to verify invariants which should never be broken during normal functioning
// of the engine, and shouldn't be used to log a normal error e.g network errors. Developers can
// make use of this function by setting SLIDINGSYNCCLIENT_DEBUG=1 when running the client, which will
// fail-fast whenever a programming or logic error occurs.
//
// The msg provided should be the expectation of the assert e.g:
//
//	Assert("list is not empty", len(list) > 0)
//
// Which then produces:
//
//	assertion failed: list is not empty
func Assert(msg string, expr bool) {
	if expr {
		return
	}
	if os.Getenv("SLIDINGSYNCCLIENT_DEBUG") == "1" {
		panic(fmt.Sprintf("assert: %s", msg))
	}
	l := logger.Error()
	_, file, line, ok := runtime.Caller(1)
	if ok {
		l = l.Str("assertion", fmt.Sprintf("%s:%d", file, line))
	}
	_, file, line, ok = runtime.Caller(2)
	if ok {
		l = l.Str("caller", fmt.Sprintf("%s:%d", file, line))
	}
	l.Msg("assertion failed: " + msg)
}

// Logger exposes the package logger so other internal packages (debugserver)
// share the same console-writer configuration instead of constructing their
// own.
func Logger() *zerolog.Logger {
	return &logger
}
