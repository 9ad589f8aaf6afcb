package sync3

import "context"

// Transport is the external collaborator that actually issues the long-poll
// and mints transaction identifiers. The engine treats it purely as a
// contract: everything about how the request is serialized onto the wire,
// how the long-poll is held open, and how it is aborted belongs to the
// implementation.
//
// Abort is modelled as context cancellation rather than a bespoke
// AbortableFuture type: the engine cancels ctx from resend()/stop(), and a
// well-behaved Transport returns promptly once it observes ctx.Done(). The
// engine distinguishes "I cancelled this on purpose" from "the transport
// failed" by consulting ctx.Err() itself, and also treats a returned error
// wrapping internal.ErrAborted or context.Canceled as an abort; it never
// matches on error text — see internal.ErrAborted's doc comment.
type Transport interface {
	// SlidingSync issues one long-poll against baseURL with the given
	// request body, blocking until a response arrives, ctx is
	// cancelled, or a transport-level failure occurs.
	SlidingSync(ctx context.Context, req *Request, baseURL string) (*Response, error)
	// MakeTxnID mints a fresh, opaque, unique transaction identifier.
	MakeTxnID() string
}
