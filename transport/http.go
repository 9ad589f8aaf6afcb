// Package transport provides a reference sync3.Transport that speaks the
// sliding sync long-poll protocol over plain HTTP, modelled on the way the
// upstream proxy's sync2.HTTPClient issues requests against a homeserver.
package transport

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/matrix-org/sliding-sync-client/internal"
	"github.com/matrix-org/sliding-sync-client/sync3"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
})

// ClientVersion is sent as part of the User-Agent header on every request.
var ClientVersion = "dev"

// HTTPTransport is the reference sync3.Transport implementation: one
// long-lived *http.Client (wrapped with otelhttp so every long-poll becomes a
// span) shared across every call to SlidingSync.
type HTTPTransport struct {
	client      *http.Client
	accessToken string
	endpoint    string // e.g. /_matrix/client/unstable/org.matrix.msc3575/sync
}

// NewHTTPTransport builds a transport that authenticates with accessToken
// and posts to endpoint relative to whatever baseURL the engine is
// constructed with.
func NewHTTPTransport(accessToken string) *HTTPTransport {
	return &HTTPTransport{
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		accessToken: accessToken,
		endpoint:    "/_matrix/client/unstable/org.matrix.msc3575/sync",
	}
}

// MakeTxnID mints a random 16-byte hex-encoded transaction id, unique enough
// that collisions across the lifetime of a single client process are not a
// practical concern.
func (t *HTTPTransport) MakeTxnID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is a fatal environment problem; fall back to
		// a timestamp-derived id rather than panicking mid-request.
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

// SlidingSync issues one long-poll HTTP request. ctx cancellation aborts the
// underlying HTTP round trip; the resulting error is wrapped in
// internal.ErrAborted so the engine's loop can distinguish a deliberate
// abort from a genuine transport failure without string-matching.
func (t *HTTPTransport) SlidingSync(ctx context.Context, req *sync3.Request, baseURL string) (*sync3.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &internal.TransportError{Err: fmt.Errorf("marshal request: %w", err)}
	}

	u, err := url.Parse(baseURL + t.endpoint)
	if err != nil {
		return nil, &internal.TransportError{Err: fmt.Errorf("parse base URL: %w", err)}
	}
	q := u.Query()
	if req.Pos != "" {
		q.Set("pos", req.Pos)
	}
	q.Set("timeout", fmt.Sprintf("%d", req.TimeoutMSecs))
	if req.ClientTimeoutMSecs > 0 {
		q.Set("clientTimeout", fmt.Sprintf("%d", req.ClientTimeoutMSecs))
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, &internal.TransportError{Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "sliding-sync-client-"+ClientVersion)
	httpReq.Header.Set("Authorization", "Bearer "+t.accessToken)

	res, err := t.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", internal.ErrAborted, err)
		}
		return nil, &internal.TransportError{Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &internal.HTTPError{
			StatusCode: res.StatusCode,
			Err:        fmt.Errorf("%s", respBody),
		}
	}

	var out sync3.Response
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, &internal.TransportError{Err: fmt.Errorf("decode response: %w", err)}
	}
	return &out, nil
}
