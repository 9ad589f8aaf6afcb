package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matrix-org/sliding-sync-client/internal"
	"github.com/matrix-org/sliding-sync-client/sync3"
)

func TestHTTPTransportSlidingSyncRoundTrip(t *testing.T) {
	var gotAuth, gotPos, gotTimeout, gotClientTimeout string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPos = r.URL.Query().Get("pos")
		gotTimeout = r.URL.Query().Get("timeout")
		gotClientTimeout = r.URL.Query().Get("clientTimeout")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sync3.Response{Pos: "next"})
	}))
	defer srv.Close()

	tr := NewHTTPTransport("my-token")
	req := &sync3.Request{Pos: "prev", TimeoutMSecs: 1000, ClientTimeoutMSecs: 11000}
	resp, err := tr.SlidingSync(context.Background(), req, srv.URL)
	if err != nil {
		t.Fatalf("SlidingSync: %v", err)
	}
	if resp.Pos != "next" {
		t.Fatalf("got pos %q want next", resp.Pos)
	}
	if gotAuth != "Bearer my-token" {
		t.Fatalf("got auth header %q", gotAuth)
	}
	if gotPos != "prev" {
		t.Fatalf("got pos query param %q want prev", gotPos)
	}
	if gotTimeout != "1000" {
		t.Fatalf("got timeout query param %q want 1000", gotTimeout)
	}
	if gotClientTimeout != "11000" {
		t.Fatalf("got clientTimeout query param %q want 11000", gotClientTimeout)
	}
}

func TestHTTPTransportNon200ReturnsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"errcode":"M_FORBIDDEN"}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport("my-token")
	_, err := tr.SlidingSync(context.Background(), &sync3.Request{}, srv.URL)
	if err == nil {
		t.Fatalf("expected an error")
	}
	var httpErr *internal.HTTPError
	if !isHTTPError(err, &httpErr) {
		t.Fatalf("expected *internal.HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusForbidden {
		t.Fatalf("got status %d want %d", httpErr.StatusCode, http.StatusForbidden)
	}
}

func TestHTTPTransportMakeTxnIDIsUnique(t *testing.T) {
	tr := NewHTTPTransport("tok")
	a := tr.MakeTxnID()
	b := tr.MakeTxnID()
	if a == b {
		t.Fatalf("expected distinct txn ids, got %q twice", a)
	}
}

func isHTTPError(err error, target **internal.HTTPError) bool {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if he, ok := err.(*internal.HTTPError); ok {
			*target = he
			return true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
