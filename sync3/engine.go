package sync3

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matrix-org/sliding-sync-client/internal"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultPollTimeout is how long the engine asks the server to hold a
// long-poll open before returning empty, matching the teacher's
// DefaultTimeoutMSecs.
const DefaultPollTimeout = 10 * time.Second

// bufferPeriod is added to the poll timeout to form the client-side
// timeout, ensuring the client times out strictly after the server is
// expected to.
const bufferPeriod = 10 * time.Second

// backoffPeriod is the fixed delay after an HTTP or transport error before
// the loop retries.
const backoffPeriod = 3 * time.Second

// EngineOption configures a SyncEngine at construction time.
type EngineOption func(*SyncEngine)

// WithPollTimeout overrides DefaultPollTimeout.
func WithPollTimeout(d time.Duration) EngineOption {
	return func(e *SyncEngine) { e.pollTimeout = d }
}

// WithMetricsRegisterer registers the engine's prometheus metrics into reg
// instead of a private per-engine registry.
func WithMetricsRegisterer(reg prometheus.Registerer) EngineOption {
	return func(e *SyncEngine) { e.metrics = newEngineMetrics(reg) }
}

// SyncEngine is the outer loop described in spec §4.5: it composes requests,
// invokes the Transport, serializes responses through the OpReplayer and the
// event bus, and handles interruption, backoff and shutdown.
type SyncEngine struct {
	transport Transport
	baseURL   string

	pollTimeout time.Duration
	metrics     *engineMetrics

	mu               sync.Mutex
	lists            []*SlidingList
	pos              string
	pendingTxnID     string
	cancel           context.CancelFunc
	needsResend      bool
	terminated       bool
	listModifiedCount int64

	subscriptions *SubscriptionSet
	registry      *ExtensionRegistry
	ledger        *TransactionLedger
	events        *eventBus

	stopCh chan struct{}
}

// NewSyncEngine constructs an engine against the given Transport and
// base URL. Lists, subscriptions and extensions are all empty; use set_list
// and friends before calling Start.
func NewSyncEngine(transport Transport, baseURL string, opts ...EngineOption) *SyncEngine {
	e := &SyncEngine{
		transport:     transport,
		baseURL:       baseURL,
		pollTimeout:   DefaultPollTimeout,
		subscriptions: NewSubscriptionSet(),
		registry:      NewExtensionRegistry(),
		events:        newEventBus(),
		stopCh:        make(chan struct{}),
	}
	e.ledger = NewTransactionLedger(transport.MakeTxnID)
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = newEngineMetrics(nil)
	}
	return e
}

// ListData is the clone returned by GetListData.
type ListData struct {
	JoinedCount       int64
	RoomIndexToRoomID map[int64]string
}

// ListLength returns the number of lists.
func (e *SyncEngine) ListLength() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.lists)
}

// GetListData returns a clone of list i's derived state, or nil if i is out
// of range.
func (e *SyncEngine) GetListData(i int) *ListData {
	l := e.listAt(i)
	if l == nil {
		return nil
	}
	return &ListData{JoinedCount: l.JoinedCount(), RoomIndexToRoomID: l.RoomIDToIndexMap()}
}

// GetList returns a clone of list i's params, or nil if i is out of range.
func (e *SyncEngine) GetList(i int) *RequestListParams {
	l := e.listAt(i)
	if l == nil {
		return nil
	}
	p := l.Params()
	return &p
}

func (e *SyncEngine) listAt(i int) *SlidingList {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.lists) {
		return nil
	}
	return e.lists[i]
}

// SetListRanges updates only list i's ranges and triggers a resend.
func (e *SyncEngine) SetListRanges(i int, ranges SliceRanges) (*Completion, error) {
	l := e.listAt(i)
	if l == nil {
		e.mu.Lock()
		n := len(e.lists)
		e.mu.Unlock()
		return nil, &IndexOutOfBoundsError{Index: i, Length: n}
	}
	l.UpdateRanges(ranges)
	return e.Resend(), nil
}

// SetList replaces list i's params (or, if i == list_length(), appends a new
// list), marks it modified and triggers a resend. Any other index is
// rejected deterministically.
func (e *SyncEngine) SetList(i int, params RequestListParams) (*Completion, error) {
	e.mu.Lock()
	n := len(e.lists)
	switch {
	case i == n:
		e.lists = append(e.lists, NewSlidingList(params))
	case i >= 0 && i < n:
		e.lists[i].Replace(params)
	default:
		e.mu.Unlock()
		return nil, &IndexOutOfBoundsError{Index: i, Length: n}
	}
	e.mu.Unlock()
	atomic.AddInt64(&e.listModifiedCount, 1)
	return e.Resend(), nil
}

// GetRoomSubscriptions returns a clone of the desired subscription set.
func (e *SyncEngine) GetRoomSubscriptions() []string {
	return e.subscriptions.Desired()
}

// ModifyRoomSubscriptions replaces the desired subscription set and triggers
// a resend.
func (e *SyncEngine) ModifyRoomSubscriptions(roomIDs []string) *Completion {
	e.subscriptions.SetDesired(roomIDs)
	return e.Resend()
}

// ModifyRoomSubscriptionInfo replaces the subscription params template,
// clears confirmed (every desired room will be re-sent) and triggers a
// resend.
func (e *SyncEngine) ModifyRoomSubscriptionInfo(params RoomSubscription) *Completion {
	e.subscriptions.SetParams(params)
	return e.Resend()
}

// RegisterExtension adds ext to the engine's ExtensionRegistry.
func (e *SyncEngine) RegisterExtension(ext Extension) error {
	return e.registry.Register(ext)
}

// OutstandingTxns returns the number of issued-but-not-yet-acknowledged-or-
// superseded transactions, for introspection endpoints.
func (e *SyncEngine) OutstandingTxns() int {
	return e.ledger.Len()
}

// OnRoomData, OnLifecycle and OnList subscribe to the three event families.
// Each returns an unsubscribe func.
func (e *SyncEngine) OnRoomData(fn func(RoomDataEvent)) func()   { return e.events.OnRoomData(fn) }
func (e *SyncEngine) OnLifecycle(fn func(LifecycleEvent)) func() { return e.events.OnLifecycle(fn) }
func (e *SyncEngine) OnList(fn func(ListEvent)) func()           { return e.events.OnList(fn) }

// Resend interrupts the current long-poll (if any) and returns a completion
// handle resolved when a future successful response acknowledges the
// associated txn. Calling Resend multiple times before the loop composes its
// next request mints a fresh ledger entry each time: only the most recent
// one is attached as the request's txn_id, but every earlier one is still
// rejected with a SupersededError once any later txn_id is acknowledged, so
// each call's outcome remains individually observable.
func (e *SyncEngine) Resend() *Completion {
	txnID, completion := e.ledger.Issue()
	e.mu.Lock()
	e.pendingTxnID = txnID
	e.needsResend = true
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return completion
}

// Stop terminates the loop, aborts any in-flight request and detaches all
// listeners. The loop exits at the next iteration boundary; Start returns
// once it has.
func (e *SyncEngine) Stop() {
	e.mu.Lock()
	if e.terminated {
		e.mu.Unlock()
		return
	}
	e.terminated = true
	cancel := e.cancel
	e.mu.Unlock()
	close(e.stopCh)
	if cancel != nil {
		cancel()
	}
	e.events.detachAll()
	e.ledger.Stop()
}

type subscriptionDiff struct {
	newSubs []string
	gone    []string
}

// Start runs the main loop described in spec §4.5. It blocks until Stop has
// been observed.
func (e *SyncEngine) Start(ctx context.Context) {
	for {
		if e.runIteration(ctx) {
			return
		}
	}
}

// runIteration runs one compose/poll/process cycle under its own
// sync.iteration task (internal.StartTask), with the long-poll round trip
// itself wrapped in a nested sync.request span (internal.StartSpan) so a
// configured OTLP collector sees one task per iteration and one child span
// per request, matching ConfigureOTLP's wiring in cmd/syncclient. It returns
// true if the loop should stop.
func (e *SyncEngine) runIteration(ctx context.Context) (stop bool) {
	e.mu.Lock()
	if e.terminated {
		e.mu.Unlock()
		return true
	}
	e.needsResend = false
	listModSnapshot := atomic.LoadInt64(&e.listModifiedCount)
	e.mu.Unlock()

	taskCtx, task := internal.StartTask(ctx, "sync.iteration")
	defer task.End()

	req, diff := e.composeRequest()

	// Bound the round trip at ClientTimeoutMSecs, strictly longer than
	// the server's own TimeoutMSecs, so a server that never responds
	// can't hang this loop forever.
	iterCtx, cancel := context.WithTimeout(taskCtx, time.Duration(req.ClientTimeoutMSecs)*time.Millisecond)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	spanCtx, span := internal.StartSpan(iterCtx, "sync.request")
	start := time.Now()
	resp, err := e.transport.SlidingSync(spanCtx, req, e.baseURL)
	span.End()
	e.metrics.requestDuration.Observe(time.Since(start).Seconds())

	e.mu.Lock()
	e.cancel = nil
	e.mu.Unlock()
	cancel()

	if err != nil {
		if e.wasAborted(iterCtx, err) {
			e.mu.Lock()
			needsResend := e.needsResend
			terminated := e.terminated
			e.mu.Unlock()
			if terminated {
				return true
			}
			if !needsResend {
				// aborted for a reason other than resend()/stop() racing
				// in; still don't emit a failure or back off, matching
				// the source's treatment of any abort-sourced error.
			}
			return false
		}
		e.handleTransportFailure(iterCtx, err)
		return e.waitBackoff()
	}

	e.processResponse(resp, listModSnapshot, diff)
	return false
}

// wasAborted reports whether err is attributable to this iteration's own
// context being cancelled by Resend()/Stop(), as opposed to a genuine
// transport failure. Implementations may also wrap internal.ErrAborted
// directly; either signal is honoured. A context.DeadlineExceeded is NOT
// treated as an abort: that means ClientTimeoutMSecs elapsed without a
// server response, which is exactly the "server never returns" failure the
// client timeout exists to surface, so it falls through to
// handleTransportFailure and backoff like any other transport error.
func (e *SyncEngine) wasAborted(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.Canceled) {
		return true
	}
	return errors.Is(err, internal.ErrAborted) || errors.Is(err, context.Canceled)
}

func (e *SyncEngine) handleTransportFailure(ctx context.Context, err error) {
	var httpErr *internal.HTTPError
	if errors.As(err, &httpErr) {
		logger.Warn().Int("status", httpErr.StatusCode).Err(err).Msg("sync loop: HTTP error")
		e.events.emitLifecycle(LifecycleEvent{State: RequestFinished, Response: nil, Err: err})
	} else {
		logger.Warn().Err(err).Msg("sync loop: transport error")
		internal.GetSentryHubFromContextOrDefault(ctx).CaptureException(err)
	}
}

// waitBackoff sleeps for backoffPeriod, returning true if Stop() fired while
// waiting (in which case the loop should exit immediately rather than start
// another iteration).
func (e *SyncEngine) waitBackoff() bool {
	t := time.NewTimer(backoffPeriod)
	defer t.Stop()
	select {
	case <-t.C:
		return false
	case <-e.stopCh:
		return true
	}
}

func (e *SyncEngine) composeRequest() (*Request, subscriptionDiff) {
	e.mu.Lock()
	lists := append([]*SlidingList(nil), e.lists...)
	pos := e.pos
	txnID := e.pendingTxnID
	e.pendingTxnID = ""
	e.mu.Unlock()

	fragments := make([]RequestListFragment, len(lists))
	for i, l := range lists {
		fragments[i] = l.Snapshot(false)
	}

	isInitial := pos == ""
	newSubs, gone := e.subscriptions.Diff()

	req := &Request{
		Lists:              fragments,
		Pos:                pos,
		TimeoutMSecs:       int(e.pollTimeout / time.Millisecond),
		ClientTimeoutMSecs: int((e.pollTimeout + bufferPeriod) / time.Millisecond),
		Extensions:         e.registry.ComposeRequest(isInitial),
		TxnID:              txnID,
	}
	if len(gone) > 0 {
		req.UnsubscribeRooms = gone
	}
	if len(newSubs) > 0 {
		params := e.subscriptions.Params()
		req.RoomSubscriptions = make(map[string]RoomSubscription, len(newSubs))
		for _, roomID := range newSubs {
			req.RoomSubscriptions[roomID] = params
		}
	}
	return req, subscriptionDiff{newSubs: newSubs, gone: gone}
}

func (e *SyncEngine) processResponse(resp *Response, listModSnapshot int64, diff subscriptionDiff) {
	e.mu.Lock()
	e.pos = resp.Pos
	lists := append([]*SlidingList(nil), e.lists...)
	e.mu.Unlock()

	e.subscriptions.ApplyDiff(diff.newSubs, diff.gone)

	listsChangedMidFlight := atomic.LoadInt64(&e.listModifiedCount) != listModSnapshot

	for _, l := range lists {
		l.ClearModified()
	}
	for i, lr := range resp.Lists {
		if i < len(lists) {
			lists[i].SetJoinedCount(lr.Count)
		}
	}

	e.events.emitLifecycle(LifecycleEvent{State: RequestFinished, Response: resp})
	e.registry.DispatchResponse(PreProcess, resp.Extensions)

	roomIDs := make([]string, 0, len(resp.Rooms))
	for roomID := range resp.Rooms {
		roomIDs = append(roomIDs, roomID)
	}
	sortStrings(roomIDs)
	for _, roomID := range roomIDs {
		data := resp.Rooms[roomID]
		if data.RequiredState == nil {
			data.RequiredState = []json.RawMessage{}
		}
		if data.Timeline == nil {
			data.Timeline = []json.RawMessage{}
		}
		e.events.emitRoomData(RoomDataEvent{RoomID: roomID, Data: data})
	}

	var touched []int
	if !listsChangedMidFlight {
		for i, lr := range resp.Lists {
			if i >= len(lists) {
				continue
			}
			if len(lr.Ops) > 0 {
				e.metrics.countOps(lr.Ops)
				ApplyListResponse(lists[i], lr)
				touched = append(touched, i)
			}
		}
	}

	e.events.emitLifecycle(LifecycleEvent{State: Complete, Response: resp})
	e.registry.DispatchResponse(PostProcess, resp.Extensions)

	for _, i := range touched {
		e.metrics.listWindowSize.WithLabelValues(strconv.Itoa(i)).Set(float64(lists[i].Len()))
		e.events.emitList(ListEvent{
			Index:             i,
			JoinedCount:       lists[i].JoinedCount(),
			RoomIndexToRoomID: lists[i].RoomIDToIndexMap(),
		})
	}

	e.ledger.Acknowledge(resp.TxnID)
	e.metrics.outstandingTxns.Set(float64(e.ledger.Len()))
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
