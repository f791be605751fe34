// Package peercallback round-trips a request to a remote callback handler
// over a persistent WebSocket channel, for ResponseObjectCallback and
// ForwardObjectCallback actions. Unlike a class callback, the producer lives
// on the other end of the wire and may itself reply asynchronously.
package peercallback

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/comfortablynumb/mockdispatch/internal/httpmodel"
	"github.com/comfortablynumb/mockdispatch/internal/observability"
	"github.com/comfortablynumb/mockdispatch/internal/scheduler"
	"github.com/gorilla/websocket"
)

// wireRequest is the JSON envelope sent to a peer for one round-trip.
type wireRequest struct {
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	URI     string            `json:"uri"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

// wireResponse is the JSON envelope a peer sends back, correlated by ID.
type wireResponse struct {
	ID         string            `json:"id"`
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
	Error      string            `json:"error,omitempty"`
}

// Peer is one persistent channel to a remote callback handler.
type Peer struct {
	conn   *websocket.Conn
	nextID uint64

	mu      sync.Mutex // serializes writes; gorilla/websocket connections are not write-concurrent-safe
	pending map[string]*scheduler.Pending[httpmodel.Response]

	closeOnce sync.Once
	closed    chan struct{}
}

// NewPeer wraps an already-established *websocket.Conn and starts its read
// loop. The caller owns the connection's lifecycle up to this call; Peer
// owns it afterward.
func NewPeer(conn *websocket.Conn) *Peer {
	p := &Peer{
		conn:    conn,
		pending: make(map[string]*scheduler.Pending[httpmodel.Response]),
		closed:  make(chan struct{}),
	}
	observability.RecordPeerConnection(1)
	go p.readLoop()
	return p
}

func (p *Peer) readLoop() {
	defer close(p.closed)
	defer observability.RecordPeerConnection(-1)
	for {
		var msg wireResponse
		if err := p.conn.ReadJSON(&msg); err != nil {
			p.failAllPending(err)
			return
		}

		p.mu.Lock()
		pending, ok := p.pending[msg.ID]
		if ok {
			delete(p.pending, msg.ID)
		}
		p.mu.Unlock()

		if !ok {
			continue // unknown/stale correlation id
		}

		if msg.Error != "" {
			pending.Complete(httpmodel.Response{}, fmt.Errorf("peer callback error: %s", msg.Error))
			continue
		}

		headers := httpmodel.NewHeader()
		for k, v := range msg.Headers {
			headers.Set(k, v)
		}
		pending.Complete(httpmodel.Response{
			StatusCode: msg.StatusCode,
			Headers:    headers,
			Body:       []byte(msg.Body),
		}, nil)
	}
}

func (p *Peer) failAllPending(err error) {
	p.mu.Lock()
	pending := p.pending
	p.pending = make(map[string]*scheduler.Pending[httpmodel.Response])
	p.mu.Unlock()

	for _, pd := range pending {
		pd.Complete(httpmodel.Response{}, fmt.Errorf("peer channel closed: %w", err))
	}
}

// Send ships req to the peer and returns a Pending that completes when the
// peer's matching response arrives.
func (p *Peer) Send(_ context.Context, req httpmodel.Request) *scheduler.Pending[httpmodel.Response] {
	pending := scheduler.NewPending[httpmodel.Response]()

	id := fmt.Sprintf("%d", atomic.AddUint64(&p.nextID, 1))
	headers := make(map[string]string)
	for _, name := range req.Headers.Names() {
		headers[name] = req.Headers.Get(name)
	}

	msg := wireRequest{ID: id, Method: req.Method, URI: req.URI, Headers: headers, Body: string(req.Body)}

	p.mu.Lock()
	p.pending[id] = pending
	err := p.conn.WriteJSON(msg)
	p.mu.Unlock()

	if err != nil {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
		pending.Complete(httpmodel.Response{}, fmt.Errorf("failed to send to peer callback: %w", err))
	}

	return pending
}

// Close closes the underlying connection and fails any in-flight round-trip.
func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.conn.Close()
	})
	return err
}
