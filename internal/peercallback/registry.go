package peercallback

import (
	"fmt"
	"sync"

	"github.com/comfortablynumb/mockdispatch/internal/httpmodel"
)

// Registry maps httpmodel.CallbackID to the persistent Peer channel that
// services it.
type Registry struct {
	mu    sync.RWMutex
	peers map[httpmodel.CallbackID]*Peer
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{peers: make(map[httpmodel.CallbackID]*Peer)}
}

// Register associates id with peer, replacing any previous registration
// (e.g. on reconnect).
func (r *Registry) Register(id httpmodel.CallbackID, peer *Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[id] = peer
}

// Unregister removes id, e.g. once its underlying connection closes.
func (r *Registry) Unregister(id httpmodel.CallbackID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, id)
}

// ErrCallbackNotConnected is returned when CallbackID has no live peer.
type ErrCallbackNotConnected struct {
	ID httpmodel.CallbackID
}

func (e *ErrCallbackNotConnected) Error() string {
	return fmt.Sprintf("no peer callback connected for %q", e.ID)
}

// Get returns the Peer registered under id, if any.
func (r *Registry) Get(id httpmodel.CallbackID) (*Peer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	peer, ok := r.peers[id]
	if !ok {
		return nil, &ErrCallbackNotConnected{ID: id}
	}
	return peer, nil
}
