package peercallback

import (
	"testing"

	"github.com/comfortablynumb/mockdispatch/internal/httpmodel"
)

func TestRegistryGetUnknownIDErrors(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("missing")
	if err == nil {
		t.Fatal("expected ErrCallbackNotConnected")
	}
	if _, ok := err.(*ErrCallbackNotConnected); !ok {
		t.Fatalf("expected *ErrCallbackNotConnected, got %T", err)
	}
}

func TestRegistryRegisterAndUnregister(t *testing.T) {
	r := NewRegistry()
	peer := &Peer{}
	id := httpmodel.CallbackID("billing-service")

	r.Register(id, peer)
	got, err := r.Get(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != peer {
		t.Fatal("expected Get to return the registered peer")
	}

	r.Unregister(id)
	if _, err := r.Get(id); err == nil {
		t.Fatal("expected error after unregister")
	}
}
