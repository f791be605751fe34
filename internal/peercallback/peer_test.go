package peercallback

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/comfortablynumb/mockdispatch/internal/httpmodel"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

// echoServer upgrades and reflects back a wireResponse built from the
// wireRequest it receives, exercising one full round-trip.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		for {
			var req wireRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			resp := wireResponse{ID: req.ID, StatusCode: 200, Body: "echo:" + req.Body}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
}

func dialTestServer(t *testing.T, server *httptest.Server) *Peer {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial test server: %v", err)
	}
	return NewPeer(conn)
}

func TestPeerSendReceivesCorrelatedResponse(t *testing.T) {
	server := echoServer(t)
	defer server.Close()

	peer := dialTestServer(t, server)
	defer peer.Close()

	req := httpmodel.Request{Method: "GET", URI: "/x", Headers: httpmodel.NewHeader(), Body: []byte("hi")}
	pending := peer.Send(context.Background(), req)

	resp, err := pending.Wait()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "echo:hi" {
		t.Fatalf("unexpected body: %q", resp.Body)
	}
}

func TestPeerConcurrentSendsCorrelateIndependently(t *testing.T) {
	server := echoServer(t)
	defer server.Close()

	peer := dialTestServer(t, server)
	defer peer.Close()

	const n = 20
	pendings := make([]interface {
		Wait() (httpmodel.Response, error)
	}, n)
	for i := 0; i < n; i++ {
		req := httpmodel.Request{Method: "GET", Headers: httpmodel.NewHeader(), Body: []byte{byte('a' + i)}}
		pendings[i] = peer.Send(context.Background(), req)
	}

	for i, p := range pendings {
		resp, err := p.Wait()
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
		want := "echo:" + string(byte('a'+i))
		if string(resp.Body) != want {
			t.Fatalf("request %d: expected %q, got %q", i, want, resp.Body)
		}
	}
}

func TestPeerCloseFailsPendingRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Never respond; hold the connection open until the test closes it.
		var req wireRequest
		_ = conn.ReadJSON(&req)
		time.Sleep(2 * time.Second)
		conn.Close()
	}))
	defer server.Close()

	peer := dialTestServer(t, server)

	req := httpmodel.Request{Method: "GET", Headers: httpmodel.NewHeader()}
	pending := peer.Send(context.Background(), req)

	time.Sleep(50 * time.Millisecond)
	peer.Close()

	_, err := pending.Wait()
	if err == nil {
		t.Fatal("expected pending request to fail once the peer channel closes")
	}
}
