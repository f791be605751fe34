package forwardclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/comfortablynumb/mockdispatch/internal/httpmodel"
)

func TestSendRequestSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Origin", "yes")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))
	defer srv.Close()

	client := New(nil)
	req := httpmodel.Request{Method: "GET", URI: "/a", Headers: httpmodel.NewHeader()}

	pending := client.SendRequest(context.Background(), req, strings.TrimPrefix(srv.URL, "http://"), time.Second)
	resp, err := pending.Wait()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if string(resp.Body) != "created" {
		t.Fatalf("expected body 'created', got %q", resp.Body)
	}
	if resp.Headers.Get("X-Origin") != "yes" {
		t.Fatal("expected origin response header to be preserved")
	}
}

func TestSendRequestConnectionRefusedClassifiesAsConnectionError(t *testing.T) {
	// Find a free port, then immediately close the listener so dialing it
	// yields a connection-refused error.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	client := New(nil)
	req := httpmodel.Request{Method: "GET", URI: "/a", Headers: httpmodel.NewHeader()}

	pending := client.SendRequest(context.Background(), req, addr, 2*time.Second)
	_, err = pending.Wait()

	if err == nil {
		t.Fatal("expected an error for a refused connection")
	}
	if !IsConnectionError(err) {
		t.Fatalf("expected a SocketConnectionError, got %v (%T)", err, err)
	}
}

func TestSendRequestUsesProxyConfiguration(t *testing.T) {
	var sawProxiedRequest bool
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawProxiedRequest = true
		w.WriteHeader(http.StatusOK)
	}))
	defer proxy.Close()

	proxyHost, proxyPortStr, _ := net.SplitHostPort(strings.TrimPrefix(proxy.URL, "http://"))
	proxyPort, _ := strconv.Atoi(proxyPortStr)

	client := New(&ProxyConfiguration{Host: proxyHost, Port: proxyPort})
	req := httpmodel.Request{Method: "GET", URI: "/a", Headers: httpmodel.NewHeader()}

	pending := client.SendRequest(context.Background(), req, "origin.invalid:80", 2*time.Second)
	_, _ = pending.Wait()

	if !sawProxiedRequest {
		t.Fatal("expected the request to be routed through the configured proxy")
	}
}
