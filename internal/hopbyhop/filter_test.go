package hopbyhop

import (
	"testing"

	"github.com/comfortablynumb/mockdispatch/internal/httpmodel"
)

func buildRequest() httpmodel.Request {
	h := httpmodel.NewHeader()
	h.Set("Connection", "X-Custom-Drop")
	h.Set("Keep-Alive", "timeout=5")
	h.Set("Transfer-Encoding", "chunked")
	h.Set("X-Custom-Drop", "should-go")
	h.Set("X-Forwarded-By", "MockServer")
	h.Set("Content-Type", "application/json")
	return httpmodel.Request{Method: "GET", URI: "/a", Headers: h}
}

func TestFilterRemovesStandardHopByHopHeaders(t *testing.T) {
	out := Filter(buildRequest())

	for _, name := range []string{"Connection", "Keep-Alive", "Transfer-Encoding"} {
		if out.Headers.Has(name) {
			t.Errorf("expected %s to be stripped", name)
		}
	}
}

func TestFilterRemovesHeadersNamedInConnection(t *testing.T) {
	out := Filter(buildRequest())

	if out.Headers.Has("X-Custom-Drop") {
		t.Error("expected X-Custom-Drop (named in Connection) to be stripped")
	}
}

func TestFilterPreservesOtherHeaders(t *testing.T) {
	out := Filter(buildRequest())

	if out.Headers.Get("Content-Type") != "application/json" {
		t.Error("expected Content-Type to survive filtering")
	}
	if out.Headers.Get("X-Forwarded-By") != "MockServer" {
		t.Error("expected X-Forwarded-By to survive filtering (loop sentinel is not hop-by-hop)")
	}
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	req := buildRequest()
	_ = Filter(req)

	if !req.Headers.Has("Connection") {
		t.Error("input request must not be mutated")
	}
}
