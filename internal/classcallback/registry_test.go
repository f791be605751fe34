package classcallback

import (
	"context"
	"testing"

	"github.com/comfortablynumb/mockdispatch/internal/httpmodel"
)

func TestInvokeResponseNativeGo(t *testing.T) {
	r := NewRegistry()
	r.RegisterResponseClass("Greeter", func(_ context.Context, req httpmodel.Request) (httpmodel.Response, error) {
		return httpmodel.Response{StatusCode: 200, Body: []byte("hi " + req.Method)}, nil
	})

	resp, err := r.InvokeResponse(context.Background(), "Greeter", httpmodel.Request{Method: "GET"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "hi GET" {
		t.Fatalf("unexpected body: %q", resp.Body)
	}
}

func TestInvokeResponseUnknownClass(t *testing.T) {
	r := NewRegistry()
	_, err := r.InvokeResponse(context.Background(), "Nope", httpmodel.Request{})
	if err == nil {
		t.Fatal("expected ErrClassNotFound")
	}
	if _, ok := err.(*ErrClassNotFound); !ok {
		t.Fatalf("expected *ErrClassNotFound, got %T", err)
	}
}

func TestInvokeResponseScript(t *testing.T) {
	r := NewRegistry()
	r.RegisterResponseClassScript("Scripted", `response = {status_code: 201, body: "from-js:" + request.method}`)

	resp, err := r.InvokeResponse(context.Background(), "Scripted", httpmodel.Request{Method: "PUT", Headers: httpmodel.NewHeader()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != 201 || string(resp.Body) != "from-js:PUT" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestInvokeForwardScriptOverridesURI(t *testing.T) {
	r := NewRegistry()
	r.RegisterForwardClassScript("Rewriter", `forwardRequest = {uri: "/rewritten"}`)

	req := httpmodel.Request{Method: "GET", URI: "/orig", Headers: httpmodel.NewHeader()}
	out, err := r.InvokeForward(context.Background(), "Rewriter", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.URI != "/rewritten" {
		t.Fatalf("expected rewritten URI, got %q", out.URI)
	}
	if out.Method != "GET" {
		t.Fatal("expected unset fields to retain original request's values")
	}
}

func TestInvokeForwardScriptNoOverridePassesThrough(t *testing.T) {
	r := NewRegistry()
	r.RegisterForwardClassScript("PassThrough", `1 + 1`)

	req := httpmodel.Request{Method: "GET", URI: "/orig", Headers: httpmodel.NewHeader()}
	out, err := r.InvokeForward(context.Background(), "PassThrough", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.URI != "/orig" {
		t.Fatalf("expected original URI when script sets no override, got %q", out.URI)
	}
}
