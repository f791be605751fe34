package template

import (
	"testing"

	"github.com/comfortablynumb/mockdispatch/internal/httpmodel"
)

func TestTextRendererSubstitutesRequestFields(t *testing.T) {
	r := NewTextRenderer()
	h := httpmodel.NewHeader()
	h.Set("X-Trace", "abc")
	req := httpmodel.Request{Method: "GET", URI: "/a", Headers: h, Body: []byte("hi")}

	out, err := r.Render(httpmodel.Template{Body: "{{.Method}} {{.URI}} {{.Body}}"}, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "GET /a hi" {
		t.Fatalf("unexpected rendering: %q", out)
	}
}

func TestTextRendererInvalidTemplateErrors(t *testing.T) {
	r := NewTextRenderer()
	req := httpmodel.Request{Headers: httpmodel.NewHeader()}

	if _, err := r.Render(httpmodel.Template{Body: "{{.Broken"}, req); err == nil {
		t.Fatal("expected parse error for malformed template")
	}
}

func TestJSRendererEvaluatesExpression(t *testing.T) {
	r := NewJSRenderer()
	req := httpmodel.Request{Method: "POST", URI: "/a", Headers: httpmodel.NewHeader()}

	out, err := r.Render(httpmodel.Template{Body: "request.method + ':' + request.uri"}, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "POST:/a" {
		t.Fatalf("unexpected rendering: %q", out)
	}
}

func TestDispatchingRendererSelectsEngineByField(t *testing.T) {
	d := NewDispatching()
	req := httpmodel.Request{Method: "GET", Headers: httpmodel.NewHeader()}

	out, err := d.Render(httpmodel.Template{Body: "request.method", Engine: "js"}, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "GET" {
		t.Fatalf("expected JS engine to run, got %q", out)
	}

	out, err = d.Render(httpmodel.Template{Body: "{{.Method}}"}, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "GET" {
		t.Fatalf("expected text engine to run, got %q", out)
	}
}
