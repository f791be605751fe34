package template

import (
	"fmt"

	"github.com/comfortablynumb/mockdispatch/internal/httpmodel"
	"github.com/dop251/goja"
)

// JSRenderer evaluates a JavaScript expression (tmpl.Body) against the
// request and returns whatever it yields as a string: a fresh goja.Runtime
// per render, with the request exposed as a plain object named `request`.
type JSRenderer struct{}

// NewJSRenderer builds a JSRenderer.
func NewJSRenderer() *JSRenderer {
	return &JSRenderer{}
}

// Render implements Renderer.
func (r *JSRenderer) Render(tmpl httpmodel.Template, req httpmodel.Request) ([]byte, error) {
	vm := goja.New()

	headers := make(map[string]string)
	for _, name := range req.Headers.Names() {
		headers[name] = req.Headers.Get(name)
	}

	if err := vm.Set("request", map[string]interface{}{
		"method":  req.Method,
		"uri":     req.URI,
		"headers": headers,
		"body":    string(req.Body),
	}); err != nil {
		return nil, fmt.Errorf("failed to bind request into JS runtime: %w", err)
	}

	value, err := vm.RunString(tmpl.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate JS template: %w", err)
	}

	return []byte(value.String()), nil
}

// Dispatching renders tmpl with the renderer matching tmpl.Engine ("js" for
// JSRenderer, anything else for TextRenderer). It lets the Dispatcher hold a
// single Renderer field while still supporting both engines.
type Dispatching struct {
	Text *TextRenderer
	JS   *JSRenderer
}

// NewDispatching builds a Dispatching renderer with default engines.
func NewDispatching() *Dispatching {
	return &Dispatching{Text: NewTextRenderer(), JS: NewJSRenderer()}
}

// Render implements Renderer.
func (d *Dispatching) Render(tmpl httpmodel.Template, req httpmodel.Request) ([]byte, error) {
	if tmpl.Engine == "js" {
		return d.JS.Render(tmpl, req)
	}
	return d.Text.Render(tmpl, req)
}
