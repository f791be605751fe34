// Package classcallback implements named server-side classes for the
// ResponseClassCallback/ForwardClassCallback actions: invoking a named
// class to produce a response, or to produce the request to forward. Go
// has no JVM-style reflective class loading, so a ClassName instead indexes
// a registry of callables — either native Go functions registered by the
// embedding process, or a JavaScript function registered by name and run
// through goja.
package classcallback

import (
	"context"
	"fmt"
	"sync"

	"github.com/comfortablynumb/mockdispatch/internal/httpmodel"
	"github.com/dop251/goja"
)

// ResponseClass produces a response for the matched request.
type ResponseClass func(ctx context.Context, req httpmodel.Request) (httpmodel.Response, error)

// ForwardClass produces the request to forward, derived from the matched
// request.
type ForwardClass func(ctx context.Context, req httpmodel.Request) (httpmodel.Request, error)

// Registry maps httpmodel.ClassName to the Go or JS callable it names.
type Registry struct {
	mu              sync.RWMutex
	responseClasses map[httpmodel.ClassName]ResponseClass
	forwardClasses  map[httpmodel.ClassName]ForwardClass
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		responseClasses: make(map[httpmodel.ClassName]ResponseClass),
		forwardClasses:  make(map[httpmodel.ClassName]ForwardClass),
	}
}

// RegisterResponseClass registers a native Go ResponseClassCallback
// implementation under name.
func (r *Registry) RegisterResponseClass(name httpmodel.ClassName, fn ResponseClass) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responseClasses[name] = fn
}

// RegisterForwardClass registers a native Go ForwardClassCallback
// implementation under name.
func (r *Registry) RegisterForwardClass(name httpmodel.ClassName, fn ForwardClass) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forwardClasses[name] = fn
}

// RegisterResponseClassScript registers a JavaScript ResponseClassCallback:
// script is evaluated with `request` bound, and must assign an object with
// status_code/headers/body to a global `response`.
func (r *Registry) RegisterResponseClassScript(name httpmodel.ClassName, script string) {
	r.RegisterResponseClass(name, func(_ context.Context, req httpmodel.Request) (httpmodel.Response, error) {
		return runResponseScript(script, req)
	})
}

// RegisterForwardClassScript registers a JavaScript ForwardClassCallback:
// script is evaluated with `request` bound, and must assign an object with
// method/uri/headers/body to a global `forwardRequest`.
func (r *Registry) RegisterForwardClassScript(name httpmodel.ClassName, script string) {
	r.RegisterForwardClass(name, func(_ context.Context, req httpmodel.Request) (httpmodel.Request, error) {
		return runForwardScript(script, req)
	})
}

// ErrClassNotFound is returned when ClassName has no registered callback.
type ErrClassNotFound struct {
	Name httpmodel.ClassName
}

func (e *ErrClassNotFound) Error() string {
	return fmt.Sprintf("no class callback registered for %q", e.Name)
}

// InvokeResponse runs the ResponseClassCallback registered under name.
func (r *Registry) InvokeResponse(ctx context.Context, name httpmodel.ClassName, req httpmodel.Request) (httpmodel.Response, error) {
	r.mu.RLock()
	fn, ok := r.responseClasses[name]
	r.mu.RUnlock()
	if !ok {
		return httpmodel.Response{}, &ErrClassNotFound{Name: name}
	}
	return fn(ctx, req)
}

// InvokeForward runs the ForwardClassCallback registered under name.
func (r *Registry) InvokeForward(ctx context.Context, name httpmodel.ClassName, req httpmodel.Request) (httpmodel.Request, error) {
	r.mu.RLock()
	fn, ok := r.forwardClasses[name]
	r.mu.RUnlock()
	if !ok {
		return httpmodel.Request{}, &ErrClassNotFound{Name: name}
	}
	return fn(ctx, req)
}

func bindRequest(vm *goja.Runtime, req httpmodel.Request) error {
	headers := make(map[string]string)
	for _, name := range req.Headers.Names() {
		headers[name] = req.Headers.Get(name)
	}
	return vm.Set("request", map[string]interface{}{
		"method":  req.Method,
		"uri":     req.URI,
		"headers": headers,
		"body":    string(req.Body),
	})
}

func runResponseScript(script string, req httpmodel.Request) (httpmodel.Response, error) {
	vm := goja.New()
	if err := bindRequest(vm, req); err != nil {
		return httpmodel.Response{}, err
	}
	if _, err := vm.RunString(script); err != nil {
		return httpmodel.Response{}, fmt.Errorf("class callback script failed: %w", err)
	}

	raw := vm.Get("response")
	if raw == nil || goja.IsUndefined(raw) {
		return httpmodel.Response{}, fmt.Errorf("class callback script did not set a `response` global")
	}
	obj, ok := raw.Export().(map[string]interface{})
	if !ok {
		return httpmodel.Response{}, fmt.Errorf("class callback `response` must be an object")
	}

	resp := httpmodel.Response{StatusCode: 200, Headers: httpmodel.NewHeader()}
	if sc, ok := obj["status_code"].(int64); ok {
		resp.StatusCode = int(sc)
	}
	if body, ok := obj["body"].(string); ok {
		resp.Body = []byte(body)
	}
	if headers, ok := obj["headers"].(map[string]interface{}); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				resp.Headers.Set(k, s)
			}
		}
	}
	return resp, nil
}

func runForwardScript(script string, req httpmodel.Request) (httpmodel.Request, error) {
	vm := goja.New()
	if err := bindRequest(vm, req); err != nil {
		return httpmodel.Request{}, err
	}
	if _, err := vm.RunString(script); err != nil {
		return httpmodel.Request{}, fmt.Errorf("class callback script failed: %w", err)
	}

	raw := vm.Get("forwardRequest")
	if raw == nil || goja.IsUndefined(raw) {
		return req, nil // no override: forward the original request unchanged
	}
	obj, ok := raw.Export().(map[string]interface{})
	if !ok {
		return httpmodel.Request{}, fmt.Errorf("class callback `forwardRequest` must be an object")
	}

	out := req.Clone()
	if method, ok := obj["method"].(string); ok {
		out.Method = method
	}
	if uri, ok := obj["uri"].(string); ok {
		out.URI = uri
	}
	if body, ok := obj["body"].(string); ok {
		out.Body = []byte(body)
	}
	if headers, ok := obj["headers"].(map[string]interface{}); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				out.Headers.Set(k, s)
			}
		}
	}
	return out, nil
}
