// Package template renders ResponseTemplate/ForwardTemplate bodies through
// the Renderer interface. This file supplies a default text/template-backed
// renderer with faker-style helper functions, so a request/response body
// can be built from `{{.Method}}`-style templates end to end.
package template

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"text/template"
	"time"

	"github.com/comfortablynumb/mockdispatch/internal/httpmodel"
)

// RequestData is the view a template body is executed against.
type RequestData struct {
	Method     string
	URI        string
	Headers    map[string]string
	Body       string
	RemoteAddr string
}

// NewRequestData projects an httpmodel.Request into template-friendly data.
func NewRequestData(req httpmodel.Request) *RequestData {
	headers := make(map[string]string)
	for _, name := range req.Headers.Names() {
		headers[name] = req.Headers.Get(name)
	}
	return &RequestData{
		Method:     req.Method,
		URI:        req.URI,
		Headers:    headers,
		Body:       string(req.Body),
		RemoteAddr: req.RemoteSocket,
	}
}

// Renderer is the contract the Dispatcher calls for ResponseTemplate and
// ForwardTemplate actions: render tmpl against the incoming request and
// return the resulting bytes.
type Renderer interface {
	Render(tmpl httpmodel.Template, req httpmodel.Request) ([]byte, error)
}

// TextRenderer renders Go text/template bodies, extended with a set of
// faker helper functions (uuid, randomString, firstName, email, ...).
type TextRenderer struct {
	funcMap template.FuncMap
}

// NewTextRenderer builds a TextRenderer with the standard helper set.
func NewTextRenderer() *TextRenderer {
	return &TextRenderer{funcMap: helperFuncMap()}
}

// Render implements Renderer.
func (r *TextRenderer) Render(tmpl httpmodel.Template, req httpmodel.Request) ([]byte, error) {
	t, err := template.New("mockdispatch").Funcs(r.funcMap).Parse(tmpl.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, NewRequestData(req)); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.Bytes(), nil
}

func helperFuncMap() template.FuncMap {
	return template.FuncMap{
		"uuid":         generateUUID,
		"randomString": randomString,
		"randomInt":    randomInt,
		"firstName":    randomFirstName,
		"lastName":     randomLastName,
		"email":        randomEmail,
		"now":          time.Now,
		"timestamp":    func() int64 { return time.Now().Unix() },
		"upper":        strings.ToUpper,
		"lower":        strings.ToLower,
	}
}

func generateUUID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b) //nolint:errcheck // best effort
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

func randomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		b[i] = charset[n.Int64()]
	}
	return string(b)
}

func randomInt(min, max int) int {
	if min >= max {
		return min
	}
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(max-min+1)))
	return int(n.Int64()) + min
}

var firstNames = []string{"James", "Mary", "John", "Patricia", "Robert", "Jennifer"}
var lastNames = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia"}

func randomFirstName() string {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(firstNames))))
	return firstNames[n.Int64()]
}

func randomLastName() string {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(lastNames))))
	return lastNames[n.Int64()]
}

func randomEmail() string {
	return strings.ToLower(randomFirstName()) + "." + strings.ToLower(randomLastName()) + "@example.com"
}
