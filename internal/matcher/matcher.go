// Package matcher is a reference expectation store: a priority-sorted list
// of Spec/Expectation pairs, matched by case-insensitive exact or regex
// method/URI/header comparison, gjson JSON-path lookups, and gojsonschema
// validation.
package matcher

import (
	"encoding/json"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/comfortablynumb/mockdispatch/internal/httpmodel"
	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

// RegexConfig says which Request fields of a Spec are regex patterns rather
// than exact-match strings (compared case-insensitively).
type RegexConfig struct {
	URI     bool
	Method  bool
	Headers bool
	Body    bool
}

// JSONPathMatcher matches a GJSON path expression against the request body.
type JSONPathMatcher struct {
	Path  string
	Value string
	Regex bool
}

// Spec is the matching predicate half of an Expectation: everything the
// Matcher needs to decide whether a request is accepted. The Action half
// lives in httpmodel.Expectation.
type Spec struct {
	URI            string
	Method         string
	Headers        map[string]string
	Body           string
	Regex          RegexConfig
	JSONPath       []JSONPathMatcher
	ValidateSchema map[string]interface{}
	Priority       int
}

// entry pairs a Spec with the Expectation it guards.
type entry struct {
	spec        Spec
	expectation httpmodel.Expectation
}

// Registration is one Spec/Expectation pair, used by Reset to replace the
// whole expectation set atomically.
type Registration struct {
	Spec        Spec
	Expectation httpmodel.Expectation
}

// Matcher finds the first Expectation whose Spec accepts an incoming
// request, or reports that none do.
type Matcher struct {
	mu      sync.RWMutex
	entries []entry
}

// New creates a Matcher with no expectations registered.
func New() *Matcher {
	return &Matcher{}
}

// Register adds an expectation, keeping entries sorted by descending
// priority.
func (m *Matcher) Register(spec Spec, expectation httpmodel.Expectation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, entry{spec: spec, expectation: expectation})
	m.sortLocked()
}

// Reset replaces every registered expectation in one atomic step.
func (m *Matcher) Reset(registrations []Registration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make([]entry, 0, len(registrations))
	for _, r := range registrations {
		m.entries = append(m.entries, entry{spec: r.Spec, expectation: r.Expectation})
	}
	m.sortLocked()
}

func (m *Matcher) sortLocked() {
	sort.SliceStable(m.entries, func(i, j int) bool {
		return m.entries[i].spec.Priority > m.entries[j].spec.Priority
	})
}

// FirstMatching returns the first matching Expectation, or (Expectation{},
// false) when nothing matches.
func (m *Matcher) FirstMatching(req httpmodel.Request) (httpmodel.Expectation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.entries {
		if matches(req, e.spec) {
			return e.expectation, true
		}
	}
	return httpmodel.Expectation{}, false
}

func matches(req httpmodel.Request, spec Spec) bool {
	if !matchString(req.Method, spec.Method, spec.Regex.Method) {
		return false
	}
	if !matchString(uriPath(req.URI), spec.URI, spec.Regex.URI) {
		return false
	}
	if !matchHeaders(req.Headers, spec.Headers, spec.Regex.Headers) {
		return false
	}
	body := string(req.Body)
	if spec.Body != "" && !matchString(body, spec.Body, spec.Regex.Body) {
		return false
	}
	if len(spec.JSONPath) > 0 && !matchJSONPath(body, spec.JSONPath) {
		return false
	}
	if len(spec.ValidateSchema) > 0 && !validateSchema(body, spec.ValidateSchema) {
		return false
	}
	return true
}

func uriPath(uri string) string {
	if idx := strings.IndexByte(uri, '?'); idx >= 0 {
		return uri[:idx]
	}
	return uri
}

func matchString(value, pattern string, useRegex bool) bool {
	if pattern == "" {
		return true
	}
	if useRegex {
		matched, err := regexp.MatchString(pattern, value)
		return err == nil && matched
	}
	return strings.EqualFold(value, pattern)
}

func matchHeaders(reqHeaders httpmodel.Header, specHeaders map[string]string, useRegex bool) bool {
	if len(specHeaders) == 0 {
		return true
	}
	for specKey, specValue := range specHeaders {
		if !headerMatches(reqHeaders, specKey, specValue, useRegex) {
			return false
		}
	}
	return true
}

func headerMatches(reqHeaders httpmodel.Header, specKey, specValue string, useRegex bool) bool {
	if !useRegex {
		for _, v := range reqHeaders.Values(specKey) {
			if strings.EqualFold(v, specValue) {
				return true
			}
		}
		return false
	}

	for _, name := range reqHeaders.Names() {
		keyMatched, err := regexp.MatchString(specKey, name)
		if err != nil || !keyMatched {
			continue
		}
		for _, v := range reqHeaders.Values(name) {
			if valueMatched, err := regexp.MatchString(specValue, v); err == nil && valueMatched {
				return true
			}
		}
	}
	return false
}

func matchJSONPath(body string, matchers []JSONPathMatcher) bool {
	if !gjson.Valid(body) {
		return false
	}
	for _, m := range matchers {
		result := gjson.Get(body, m.Path)
		if !result.Exists() {
			return false
		}
		if m.Regex {
			matched, err := regexp.MatchString(m.Value, result.String())
			if err != nil || !matched {
				return false
			}
		} else if result.String() != m.Value {
			return false
		}
	}
	return true
}

func validateSchema(body string, schema map[string]interface{}) bool {
	if !gjson.Valid(body) {
		return false
	}
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return false
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewStringLoader(body),
	)
	return err == nil && result.Valid()
}

// FromHTTPHeader is a convenience adapter for callers that still hold a
// net/http request (e.g. a front-end adapter translating into
// httpmodel.Request); it is not used by the dispatcher itself.
func FromHTTPHeader(h http.Header) httpmodel.Header {
	out := httpmodel.NewHeader()
	for name, values := range h {
		for _, v := range values {
			out.Add(name, v)
		}
	}
	return out
}
