package matcher

import (
	"testing"

	"github.com/comfortablynumb/mockdispatch/internal/httpmodel"
)

func req(method, uri, body string) httpmodel.Request {
	return httpmodel.Request{Method: method, URI: uri, Headers: httpmodel.NewHeader(), Body: []byte(body)}
}

func TestFirstMatchingReturnsNoneWhenEmpty(t *testing.T) {
	m := New()
	_, ok := m.FirstMatching(req("GET", "/a", ""))
	if ok {
		t.Fatal("expected no match on an empty matcher")
	}
}

func TestFirstMatchingExactURIAndMethod(t *testing.T) {
	m := New()
	exp := httpmodel.Expectation{ID: "e1"}
	m.Register(Spec{URI: "/a", Method: "GET"}, exp)

	got, ok := m.FirstMatching(req("GET", "/a", ""))
	if !ok || got.ID != "e1" {
		t.Fatalf("expected match e1, got %+v ok=%v", got, ok)
	}

	_, ok = m.FirstMatching(req("POST", "/a", ""))
	if ok {
		t.Fatal("expected method mismatch to not match")
	}
}

func TestFirstMatchingRegexURI(t *testing.T) {
	m := New()
	exp := httpmodel.Expectation{ID: "e1"}
	m.Register(Spec{URI: "^/users/[0-9]+$", Regex: RegexConfig{URI: true}}, exp)

	if _, ok := m.FirstMatching(req("GET", "/users/42", "")); !ok {
		t.Fatal("expected regex URI to match")
	}
	if _, ok := m.FirstMatching(req("GET", "/users/abc", "")); ok {
		t.Fatal("expected regex URI mismatch to not match")
	}
}

func TestFirstMatchingHonorsPriorityOrder(t *testing.T) {
	m := New()
	low := httpmodel.Expectation{ID: "low"}
	high := httpmodel.Expectation{ID: "high"}
	m.Register(Spec{URI: "/a", Priority: 1}, low)
	m.Register(Spec{URI: "/a", Priority: 10}, high)

	got, ok := m.FirstMatching(req("GET", "/a", ""))
	if !ok || got.ID != "high" {
		t.Fatalf("expected higher-priority expectation to win, got %+v", got)
	}
}

func TestFirstMatchingJSONPath(t *testing.T) {
	m := New()
	exp := httpmodel.Expectation{ID: "e1"}
	m.Register(Spec{
		URI:      "/a",
		JSONPath: []JSONPathMatcher{{Path: "user.id", Value: "7"}},
	}, exp)

	if _, ok := m.FirstMatching(req("GET", "/a", `{"user":{"id":7}}`)); !ok {
		t.Fatal("expected JSON path match")
	}
	if _, ok := m.FirstMatching(req("GET", "/a", `{"user":{"id":8}}`)); ok {
		t.Fatal("expected JSON path mismatch to not match")
	}
}

func TestResetReplacesExpectationsAtomically(t *testing.T) {
	m := New()
	m.Register(Spec{URI: "/old"}, httpmodel.Expectation{ID: "old"})

	m.Reset([]Registration{{Spec: Spec{URI: "/new"}, Expectation: httpmodel.Expectation{ID: "new"}}})

	if _, ok := m.FirstMatching(req("GET", "/old", "")); ok {
		t.Fatal("expected old expectation to be gone after Reset")
	}
	got, ok := m.FirstMatching(req("GET", "/new", ""))
	if !ok || got.ID != "new" {
		t.Fatal("expected new expectation to be present after Reset")
	}
}

func TestFirstMatchingIgnoresQueryStringInURI(t *testing.T) {
	m := New()
	m.Register(Spec{URI: "/a"}, httpmodel.Expectation{ID: "e1"})

	if _, ok := m.FirstMatching(req("GET", "/a?x=1", "")); !ok {
		t.Fatal("expected query string to be stripped before matching URI")
	}
}
