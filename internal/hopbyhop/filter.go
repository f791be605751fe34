// Package hopbyhop strips headers that must not transit a proxy. Filter is
// a pure function over httpmodel.Request.
package hopbyhop

import (
	"strings"

	"github.com/comfortablynumb/mockdispatch/internal/httpmodel"
)

// standard hop-by-hop headers per RFC 7230 §6.1.
var standardHopByHop = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailer":             true,
	"transfer-encoding":   true,
	"upgrade":             true,
}

// Filter returns a new Request with hop-by-hop headers removed: the standard
// set, plus any header named in the inbound Connection header. The input
// request is left unchanged.
func Filter(req httpmodel.Request) httpmodel.Request {
	out := req.Clone()

	for _, conn := range req.Headers.Values("Connection") {
		for _, name := range strings.Split(conn, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				out.Headers.Del(name)
			}
		}
	}

	for _, name := range req.Headers.Names() {
		if standardHopByHop[strings.ToLower(name)] {
			out.Headers.Del(name)
		}
	}

	return out
}
