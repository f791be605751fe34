// Package curl renders a forwarded request plus its remote socket as a curl
// command line for diagnostics. Consumed by internal/dispatch when it logs
// a forwarded request's RequestResponse entry.
package curl

import (
	"fmt"
	"strings"

	"github.com/comfortablynumb/mockdispatch/internal/httpmodel"
)

// Serialize renders req (addressed at remoteSocket) as a single-line curl
// invocation. Header and body values are shell-quoted defensively; this is a
// diagnostics aid, not a re-executable reproduction script.
func Serialize(req httpmodel.Request, remoteSocket string) string {
	var b strings.Builder

	b.WriteString("curl -v")

	if req.Method != "" && req.Method != "GET" {
		fmt.Fprintf(&b, " -X %s", req.Method)
	}

	for _, name := range req.Headers.Names() {
		for _, value := range req.Headers.Values(name) {
			fmt.Fprintf(&b, " -H %s", quote(fmt.Sprintf("%s: %s", name, value)))
		}
	}

	if len(req.Body) > 0 {
		fmt.Fprintf(&b, " -d %s", quote(string(req.Body)))
	}

	target := remoteSocket
	if target == "" {
		target = "<unknown>"
	}
	uri := req.URI
	if !strings.HasPrefix(uri, "/") {
		uri = "/" + uri
	}
	fmt.Fprintf(&b, " http://%s%s", target, uri)

	return b.String()
}

// quote wraps s in single quotes, escaping any embedded single quote using
// the standard shell trick ('"'"').
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
