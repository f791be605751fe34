// Package forwardclient sends a request to an origin (optionally through a
// configured upstream proxy) and yields a Pending response. It deliberately
// uses a plain *http.Client with no retry wrapper: a forwarded request is
// sent at most once, so its caller can tell a fast refusal from a slow
// origin (see DESIGN.md).
package forwardclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/comfortablynumb/mockdispatch/internal/httpmodel"
	"github.com/comfortablynumb/mockdispatch/internal/scheduler"
)

// ProxyConfiguration is the optional upstream proxy a Client forwards
// through. It is immutable after construction.
type ProxyConfiguration struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func (p *ProxyConfiguration) url() (*url.URL, error) {
	if p == nil {
		return nil, nil
	}
	u := &url.URL{Scheme: "http", Host: fmt.Sprintf("%s:%d", p.Host, p.Port)}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u, nil
}

// Client sends a request to remoteAddress and returns a Pending response.
// One shared instance lives for the dispatcher's whole process lifetime
// and manages its own connection pool.
type Client interface {
	SendRequest(ctx context.Context, req httpmodel.Request, remoteAddress string, timeout time.Duration) *scheduler.Pending[httpmodel.Response]
}

// HTTPClient is the default Client, backed by net/http. It holds one
// *http.Transport for its whole lifetime so forwarded requests reuse
// pooled, keep-alive connections instead of dialing fresh on every call.
type HTTPClient struct {
	proxy     *ProxyConfiguration
	transport *http.Transport
}

// New creates an HTTPClient honoring proxyConfig when non-nil.
func New(proxyConfig *ProxyConfiguration) *HTTPClient {
	transport := &http.Transport{}
	if proxyURL, _ := proxyConfig.url(); proxyURL != nil {
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &HTTPClient{proxy: proxyConfig, transport: transport}
}

// SendRequest sends req to remoteAddress and returns a Pending that
// completes with the response, with a nil-bodied httpmodel.Response
// synonymous with "empty", or fails with a *SocketConnectionError /
// *SocketCommunicationError.
func (c *HTTPClient) SendRequest(ctx context.Context, req httpmodel.Request, remoteAddress string, timeout time.Duration) *scheduler.Pending[httpmodel.Response] {
	pending := scheduler.NewPending[httpmodel.Response]()

	go func() {
		resp, err := c.do(ctx, req, remoteAddress, timeout)
		pending.Complete(resp, err)
	}()

	return pending
}

func (c *HTTPClient) do(ctx context.Context, req httpmodel.Request, remoteAddress string, timeout time.Duration) (httpmodel.Response, error) {
	targetURL := fmt.Sprintf("http://%s%s", remoteAddress, ensureLeadingSlash(req.URI))

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, targetURL, bytes.NewReader(req.Body))
	if err != nil {
		return httpmodel.Response{}, &SocketCommunicationError{Err: err}
	}

	for _, name := range req.Headers.Names() {
		for _, value := range req.Headers.Values(name) {
			httpReq.Header.Add(name, value)
		}
	}

	client := &http.Client{
		Timeout:   timeout,
		Transport: c.transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return httpmodel.Response{}, classify(err)
	}
	defer resp.Body.Close() //nolint:errcheck // cleanup

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return httpmodel.Response{}, &SocketCommunicationError{Err: err}
	}

	headers := httpmodel.NewHeader()
	for name, values := range resp.Header {
		for _, value := range values {
			headers.Add(name, value)
		}
	}

	return httpmodel.Response{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       body,
	}, nil
}

func ensureLeadingSlash(uri string) string {
	if uri == "" || uri[0] == '/' {
		return uri
	}
	return "/" + uri
}
