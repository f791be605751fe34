// Package dispatch implements the action dispatch core: matching an
// incoming request against an expectation store, running the matched
// action under the right concurrency/timing discipline, falling back to a
// transparent proxy when nothing matches, and recording every outcome to
// the audit log.
package dispatch

import (
	"context"

	"github.com/comfortablynumb/mockdispatch/internal/audit"
	"github.com/comfortablynumb/mockdispatch/internal/classcallback"
	"github.com/comfortablynumb/mockdispatch/internal/config"
	"github.com/comfortablynumb/mockdispatch/internal/forwardclient"
	"github.com/comfortablynumb/mockdispatch/internal/httpmodel"
	"github.com/comfortablynumb/mockdispatch/internal/matcher"
	"github.com/comfortablynumb/mockdispatch/internal/observability"
	"github.com/comfortablynumb/mockdispatch/internal/peercallback"
	"github.com/comfortablynumb/mockdispatch/internal/scheduler"
	"github.com/comfortablynumb/mockdispatch/internal/template"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// LoopSentinelHeader is the wire contract between the dispatcher and its own
// exploratory proxy attempts: its presence on an inbound request means "this
// is the mock server talking to itself", and it is echoed verbatim (never
// re-cased) when written.
const LoopSentinelHeader = "X-Forwarded-By"

// LoopSentinelValue is the exact value written for LoopSentinelHeader.
const LoopSentinelValue = "MockServer"

const exploratoryProxyTimeoutMs = 1000

// ResponseWriter is how the Dispatcher hands a computed outcome back to the
// front-end connection. Exactly one of its methods is called per request:
// WriteResponse or WriteStatus for an answered request, DropConnection or
// WriteMalformed for an Error action, and DropConnection for a failed
// explicit proxy forward.
type ResponseWriter interface {
	WriteResponse(req httpmodel.Request, resp httpmodel.Response, suppressCORS bool)
	WriteStatus(req httpmodel.Request, statusCode int)
	DropConnection()
	WriteMalformed(data []byte)
}

// ChannelContext carries the per-connection state a transparent-proxy
// front-end would otherwise stash as a channel attribute — namely the
// connection's original destination, when known.
type ChannelContext struct {
	RemoteSocket string
}

// Dispatcher is the top-level routine: match, branch on action kind,
// schedule, write, log. One Dispatcher is built per process and is safe to
// call concurrently from many front-end connections.
type Dispatcher struct {
	Matcher        *matcher.Matcher
	Scheduler      *scheduler.Scheduler
	ForwardClient  forwardclient.Client
	Audit          audit.Log
	Renderer       template.Renderer
	ClassCallbacks *classcallback.Registry
	PeerCallbacks  *peercallback.Registry
	Options        config.Options
}

// New builds a Dispatcher from its collaborators.
func New(
	m *matcher.Matcher,
	sched *scheduler.Scheduler,
	client forwardclient.Client,
	auditLog audit.Log,
	renderer template.Renderer,
	classCallbacks *classcallback.Registry,
	peerCallbacks *peercallback.Registry,
	opts config.Options,
) *Dispatcher {
	return &Dispatcher{
		Matcher:        m,
		Scheduler:      sched,
		ForwardClient:  client,
		Audit:          auditLog,
		Renderer:       renderer,
		ClassCallbacks: classCallbacks,
		PeerCallbacks:  peerCallbacks,
		Options:        opts,
	}
}

// ProcessAction is the dispatcher's single public entrypoint.
func (d *Dispatcher) ProcessAction(
	ctx context.Context,
	req httpmodel.Request,
	writer ResponseWriter,
	channel ChannelContext,
	localAddresses map[string]bool,
	proxyThisRequest bool,
	synchronous bool,
) {
	ctx, span := observability.StartSpan(ctx, "dispatch.process_action")
	defer span.End()

	isLoop := isLoopback(req)
	span.SetAttributes(attribute.Bool("dispatch.loop_guard", isLoop))

	if isLoop {
		observability.AddSpanEvent(ctx, "loop_guard_hit")
		d.returnNotFound(req, writer, true)
		observability.RecordRequestOutcome("looped")
		return
	}

	expectation, matched := d.Matcher.FirstMatching(req)
	span.SetAttributes(attribute.Bool("dispatch.matched", matched))

	if matched {
		span.SetAttributes(attribute.String("dispatch.action_kind", expectation.Action.Kind.String()))
		observability.SetSpanAttribute(ctx, "dispatch.expectation_id", expectation.ID)
		observability.RecordRequestOutcome("matched")
		d.executeAction(ctx, req, writer, expectation, synchronous)
		return
	}

	if d.isCORSPreflight(req) {
		observability.AddSpanEvent(ctx, "cors_preflight_short_circuit")
		observability.RecordRequestOutcome("matched")
		writer.WriteStatus(req, 200)
		return
	}

	if proxyThisRequest || d.isNonLocalHost(req, localAddresses) {
		observability.AddSpanEvent(ctx, "proxy_fallback_started", attribute.Bool("dispatch.proxy_explicit", proxyThisRequest))
		observability.RecordRequestOutcome("proxied")
		d.forward(ctx, req, writer, channel, proxyThisRequest, synchronous)
		return
	}

	observability.AddSpanEvent(ctx, "no_expectation_matched")
	observability.RecordRequestOutcome("not_matched")
	span.SetStatus(codes.Ok, "")
	d.returnNotFound(req, writer, false)
}

// isLoopback reports whether req carries the loop sentinel, read
// case-insensitively.
func isLoopback(req httpmodel.Request) bool {
	return req.Headers.Get(LoopSentinelHeader) == LoopSentinelValue
}

// isCORSPreflight reports whether req is an OPTIONS preflight request the
// configured CORS options should short-circuit with a 200.
func (d *Dispatcher) isCORSPreflight(req httpmodel.Request) bool {
	if req.Method != "OPTIONS" || !req.Headers.Has("Access-Control-Request-Method") {
		return false
	}
	if d.Options.EnableCORSForAllResponses {
		return true
	}
	if d.Options.EnableCORSForAPI && d.isManagementAPIRequest(req) {
		return true
	}
	return false
}

func (d *Dispatcher) isManagementAPIRequest(req httpmodel.Request) bool {
	prefix := d.Options.ManagementAPIPrefix
	if prefix == "" {
		prefix = "/__admin"
	}
	return len(req.URI) >= len(prefix) && req.URI[:len(prefix)] == prefix
}

// isNonLocalHost reports whether req's Host header names something other
// than one of localAddresses.
func (d *Dispatcher) isNonLocalHost(req httpmodel.Request, localAddresses map[string]bool) bool {
	host := req.Headers.Get("Host")
	if host == "" {
		return false
	}
	return !localAddresses[host]
}

// returnNotFound writes a 404. If the request carried the loop sentinel the
// response echoes it and no audit entry is appended (the sender is our own
// exploratory proxy, and its job is to fall back silently); otherwise a
// RequestOnly entry is appended and an EXPECTATION_NOT_MATCHED log line
// emitted.
func (d *Dispatcher) returnNotFound(req httpmodel.Request, writer ResponseWriter, isLoop bool) {
	resp := httpmodel.NotFound()
	if isLoop {
		resp = resp.WithHeader(LoopSentinelHeader, LoopSentinelValue)
		writer.WriteResponse(req, resp, false)
		return
	}

	writer.WriteResponse(req, resp, false)
	d.Audit.Append(audit.Entry{
		Kind:    audit.RequestOnly,
		Outcome: audit.OutcomeExpectationNotMatch,
		Request: req,
	})
	observability.Info("no expectation matched request",
		zap.String("method", req.Method), zap.String("uri", req.URI))
}
