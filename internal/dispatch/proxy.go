package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/comfortablynumb/mockdispatch/internal/audit"
	"github.com/comfortablynumb/mockdispatch/internal/curl"
	"github.com/comfortablynumb/mockdispatch/internal/forwardclient"
	"github.com/comfortablynumb/mockdispatch/internal/hopbyhop"
	"github.com/comfortablynumb/mockdispatch/internal/httpmodel"
	"github.com/comfortablynumb/mockdispatch/internal/observability"
	"github.com/comfortablynumb/mockdispatch/internal/scheduler"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// remoteAddress resolves the host:port a forwarded request targets: the
// connection's known destination if the front end recorded one, otherwise
// the request's own Host header.
func (d *Dispatcher) remoteAddress(req httpmodel.Request, channel ChannelContext) string {
	if channel.RemoteSocket != "" {
		return channel.RemoteSocket
	}
	return req.Headers.Get("Host")
}

// forwardAction runs the Forward/ForwardTemplate executor: outReq (the
// original request, or its rendered replacement) is sent to host:port after
// delay, and the outcome is recorded as a single RequestResponse entry once
// the response arrives — these two kinds never log ExpectationMatch.
func (d *Dispatcher) forwardAction(
	ctx context.Context,
	req httpmodel.Request,
	writer ResponseWriter,
	expectation httpmodel.Expectation,
	outReq httpmodel.Request,
	host string,
	port int,
	scheme string,
	delay httpmodel.Delay,
	synchronous bool,
) {
	address := fmt.Sprintf("%s:%d", host, port)

	d.Scheduler.Schedule(func() {
		observability.AddSpanEvent(ctx, "forward_action_dispatched", attribute.String("dispatch.forward_address", address))
		pending := d.ForwardClient.SendRequest(ctx, outReq, address, d.Options.SocketConnectionTimeout)
		scheduler.SubmitOnComplete(d.Scheduler, pending, func(resp httpmodel.Response, err error) {
			d.logForwardOutcome(req, outReq, address, expectation.ID, resp, err)
			d.completeForwardLike(req, writer, resp, err)
		}, synchronous)
	}, delay.Duration(), synchronous)
}

// logForwardOutcome appends the RequestResponse audit entry a completed
// Forward/ForwardTemplate produces, with a curl rendering of the outgoing
// request for diagnostics.
func (d *Dispatcher) logForwardOutcome(req, outReq httpmodel.Request, address, expectationID string, resp httpmodel.Response, err error) {
	entry := audit.Entry{
		Kind:          audit.RequestResponse,
		Outcome:       audit.OutcomeForwardedRequest,
		ExpectationID: expectationID,
		Request:       req,
		Curl:          curl.Serialize(outReq, address),
	}
	if err == nil {
		entry.Response = &resp
	}
	d.Audit.Append(entry)
}

// completeForwardLike writes a forwarded response to the client, or a
// diagnostic failure response when the origin could not be reached or the
// exchange failed. Used by every *-forward action kind once its outbound
// request completes.
func (d *Dispatcher) completeForwardLike(req httpmodel.Request, writer ResponseWriter, resp httpmodel.Response, err error) {
	if err != nil {
		observability.RecordForwardResult(forwardResultLabel(err))
		observability.Error("forward action failed", zap.String("uri", req.URI), zap.Error(err))
		writer.WriteResponse(req, errorResponse(err), false)
		return
	}
	observability.RecordForwardResult("success")
	writer.WriteResponse(req, resp, false)
}

func forwardResultLabel(err error) string {
	if forwardclient.IsConnectionError(err) {
		return "connection_error"
	}
	return "communication_error"
}

func errorResponse(err error) httpmodel.Response {
	h := httpmodel.NewHeader()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	return httpmodel.Response{StatusCode: 502, Headers: h, Body: []byte(err.Error())}
}

// forward is the proxy fallback procedure: it runs for requests that matched
// no expectation and either the caller explicitly requested proxying
// (proxyThisRequest) or the request targets a non-local Host. Before
// forwarding, hop-by-hop headers are stripped; in the non-explicit
// ("exploratory") case, the loop sentinel header is added so that if the
// request bounces back to this same server it is recognized by the far side
// (or, on a connection failure, answered here) with a 404 instead of an
// infinite loop.
func (d *Dispatcher) forward(
	ctx context.Context,
	req httpmodel.Request,
	writer ResponseWriter,
	channel ChannelContext,
	proxyThisRequest bool,
	synchronous bool,
) {
	outReq := hopbyhop.Filter(req)
	if !proxyThisRequest {
		outReq = outReq.WithHeader(LoopSentinelHeader, LoopSentinelValue)
	}

	address := d.remoteAddress(req, channel)
	timeout := d.Options.SocketConnectionTimeout
	if !proxyThisRequest {
		timeout = exploratoryProxyTimeoutMs * time.Millisecond
	}

	pending := d.ForwardClient.SendRequest(ctx, outReq, address, timeout)
	scheduler.SubmitOnComplete(d.Scheduler, pending, func(resp httpmodel.Response, err error) {
		if err != nil {
			observability.SetSpanAttribute(ctx, "dispatch.forward_outcome", "failure")
			d.handleForwardFallbackFailure(req, writer, proxyThisRequest, err)
			return
		}
		observability.SetSpanAttribute(ctx, "dispatch.forward_outcome", "success")
		d.handleForwardFallbackSuccess(req, writer, outReq, address, resp)
	}, synchronous)
}

// handleForwardFallbackSuccess writes the origin's response, then logs
// either FORWARDED_REQUEST or — if the response itself carries the loop
// sentinel, meaning the exploratory request bounced back to this same
// server — RequestOnly/EXPECTATION_NOT_MATCHED.
func (d *Dispatcher) handleForwardFallbackSuccess(req httpmodel.Request, writer ResponseWriter, outReq httpmodel.Request, address string, resp httpmodel.Response) {
	writer.WriteResponse(req, resp, false)

	if resp.Headers.Get(LoopSentinelHeader) == LoopSentinelValue {
		observability.RecordRequestOutcome("looped")
		d.Audit.Append(audit.Entry{
			Kind:    audit.RequestOnly,
			Outcome: audit.OutcomeExpectationNotMatch,
			Request: req,
		})
		return
	}

	observability.RecordForwardResult("success")
	d.Audit.Append(audit.Entry{
		Kind:     audit.RequestResponse,
		Outcome:  audit.OutcomeForwardedRequest,
		Request:  req,
		Response: &resp,
		Curl:     curl.Serialize(outReq, address),
	})
}

// handleForwardFallbackFailure splits a failed proxy fallback three ways: a
// communication failure always yields a quiet 404; a connection failure in
// exploratory mode yields a 404 plus a RequestOnly audit entry (this is the
// open-relay guard, not the loop guard, so the entry is NOT suppressed); a
// connection failure in explicit proxy mode is logged at error level and the
// connection is dropped rather than answered.
func (d *Dispatcher) handleForwardFallbackFailure(req httpmodel.Request, writer ResponseWriter, proxyThisRequest bool, err error) {
	if forwardclient.IsCommunicationError(err) {
		observability.RecordForwardResult("communication_error")
		writer.WriteResponse(req, httpmodel.NotFound(), false)
		return
	}

	if !proxyThisRequest && forwardclient.IsConnectionError(err) {
		observability.RecordForwardResult("connection_error")
		writer.WriteResponse(req, httpmodel.NotFound(), false)
		d.Audit.Append(audit.Entry{
			Kind:    audit.RequestOnly,
			Outcome: audit.OutcomeExpectationNotMatch,
			Request: req,
		})
		return
	}

	observability.RecordForwardResult("connection_error")
	observability.Error("explicit proxy forward failed", zap.String("uri", req.URI), zap.Error(err))
	writer.DropConnection()
}

// invokePeerResponse services a ResponseObjectCallback: round-trips req to
// the registered peer and writes whatever it returns. Runs on the
// scheduler's worker, or inline if synchronous, in which case the blocking
// Wait holds the front end's own goroutine until the peer answers.
func (d *Dispatcher) invokePeerResponse(ctx context.Context, req httpmodel.Request, writer ResponseWriter, id httpmodel.CallbackID) {
	peer, err := d.PeerCallbacks.Get(id)
	if err != nil {
		observability.Error("response object callback has no connected peer", zap.String("callback_id", string(id)), zap.Error(err))
		writer.WriteResponse(req, httpmodel.NotFound(), false)
		return
	}

	resp, err := peer.Send(ctx, req).Wait()
	if err != nil {
		observability.Error("response object callback round-trip failed", zap.String("callback_id", string(id)), zap.Error(err))
		writer.WriteResponse(req, errorResponse(err), false)
		return
	}
	writer.WriteResponse(req, resp, false)
}

// invokePeerForward services a ForwardObjectCallback. Unlike
// ForwardClassCallback (where the class builds a request that this process
// then sends on), the peer on the other end of the channel owns the actual
// forwarding and hands back the origin's response directly — so this is
// the same round-trip as invokePeerResponse, kept as a separate method
// because it completes through completeForwardLike, which also records the
// forward-result metric for the outcome.
func (d *Dispatcher) invokePeerForward(ctx context.Context, req httpmodel.Request, writer ResponseWriter, id httpmodel.CallbackID) {
	peer, err := d.PeerCallbacks.Get(id)
	if err != nil {
		observability.Error("forward object callback has no connected peer", zap.String("callback_id", string(id)), zap.Error(err))
		writer.WriteResponse(req, httpmodel.NotFound(), false)
		return
	}

	resp, err := peer.Send(ctx, req).Wait()
	d.completeForwardLike(req, writer, resp, err)
}
