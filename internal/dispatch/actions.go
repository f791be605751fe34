package dispatch

import (
	"context"
	"time"

	"github.com/comfortablynumb/mockdispatch/internal/audit"
	"github.com/comfortablynumb/mockdispatch/internal/httpmodel"
	"github.com/comfortablynumb/mockdispatch/internal/observability"
	"github.com/comfortablynumb/mockdispatch/internal/scheduler"
	"go.uber.org/zap"
)

// executeAction branches on the matched expectation's action kind and
// schedules its executor under the action's delay and synchronicity.
//
// Forward and ForwardTemplate do not log an ExpectationMatch entry before
// scheduling; they log a RequestResponse entry once the origin's response
// arrives. Every other kind logs ExpectationMatch up front. This asymmetry
// is preserved from the system this dispatcher was modeled on rather than
// "fixed" — see DESIGN.md.
func (d *Dispatcher) executeAction(ctx context.Context, req httpmodel.Request, writer ResponseWriter, expectation httpmodel.Expectation, synchronous bool) {
	action := expectation.Action
	start := time.Now()
	defer func() {
		observability.ObserveActionDuration(action.Kind.String(), time.Since(start))
	}()

	switch action.Kind {
	case httpmodel.ActionResponse:
		d.logMatch(expectation, req, nil)
		d.Scheduler.Schedule(func() {
			resp := *action.Response
			writer.WriteResponse(req, resp, false)
		}, action.ResponseDelay.Duration(), synchronous)

	case httpmodel.ActionResponseTemplate:
		d.logMatch(expectation, req, nil)
		d.Scheduler.Schedule(func() {
			resp := d.renderResponse(req, action.ResponseTemplate)
			writer.WriteResponse(req, resp, false)
		}, action.ResponseDelay.Duration(), synchronous)

	case httpmodel.ActionResponseClassCallback:
		d.logMatch(expectation, req, nil)
		d.Scheduler.Submit(func() {
			resp, err := d.ClassCallbacks.InvokeResponse(ctx, action.ClassName, req)
			if err != nil {
				observability.Error("response class callback failed", zap.String("class", string(action.ClassName)), zap.Error(err))
				writer.WriteResponse(req, httpmodel.NotFound(), false)
				return
			}
			writer.WriteResponse(req, resp, false)
		}, synchronous)

	case httpmodel.ActionResponseObjectCallback:
		d.logMatch(expectation, req, nil)
		d.Scheduler.Submit(func() {
			d.invokePeerResponse(ctx, req, writer, action.CallbackID)
		}, synchronous)

	case httpmodel.ActionForward:
		d.forwardAction(ctx, req, writer, expectation, req, action.ForwardHost, action.ForwardPort, action.ForwardScheme, action.ForwardDelay, synchronous)

	case httpmodel.ActionForwardTemplate:
		rendered := d.renderForwardRequest(req, action.ForwardTemplate)
		d.forwardAction(ctx, req, writer, expectation, rendered, action.ForwardHost, action.ForwardPort, action.ForwardScheme, action.ForwardDelay, synchronous)

	case httpmodel.ActionForwardClassCallback:
		d.logMatch(expectation, req, nil)
		d.Scheduler.Submit(func() {
			outReq, err := d.ClassCallbacks.InvokeForward(ctx, action.ClassName, req)
			if err != nil {
				observability.Error("forward class callback failed", zap.String("class", string(action.ClassName)), zap.Error(err))
				writer.WriteResponse(req, httpmodel.NotFound(), false)
				return
			}
			pending := d.ForwardClient.SendRequest(ctx, outReq, d.remoteAddress(outReq, ChannelContext{}), d.Options.SocketConnectionTimeout)
			scheduler.SubmitOnComplete(d.Scheduler, pending, func(resp httpmodel.Response, err error) {
				d.completeForwardLike(req, writer, resp, err)
			}, synchronous)
		}, synchronous)

	case httpmodel.ActionForwardObjectCallback:
		d.logMatch(expectation, req, nil)
		d.Scheduler.Submit(func() {
			d.invokePeerForward(ctx, req, writer, action.CallbackID)
		}, synchronous)

	case httpmodel.ActionForwardReplace:
		d.logMatch(expectation, req, nil)
		outReq := applyRequestOverride(req, action.RequestOverride)
		d.Scheduler.Schedule(func() {
			pending := d.ForwardClient.SendRequest(ctx, outReq, d.remoteAddress(outReq, ChannelContext{}), d.Options.SocketConnectionTimeout)
			scheduler.SubmitOnComplete(d.Scheduler, pending, func(resp httpmodel.Response, err error) {
				if err != nil {
					d.completeForwardLike(req, writer, resp, err)
					return
				}
				writer.WriteResponse(req, applyResponseOverride(resp, action.ResponseOverride), false)
			}, synchronous)
		}, action.ForwardDelay.Duration(), synchronous)

	case httpmodel.ActionError:
		d.logMatch(expectation, req, nil)
		d.Scheduler.Schedule(func() {
			d.emitError(req, writer, action.ErrorBehavior)
		}, action.ErrorDelay.Duration(), synchronous)

	default:
		observability.Error("unknown action kind", zap.Int("kind", int(action.Kind)))
		writer.WriteResponse(req, httpmodel.NotFound(), false)
	}
}

// logMatch appends the single ExpectationMatch audit entry most action
// kinds log before their executor runs.
func (d *Dispatcher) logMatch(expectation httpmodel.Expectation, req httpmodel.Request, resp *httpmodel.Response) {
	d.Audit.Append(audit.Entry{
		Kind:          audit.ExpectationMatch,
		Outcome:       audit.OutcomeExpectationResponse,
		ExpectationID: expectation.ID,
		Request:       req,
		Response:      resp,
	})
}

func (d *Dispatcher) renderResponse(req httpmodel.Request, tmpl *httpmodel.Template) httpmodel.Response {
	body, err := d.Renderer.Render(*tmpl, req)
	if err != nil {
		observability.Error("response template render failed", zap.Error(err))
		return httpmodel.NotFound()
	}
	h := httpmodel.NewHeader()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	return httpmodel.Response{StatusCode: 200, Headers: h, Body: body}
}

func (d *Dispatcher) renderForwardRequest(req httpmodel.Request, tmpl *httpmodel.Template) httpmodel.Request {
	body, err := d.Renderer.Render(*tmpl, req)
	if err != nil {
		observability.Error("forward template render failed", zap.Error(err))
		return req
	}
	out := req.Clone()
	out.Body = body
	return out
}

func (d *Dispatcher) emitError(req httpmodel.Request, writer ResponseWriter, behavior httpmodel.ErrorBehavior) {
	switch behavior {
	case httpmodel.ErrorDropConnection:
		observability.Info("error action dropping connection", zap.String("uri", req.URI))
		writer.DropConnection()
	case httpmodel.ErrorMalformedResponse:
		observability.Info("error action writing malformed response", zap.String("uri", req.URI))
		writer.WriteMalformed([]byte("HTTP/1.1 !!! malformed\r\n\r\n"))
	}
}

func applyRequestOverride(req httpmodel.Request, override *httpmodel.RequestOverride) httpmodel.Request {
	if override == nil {
		return req
	}
	out := req.Clone()
	if override.Method != nil {
		out.Method = *override.Method
	}
	if override.URI != nil {
		out.URI = *override.URI
	}
	if override.Body != nil {
		out.Body = override.Body
	}
	for k, v := range override.Headers {
		out.Headers.Set(k, v)
	}
	return out
}

func applyResponseOverride(resp httpmodel.Response, override *httpmodel.ResponseOverride) httpmodel.Response {
	if override == nil {
		return resp
	}
	out := resp.Clone()
	if override.StatusCode != nil {
		out.StatusCode = *override.StatusCode
	}
	if override.Body != nil {
		out.Body = override.Body
	}
	for k, v := range override.Headers {
		out.Headers.Set(k, v)
	}
	return out
}
