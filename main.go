// Command mockdispatch wires the dispatch core to a minimal HTTP front end
// and runs it until interrupted. Request parsing, expectation loading, and
// TLS termination are the caller's concern; this binary exists to exercise
// the dispatcher end to end, not to be a complete mock server.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/comfortablynumb/mockdispatch/internal/audit"
	"github.com/comfortablynumb/mockdispatch/internal/classcallback"
	"github.com/comfortablynumb/mockdispatch/internal/config"
	"github.com/comfortablynumb/mockdispatch/internal/dispatch"
	"github.com/comfortablynumb/mockdispatch/internal/forwardclient"
	"github.com/comfortablynumb/mockdispatch/internal/httpmodel"
	"github.com/comfortablynumb/mockdispatch/internal/matcher"
	"github.com/comfortablynumb/mockdispatch/internal/observability"
	"github.com/comfortablynumb/mockdispatch/internal/peercallback"
	"github.com/comfortablynumb/mockdispatch/internal/scheduler"
	"github.com/comfortablynumb/mockdispatch/internal/template"
	"go.uber.org/zap"
)

var (
	addr         = flag.String("addr", ":8083", "address the dispatch front end listens on")
	metricsAddr  = flag.String("metrics-addr", ":9090", "address the Prometheus metrics endpoint listens on")
	configPath   = flag.String("config", "config.yaml", "path to the YAML options file")
	logLevel     = flag.String("log-level", "info", "zap log level")
	devLogging   = flag.Bool("dev", false, "use zap's development encoder")
	otlpEndpoint = flag.String("otlp-endpoint", "", "OTLP/gRPC trace exporter endpoint; tracing is disabled when empty")
)

func main() {
	flag.Parse()

	if err := observability.InitLogger(*logLevel, *devLogging); err != nil {
		panic(err)
	}

	if *otlpEndpoint != "" {
		shutdownTracing, err := observability.InitTracing("mockdispatch", *otlpEndpoint)
		if err != nil {
			observability.Fatal("failed to initialize tracing", zap.Error(err))
		}
		defer shutdownTracing(context.Background()) //nolint:errcheck
	}

	opts, err := config.NewLoader(*configPath).Load()
	if err != nil {
		observability.Fatal("failed to load configuration", zap.Error(err))
	}

	d, sched, auditLog := buildDispatcher(opts)
	observability.RegisterDispatchHealthChecks(sched, auditLog, opts.AuditLogCapacity, schedulerQueueDepthWarn)

	go serveMetrics(*metricsAddr)

	server := &http.Server{
		Addr:    *addr,
		Handler: observability.TracingMiddleware(newFrontend(d, localAddresses(*addr)).ServeHTTP),
	}

	go func() {
		observability.Info("dispatch front end listening", zap.String("addr", *addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			observability.Fatal("front end stopped unexpectedly", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	observability.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		observability.Error("graceful shutdown failed", zap.Error(err))
	}
}

// schedulerQueueDepthWarn is the scheduler backlog size above which the
// scheduler_queue health check reports degraded.
const schedulerQueueDepthWarn = 100

// buildDispatcher assembles a Dispatcher from opts, along with the
// scheduler and audit log it was built with so the caller can wire health
// checks against them. Expectation loading from disk is out of scope here,
// so the matcher starts empty; a real deployment registers expectations
// through whatever store front-ends the matcher.
func buildDispatcher(opts config.Options) (*dispatch.Dispatcher, *scheduler.Scheduler, audit.Log) {
	sched := scheduler.New(opts.SchedulerWorkers)
	auditLog := audit.NewMemoryLog(opts.AuditLogCapacity)

	d := dispatch.New(
		matcher.New(),
		sched,
		forwardclient.New(opts.Proxy),
		auditLog,
		template.NewDispatching(),
		classcallback.NewRegistry(),
		peercallback.NewRegistry(),
		opts,
	)
	return d, sched, auditLog
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.Handle("/healthz", observability.HealthHandler())
	mux.Handle("/readyz", observability.ReadinessHandler())
	mux.Handle("/livez", observability.LivenessHandler())
	observability.Info("metrics endpoint listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		observability.Error("metrics endpoint stopped unexpectedly", zap.Error(err))
	}
}

// localAddresses returns the set of Host values this process answers for
// directly, derived from the listen address's port. A request whose Host
// header names anything else is eligible for the exploratory proxy
// fallback.
func localAddresses(listenAddr string) map[string]bool {
	_, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return map[string]bool{}
	}
	return map[string]bool{
		"localhost:" + port: true,
		"127.0.0.1:" + port: true,
	}
}

// frontend adapts net/http to dispatch.ResponseWriter and feeds every
// request through the dispatcher. It performs no matching, templating, or
// serialization of its own — it only translates wire request/response
// shapes, which the dispatch core treats as given.
type frontend struct {
	dispatcher *dispatch.Dispatcher
	localAddrs map[string]bool
}

func newFrontend(d *dispatch.Dispatcher, localAddrs map[string]bool) http.Handler {
	return &frontend{dispatcher: d, localAddrs: localAddrs}
}

func (f *frontend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body := make([]byte, r.ContentLength)
	if r.ContentLength > 0 && r.Body != nil {
		_, _ = r.Body.Read(body)
	}

	req := httpmodel.Request{
		Method:  r.Method,
		URI:     r.URL.RequestURI(),
		Headers: matcher.FromHTTPHeader(r.Header),
		Body:    body,
	}
	// net/http moves the Host header out of r.Header into r.Host.
	if r.Host != "" {
		req.Headers.Set("Host", r.Host)
	}

	writer := &httpResponseWriter{w: w}
	f.dispatcher.ProcessAction(r.Context(), req, writer, dispatch.ChannelContext{}, f.localAddrs, false, false)
}

// httpResponseWriter implements dispatch.ResponseWriter over a standard
// net/http.ResponseWriter.
type httpResponseWriter struct {
	w http.ResponseWriter
}

func (h *httpResponseWriter) WriteResponse(_ httpmodel.Request, resp httpmodel.Response, _ bool) {
	for _, name := range resp.Headers.Names() {
		for _, v := range resp.Headers.Values(name) {
			h.w.Header().Add(name, v)
		}
	}
	h.w.WriteHeader(resp.StatusCode)
	_, _ = h.w.Write(resp.Body)
}

func (h *httpResponseWriter) WriteStatus(_ httpmodel.Request, statusCode int) {
	h.w.WriteHeader(statusCode)
}

func (h *httpResponseWriter) DropConnection() {
	if hijacker, ok := h.w.(http.Hijacker); ok {
		if conn, _, err := hijacker.Hijack(); err == nil {
			conn.Close() //nolint:errcheck
		}
	}
}

func (h *httpResponseWriter) WriteMalformed(data []byte) {
	if hijacker, ok := h.w.(http.Hijacker); ok {
		if conn, _, err := hijacker.Hijack(); err == nil {
			_, _ = conn.Write(data)
			conn.Close() //nolint:errcheck
		}
	}
}
