package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/AdguardTeam/blockengine"
	"github.com/AdguardTeam/blockengine/internal/metrics"
	"github.com/AdguardTeam/blockengine/rules"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil/httputil"
	"github.com/c2h5oh/datasize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"
)

// Route pattern constants.
const (
	routePatternCheck       = http.MethodGet + " /check"
	routePatternCosmetic    = http.MethodGet + " /cosmetic"
	routePatternCSP         = http.MethodGet + " /csp"
	routePatternDebug       = http.MethodGet + " /debug/api/engine"
	routePatternHealthCheck = http.MethodGet + " /health-check"
	routePatternMetrics     = http.MethodGet + " /metrics"
)

// hdrValApplicationJSON is the value of the Content-Type header of the JSON
// responses.
const hdrValApplicationJSON = "application/json"

// shutdownTimeout is the time given to the server and the engine to stop.
const shutdownTimeout = 5 * time.Second

// checkResponse is the JSON form of [blockengine.BlockerResult].
type checkResponse struct {
	Filter       string `json:"filter,omitempty"`
	Exception    string `json:"exception,omitempty"`
	Redirect     string `json:"redirect,omitempty"`
	RewrittenURL string `json:"rewritten_url,omitempty"`
	Matched      bool   `json:"matched"`
	Important    bool   `json:"important"`
	HasException bool   `json:"has_exception"`
}

// newCheckResponse converts res into its JSON form.
func newCheckResponse(res *blockengine.BlockerResult) (resp *checkResponse) {
	return &checkResponse{
		Filter:       ruleText(res.Filter),
		Exception:    ruleText(res.Exception),
		Redirect:     res.Redirect,
		RewrittenURL: res.RewrittenURL,
		Matched:      res.Matched,
		Important:    res.Important,
		HasException: res.HasException,
	}
}

// ruleText returns the text of r or an empty string if r is nil.
func ruleText(r *rules.NetworkRule) (text string) {
	if r == nil {
		return ""
	}

	return r.RuleText
}

// debugResponse is the JSON form of the engine debug information.
type debugResponse struct {
	*blockengine.DebugInfo

	// Memory is the resident set size of the process.
	Memory datasize.ByteSize `json:"memory"`

	// Tags are the enabled tags.
	Tags []string `json:"tags"`
}

// handler serves the engine over HTTP.
type handler struct {
	logger *slog.Logger
	engine *blockengine.Engine
}

// paramsFromRequest returns the check parameters from the query of r.
func paramsFromRequest(r *http.Request) (p *blockengine.CheckParams) {
	q := r.URL.Query()
	thirdParty, _ := strconv.ParseBool(q.Get("third_party"))
	perm, _ := strconv.ParseUint(q.Get("permission"), 10, 8)

	return &blockengine.CheckParams{
		URL:            q.Get("url"),
		SourceHostname: q.Get("source"),
		RequestType:    q.Get("type"),
		Permission:     rules.PermissionMask(perm),
		ThirdParty:     thirdParty,
	}
}

// serveCheck handles the request check API.
func (h *handler) serveCheck(w http.ResponseWriter, r *http.Request) {
	p := paramsFromRequest(r)
	if p.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)

		return
	}

	h.writeJSON(r.Context(), w, newCheckResponse(h.engine.Check(p)))
}

// serveCosmetic handles the cosmetic resources API.
func (h *handler) serveCosmetic(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(r.Context(), w, h.engine.URLCosmeticResources(r.URL.Query().Get("url")))
}

// serveCSP handles the CSP directives API.
func (h *handler) serveCSP(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(r.Context(), w, map[string]string{
		"csp": h.engine.CSPDirectives(paramsFromRequest(r)),
	})
}

// serveDebug handles the engine debug API.
func (h *handler) serveDebug(w http.ResponseWriter, r *http.Request) {
	resp := &debugResponse{
		DebugInfo: h.engine.DebugInfo(),
		Tags:      h.engine.Tags(),
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err == nil {
		var mi *process.MemoryInfoStat
		mi, err = proc.MemoryInfo()
		if err == nil {
			resp.Memory = datasize.ByteSize(mi.RSS)
		}
	}

	if err != nil {
		h.logger.DebugContext(r.Context(), "getting memory info", slogutil.KeyError, err)
	}

	h.writeJSON(r.Context(), w, resp)
}

// writeJSON writes v to w as JSON.
func (h *handler) writeJSON(ctx context.Context, w http.ResponseWriter, v any) {
	w.Header().Set(httphdr.ContentType, hdrValApplicationJSON)

	err := printJSON(w, v)
	if err != nil {
		h.logger.DebugContext(ctx, "writing response", slogutil.KeyError, err)
	}
}

// newMux returns the router of the HTTP API.
func newMux(logger *slog.Logger, e *blockengine.Engine) (mux *http.ServeMux) {
	h := &handler{
		logger: logger,
		engine: e,
	}

	mux = http.NewServeMux()
	reqIDMw := httputil.NewRequestIDMiddleware()
	traceLogMw := httputil.NewLogMiddleware(logger, slogutil.LevelTrace)
	debugLogMw := httputil.NewLogMiddleware(logger, slog.LevelDebug)

	mux.Handle(routePatternHealthCheck, httputil.Wrap(httputil.HealthCheckHandler, reqIDMw, traceLogMw))
	mux.Handle(routePatternMetrics, httputil.Wrap(promhttp.Handler(), reqIDMw, traceLogMw))
	mux.Handle(routePatternCheck, httputil.Wrap(http.HandlerFunc(h.serveCheck), reqIDMw, debugLogMw))
	mux.Handle(routePatternCosmetic, httputil.Wrap(http.HandlerFunc(h.serveCosmetic), reqIDMw, debugLogMw))
	mux.Handle(routePatternCSP, httputil.Wrap(http.HandlerFunc(h.serveCSP), reqIDMw, debugLogMw))
	mux.Handle(routePatternDebug, httputil.Wrap(http.HandlerFunc(h.serveDebug), reqIDMw, debugLogMw))

	return mux
}

// serve runs the HTTP API until the process receives a termination signal.
func serve(ctx context.Context, logger *slog.Logger, conf *configuration, e *blockengine.Engine) (err error) {
	err = metrics.SetUpGauge(metrics.Namespace, prometheus.DefaultRegisterer, version)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	err = e.Start(ctx)
	if err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}

	srv := &http.Server{
		Addr:              conf.ListenAddr,
		Handler:           newMux(logger.With(slogutil.KeyPrefix, "http"), e),
		ReadHeaderTimeout: shutdownTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelDebug),
	}

	go func() {
		defer func() {
			if rErr := errors.FromRecovered(recover()); rErr != nil {
				logger.ErrorContext(ctx, "recovered panic", slogutil.KeyError, rErr)
				slogutil.PrintStack(ctx, logger, slog.LevelError)
			}
		}()

		logger.Info("listening", "addr", conf.ListenAddr)

		lErr := srv.ListenAndServe()
		if lErr != nil && !errors.Is(lErr, http.ErrServerClosed) {
			logger.Error("serving http", slogutil.KeyError, lErr)
		}
	}()

	waitForSignal()

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	return e.Shutdown(shutdownCtx)
}
