package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lherwood/expense-tracker/internal/middleware/ratelimit"
	"github.com/lherwood/expense-tracker/internal/rows"
)

// Server exposes the dispatcher over HTTP. Parameters arrive as query
// string values (the transport the relay uses for every action) merged
// with any form-encoded body.
type Server struct {
	http.Server
	dispatcher *Dispatcher
	limiter    *ratelimit.Limiter
}

func NewServer(addr string, store rows.Store) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		dispatcher: New(store),
		limiter:    ratelimit.NewLimiter(ratelimit.DefaultConfig()),
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", s.withRequestLog(s.handleAction))

	return s
}

// Dispatcher returns the underlying dispatcher, for callers embedding
// the tracker in-process.
func (s *Server) Dispatcher() *Dispatcher { return s.dispatcher }

// Shutdown stops the listener and the limiter's cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// withRequestLog adds a request id, request/response logging, and rate
// limiting on mutating requests.
func (s *Server) withRequestLog(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := clientAddr(r)
		requestID := uuid.NewString()

		slog.InfoContext(r.Context(), "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if r.Method == http.MethodPost && !s.limiter.Allow(clientIP) {
			slog.WarnContext(r.Context(), "Rate limit exceeded",
				"client_ip", clientIP,
				"active_clients", s.limiter.ActiveClients())
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(rw, r)

		slog.InfoContext(r.Context(), "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// clientAddr keys the rate limiter: the first X-Forwarded-For hop when
// present, otherwise the remote address without its ephemeral port.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	params := collectParams(r)

	// The dispatch key is the declared method parameter; the transport
	// verb is only a fallback. Historical clients send POST actions as
	// query parameters on a POST request.
	method := params["method"]
	if method == "" {
		method = r.Method
	}
	action := params["action"]

	res := s.dispatcher.Dispatch(r.Context(), method, action, params)
	observeAction(method, action, res.Status)
	writeJSON(w, res)
}

// collectParams flattens query string and form body into one map. Query
// parameters win, matching the relay's encoding.
func collectParams(r *http.Request) Params {
	params := Params{}
	if err := r.ParseForm(); err == nil {
		for k, v := range r.PostForm {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}
	}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}

func writeJSON(w http.ResponseWriter, res Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.Status)
	if err := json.NewEncoder(w).Encode(res.Body); err != nil {
		slog.Error("Encode response failed", "error", err, "status", res.Status)
	}
}

func statusLabel(status int) string { return strconv.Itoa(status) }
