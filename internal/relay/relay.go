// Package relay is the thin edge service between browser clients and
// the tracker backend. It re-encodes requests into the query-string
// transport the backend expects, answers CORS preflights, and keeps a
// network-first cache of recent reads so short backend outages stay
// invisible to clients.
package relay

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/lherwood/expense-tracker/internal/cache"
	applog "github.com/lherwood/expense-tracker/internal/log"
	"github.com/lherwood/expense-tracker/internal/middleware/security"
	"github.com/lherwood/expense-tracker/internal/notify"
	"github.com/lherwood/expense-tracker/internal/records"
)

// Relay forwards client requests to the tracker backend.
type Relay struct {
	upstream string
	client   *http.Client
	cache    *cache.ResponseCache
	push     notify.Sender
}

func New(upstream string, push notify.Sender) *Relay {
	return &Relay{
		upstream: strings.TrimRight(upstream, "/"),
		client:   &http.Client{Timeout: 30 * time.Second},
		cache:    cache.New(cache.DefaultMaxEntries, cache.DefaultTTL),
		push:     push,
	}
}

// SweepLoop drops expired cache entries every interval until ctx ends.
// Expiry is also checked on read, so this only reclaims memory from
// entries nobody asks for again.
func (rl *Relay) SweepLoop(ctx context.Context, interval time.Duration) {
	logger := applog.WithComponent("cache")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := rl.cache.Sweep(); n > 0 {
				logger.Debug("Swept expired cache entries", "dropped", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Router builds the relay's HTTP surface.
func (rl *Relay) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.HandleFunc("/api/proxy", rl.handleProxy)
	r.Post("/api/save-subscription", rl.handleSaveSubscription)
	r.Post("/api/send-notification", rl.handleSendNotification)

	return r
}

// handleProxy re-encodes the request as a query string and forwards it
// upstream. GET responses are cached; when the backend is unreachable
// a cached copy is served instead.
func (rl *Relay) handleProxy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	params := requestParams(r)
	method := params.Get("method")
	if method == "" {
		writeError(w, http.StatusBadRequest, "Method is required")
		return
	}

	target := rl.upstream + "?" + params.Encode()

	var req *http.Request
	var err error
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	} else {
		// Parameters ride the query string; the body stays empty.
		req, err = http.NewRequestWithContext(r.Context(), http.MethodPost, target, nil)
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to communicate with backend")
		return
	}

	resp, err := rl.client.Do(req)
	if err != nil {
		if method == http.MethodGet {
			if cached, found := rl.cache.Get(target); found {
				slog.WarnContext(r.Context(), "Backend unreachable, serving cached response", "url", target, "error", err)
				writeCached(w, cached)
				return
			}
		}
		slog.ErrorContext(r.Context(), "Backend request failed", "url", target, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to communicate with backend")
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to communicate with backend")
		return
	}

	if method == http.MethodGet {
		if resp.StatusCode == http.StatusOK {
			rl.cache.Put(target, cache.Response{
				Status:      resp.StatusCode,
				ContentType: resp.Header.Get("Content-Type"),
				Body:        body,
			})
		}
	} else {
		// Any mutation may have changed any collection.
		rl.cache.Invalidate()
	}

	passThrough(w, resp.StatusCode, resp.Header.Get("Content-Type"), body)
}

// subscriptionRequest mirrors the browser PushSubscription JSON shape.
type subscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

func (s *subscriptionRequest) complete() bool {
	return s != nil && s.Endpoint != "" && s.Keys.P256dh != "" && s.Keys.Auth != ""
}

func (rl *Relay) handleSaveSubscription(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subscription *subscriptionRequest `json:"subscription"`
		User         string               `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Subscription.complete() || req.User == "" {
		writeError(w, http.StatusBadRequest, "Missing subscription or user data")
		return
	}

	params := url.Values{}
	params.Set("method", http.MethodPost)
	params.Set("action", "saveSubscription")
	params.Set("user", req.User)
	params.Set("endpoint", req.Subscription.Endpoint)
	params.Set("p256dh", req.Subscription.Keys.P256dh)
	params.Set("auth", req.Subscription.Keys.Auth)

	resp, err := rl.client.PostForm(rl.upstream, params)
	if err != nil {
		slog.ErrorContext(r.Context(), "Save subscription failed", "user", req.User, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save subscription")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		writeError(w, http.StatusInternalServerError, "Failed to save subscription")
		return
	}

	slog.InfoContext(r.Context(), "Subscription saved", "user", req.User)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (rl *Relay) handleSendNotification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subscription *subscriptionRequest `json:"subscription"`
		Notification *notify.Payload      `json:"notification"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Subscription.complete() || req.Notification == nil {
		writeError(w, http.StatusBadRequest, "Missing subscription or notification data")
		return
	}

	sub := records.Subscription{
		Endpoint: req.Subscription.Endpoint,
		P256dh:   req.Subscription.Keys.P256dh,
		Auth:     req.Subscription.Keys.Auth,
	}
	if err := rl.push.Send(r.Context(), sub, *req.Notification); err != nil {
		slog.ErrorContext(r.Context(), "Push delivery failed", "endpoint", sub.Endpoint, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Failed to send notification",
			"details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// requestParams flattens the request into one parameter set: query
// values for GET, JSON or form body for POST (query wins on conflict).
func requestParams(r *http.Request) url.Values {
	params := url.Values{}

	if r.Method == http.MethodPost {
		contentType := r.Header.Get("Content-Type")
		if strings.HasPrefix(contentType, "application/json") {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				for k, v := range body {
					params.Set(k, stringify(v))
				}
			}
		} else if err := r.ParseForm(); err == nil {
			for k, vs := range r.PostForm {
				if len(vs) > 0 {
					params.Set(k, vs[0])
				}
			}
		}
	}
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			params.Set(k, vs[0])
		}
	}
	return params
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func writeCached(w http.ResponseWriter, resp cache.Response) {
	passThrough(w, resp.Status, resp.ContentType, resp.Body)
}

func passThrough(w http.ResponseWriter, status int, contentType string, body []byte) {
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
