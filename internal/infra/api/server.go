package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"checkout-bridge/internal/domain/ports/repository"
	"checkout-bridge/internal/infra/metrics"
	"checkout-bridge/internal/infra/worker"
	"checkout-bridge/internal/usecase"
)

// Verifier authenticates raw webhook deliveries.
type Verifier interface {
	Verify(sigHeader, timestamp, id string, body []byte) error
	Configured() bool
}

// Dispatcher runs work off the request path. *worker.Pool satisfies it.
type Dispatcher interface {
	Submit(task worker.Task) error
}

// Checklist mirrors which integrations are configured; reported by /health.
type Checklist struct {
	GetCourseAPIKey   bool `json:"getcourse_api_key"`
	GetCourseAccount  bool `json:"getcourse_account"`
	WhopAPIKey        bool `json:"whop_api_key"`
	WhopCompanyID     bool `json:"whop_company_id"`
	WhopWebhookSecret bool `json:"whop_webhook_secret"`
	RedirectURLs      struct {
		Success bool `json:"success"`
		Cancel  bool `json:"cancel"`
	} `json:"redirect_urls"`
}

type Options struct {
	Service        string
	Version        string
	Environment    string
	Store          string // session backend name
	Checklist      Checklist
	DedupTTL       time.Duration
	AsyncRelay     bool
	RelayTimeout   time.Duration
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

type Deps struct {
	Checkout   usecase.CheckoutUseCase
	Status     usecase.StatusUseCase
	Settlement usecase.SettlementUseCase
	Verifier   Verifier
	Dedup      repository.WebhookDeduper // optional
	Dispatcher Dispatcher                // optional; async work runs inline without it
}

// Server exposes the checkout bridge over HTTP.
type Server struct {
	d       Deps
	opts    Options
	log     *zerolog.Logger
	started time.Time
}

func NewServer(d Deps, opts Options, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "APIServer").Logger()
	if opts.Service == "" {
		opts.Service = "checkout-bridge"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.RelayTimeout <= 0 {
		opts.RelayTimeout = 30 * time.Second
	}
	return &Server{d: d, opts: opts, log: &l, started: time.Now()}
}

// Handler returns the full router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	s.Register(r)
	return Chain(r,
		TraceID(),
		RequestLog(s.log),
		Recover(s.log),
		Timeout(s.opts.RequestTimeout),
	)
}

// Register attaches all routes to r. Legacy paths without /api stay for
// order-platform pages that were configured against them.
func (s *Server) Register(r chi.Router) {
	for _, p := range []string{"/api/create-checkout", "/create-checkout"} {
		r.Get(p, s.handleCreateCheckout)
		r.Post(p, s.handleCreateCheckout)
	}
	r.Get("/api/checkout-status/{orderId}", s.handleCheckoutStatus)
	r.Get("/checkout-status/{orderId}", s.handleCheckoutStatus)

	r.Post("/api/payment-webhook", s.handleWebhook)
	r.Post("/api/whop-webhook", s.handleWebhook)

	r.Get("/api/health", s.handleHealth)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(msg string) map[string]any {
	return map[string]any{"success": false, "error": msg}
}
