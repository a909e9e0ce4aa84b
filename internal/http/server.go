// Package http serves the wallet page and its JSON API.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"wallet/internal/core"
	"wallet/internal/log"
	"wallet/internal/middleware/ratelimit"
	"wallet/internal/middleware/security"
	"wallet/internal/wallet"
	appweb "wallet/web"
)

// Ledger is what the handlers need from ledger.Ledger.
type Ledger interface {
	wallet.Ledger
	Ping(ctx context.Context) error
}

// Options configures NewServer. Zero values fall back to defaults.
type Options struct {
	Addr           string
	Ledger         Ledger
	Categories     []string
	CurrencySymbol string
	AllowedOrigins []string
	Logger         *log.Logger

	// RequestsPerMinute limits POSTs per client.
	RequestsPerMinute int
	// Templates and Static replace the embedded web assets.
	Templates fs.FS
	Static    fs.FS
}

type Server struct {
	http.Server
	templates  *template.Template
	ledger     Ledger
	session    *wallet.Session
	categories []string
	currency   string
	limiter    *ratelimit.Limiter
	logger     *log.Logger
	started    time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
// The page keeps one dialog session for the whole process.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	currency := opts.CurrencySymbol
	if currency == "" {
		currency = "₹"
	}

	s := &Server{
		ledger:     opts.Ledger,
		session:    wallet.NewSession(opts.Ledger, opts.Categories, logger),
		categories: append([]string(nil), opts.Categories...),
		currency:   currency,
		limiter:    ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		logger:     logger,
		started:    time.Now(),
	}

	templatesFS := opts.Templates
	if templatesFS == nil {
		templatesFS = appweb.TemplatesFS
	}
	t, err := template.New("").Funcs(s.templateFuncs()).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err)
		t = nil
	}
	s.templates = t

	staticFS := opts.Static
	if staticFS == nil {
		staticFS = appweb.StaticFS
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(log.Middleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	if sub, err := fs.Sub(staticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware(clientIP, http.MethodPost))

		r.Get("/", s.handleIndex)
		r.Post("/income/open", s.handleDialog(s.session.OpenIncome))
		r.Post("/income/cancel", s.handleDialog(s.session.CancelIncome))
		r.Post("/income", s.handleSubmitIncome)
		r.Post("/expenses/open", s.handleDialog(s.session.OpenExpense))
		r.Post("/expenses/cancel", s.handleDialog(s.session.CancelExpense))
		r.Post("/expenses", s.handleSubmitExpense)
		r.Post("/notice/dismiss", s.handleDialog(s.session.DismissNotice))

		r.Route("/api", func(r chi.Router) {
			r.Get("/wallet", s.handleAPIWallet)
			r.Post("/income", s.handleAPIAddIncome)
			r.Get("/expenses", s.handleAPIListExpenses)
			r.Post("/expenses", s.handleAPIAddExpense)
			r.Get("/expenses/total", s.handleAPITotal)
			r.Get("/expenses/by-category", s.handleAPIByCategory)
		})
	})

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": func(m core.Money) string { return s.currency + m.String() },
	}
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// clientIP returns the client address without its port. middleware.RealIP
// has already replaced RemoteAddr when a proxy header was present.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks templates and the storage backend.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.ledger.Ping(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Storage readiness check failed", log.FieldError, err)
		checks["storage"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, r, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}
