package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"

	"github.com/links2go/links2go/internal/metrics"
	"github.com/links2go/links2go/internal/models"
)

// URLService defines the service operations the HTTP layer depends on.
type URLService interface {
	ShortenURL(ctx context.Context, originalURL, customCode string, expiresIn time.Duration) (*models.URL, error)
	ResolveShortCode(ctx context.Context, shortCode string, click models.ClickEvent) (*models.URL, error)
	GetURL(ctx context.Context, shortCode string) (*models.URL, error)
	GetAnalytics(ctx context.Context, shortCode string) (*models.URLAnalytics, error)
	DeleteURL(ctx context.Context, shortCode string) (bool, error)
}

// Options carries the router's collaborators beyond the service itself.
// Zero-value fields disable the corresponding feature.
type Options struct {
	// BaseURL is the public base used to build fully-qualified short URLs.
	BaseURL string
	// Metrics receives per-request observations. Nil disables them.
	Metrics metrics.Recorder
	// MetricsHandler, when set, is mounted at GET /metrics.
	MetricsHandler http.Handler
	// RateLimit, when set, is applied to every route.
	RateLimit func(http.Handler) http.Handler
	// AllowedOrigin restricts CORS to one origin. Empty allows any.
	AllowedOrigin string
}

func NewRouter(logger *httplog.Logger, urlSvc URLService, opts Options) *chi.Mux {
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}

	allowedOrigins := []string{"*"}
	if opts.AllowedOrigin != "" {
		allowedOrigins = []string{opts.AllowedOrigin}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: opts.AllowedOrigin != "",
	}))
	r.Use(requestMetrics(opts.Metrics))
	if opts.RateLimit != nil {
		r.Use(opts.RateLimit)
	}

	r.Get("/health", handleHealth)

	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		validate := getValidate()

		r.Post("/shorten", handleShortenURL(urlSvc, validate, opts.BaseURL))
		r.Get("/analytics/{shortCode}", handleGetAnalytics(urlSvc))
		r.Get("/qr/{shortCode}", handleGetQRCode(urlSvc, opts.BaseURL))
		r.Delete("/{shortCode}", handleDeleteURL(urlSvc))
	})

	r.Get("/{shortCode}", handleRedirect(urlSvc))

	return r
}

func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// requestMetrics observes every handled request with its resolved chi route
// pattern, method, status and duration.
func requestMetrics(rec metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			rec.ObserveRequest(r.Method, route, ww.Status(), time.Since(start))
		})
	}
}
