package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"

	"github.com/go-chi/httplog/v2"
	"golang.org/x/sync/errgroup"

	myhttp "github.com/links2go/links2go/internal/api/http"
	"github.com/links2go/links2go/internal/config"
	"github.com/links2go/links2go/internal/metrics"
	"github.com/links2go/links2go/internal/service"
	"github.com/links2go/links2go/internal/shortcode"
	redisstore "github.com/links2go/links2go/internal/storage/redis"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx); err != nil {
		panic(err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}

	logger := httplog.NewLogger("links2go", httplog.Options{
		JSON:     cfg.Env == config.EnvProd,
		LogLevel: slog.LevelInfo,
		Concise:  cfg.Env != config.EnvProd,
	})

	g, ctx := errgroup.WithContext(ctx)

	// The service cannot operate without its store, so a failed connect
	// aborts startup.
	client, err := redisstore.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	g.Go(func() error {
		<-ctx.Done()
		return client.Close()
	})

	urlRepo := redisstore.NewURLRepository(client)
	clickLog := redisstore.NewClickLog(client)
	codes := shortcode.NewGenerator(cfg.ShortCode.Length, cfg.ShortCode.Alphabet)
	prom := metrics.NewPrometheus()
	urlSvc := service.NewURLService(urlRepo, clickLog, codes, prom, logger.Logger)
	limiter := myhttp.NewRateLimiter(client, cfg.RateLimit)

	r := myhttp.NewRouter(logger, urlSvc, myhttp.Options{
		BaseURL:        cfg.BaseURL,
		Metrics:        prom,
		MetricsHandler: prom.Handler(),
		RateLimit:      limiter.Middleware,
		AllowedOrigin:  cfg.CORSOrigin,
	})

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        r,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g.Go(func() error {
		var err error
		if cfg.HTTPServer.CertFile != "" && cfg.HTTPServer.KeyFile != "" {
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})

	return g.Wait()
}
