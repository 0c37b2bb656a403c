package main

import (
	"context"
	"log/slog"
	"time"

	auth "github.com/KyungBin7/waitrush-sub000"
	"github.com/KyungBin7/waitrush-sub000/config"
	"github.com/KyungBin7/waitrush-sub000/repository"
	"github.com/KyungBin7/waitrush-sub000/social"
	"github.com/KyungBin7/waitrush-sub000/social/providers/github"
	"github.com/KyungBin7/waitrush-sub000/social/providers/google"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
)

func serve(ctx context.Context, cfg *config.Config, db *bun.DB, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metrics, err := auth.NewMetricsActivitySink(reg)
	if err != nil {
		return err
	}
	sink := auth.MultiActivitySink{metrics, auth.LoggerActivitySink{Logger: logger}}

	repos := repository.NewRepositoryManager(db, auth.WithOrganizersLogger(logger))
	repos.MustValidate()

	auther := auth.NewAuthenticator(repos.Organizers(), cfg).
		WithLogger(logger).
		WithActivitySink(sink)

	accounts := auth.NewAccountManager(repos.Organizers(), repos.OwnedData()).
		WithLogger(logger).
		WithActivitySink(sink)

	encKey, macKey := social.DeriveStateKeys(cfg.OAuth.StateSecret)
	socialAuth := social.NewSocialAuthenticator(auther, social.SocialAuthConfig{
		DefaultRedirectURL:     cfg.OAuth.SuccessRedirectURL,
		AllowedRedirectOrigins: cfg.OAuth.AllowedRedirectOrigins,
		StateEncryptionKey:     encKey,
		StateHMACKey:           macKey,
		StateTTL:               cfg.OAuth.StateTTL,
	}, providerOptions(cfg, logger)...)

	adapter := router.NewFiberAdapter(func(app *fiber.App) *fiber.App {
		app.Use(recover.New())
		app.Get("/healthz", func(c *fiber.Ctx) error {
			return c.SendString("ok")
		})
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
		return app
	})

	r := adapter.Router()
	r.Use(auth.ErrorMiddleware(logger))

	auth.NewAuthController(auther, accounts).RegisterRoutes(r.Group("/auth"))
	social.NewHTTPController(socialAuth, social.HTTPConfig{
		CookieName:      "waitrush_session",
		CookieHTTPOnly:  true,
		CookieSecure:    true,
		SuccessRedirect: cfg.OAuth.SuccessRedirectURL,
		SignupRedirect:  cfg.OAuth.SignupRedirectURL,
		ErrorRedirect:   cfg.OAuth.ErrorRedirectURL,
	}).RegisterRoutes(r.Group("/auth/social"))

	errc := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr, "providers", socialAuth.ListProviders())
		errc <- adapter.Serve(cfg.HTTPAddr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return adapter.Shutdown(shutdownCtx)
}

func providerOptions(cfg *config.Config, logger *slog.Logger) []social.SocialAuthOption {
	opts := []social.SocialAuthOption{social.WithLogger(logger)}

	if cfg.Google.Enabled() {
		opts = append(opts, social.WithProvider(google.New(google.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			CallbackURL:  cfg.Google.RedirectURL,
			Timeout:      cfg.OAuth.ProviderTimeout,
		})))
	}

	if cfg.GitHub.Enabled() {
		opts = append(opts, social.WithProvider(github.New(github.Config{
			ClientID:     cfg.GitHub.ClientID,
			ClientSecret: cfg.GitHub.ClientSecret,
			CallbackURL:  cfg.GitHub.RedirectURL,
			Timeout:      cfg.OAuth.ProviderTimeout,
		})))
	}

	return opts
}
