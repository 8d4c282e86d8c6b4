package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"acessonucleo-hub/config"
	"acessonucleo-hub/database"
	adminapi "acessonucleo-hub/internal/api/admin"
	authapi "acessonucleo-hub/internal/api/auth"
	"acessonucleo-hub/internal/api/members"
	"acessonucleo-hub/internal/api/paymentwebhook"
	routes "acessonucleo-hub/internal/app/http"
	"acessonucleo-hub/internal/app/http/middleware"
	"acessonucleo-hub/internal/authn"
	"acessonucleo-hub/internal/infra/cache"
	"acessonucleo-hub/internal/infra/events"
	"acessonucleo-hub/internal/infra/mail"
	"acessonucleo-hub/internal/lib/sl"
	"acessonucleo-hub/internal/lifecycle"
	"acessonucleo-hub/internal/notify"
	"acessonucleo-hub/internal/repository"
	"acessonucleo-hub/internal/service/credential"
	"acessonucleo-hub/internal/session"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", sl.Err(err))
		os.Exit(1)
	}
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting portal", slog.String("port", cfg.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDB(cfg.DBURL, logger.With(slog.String("component", "database")))
	if err != nil {
		logger.Error("failed to init database", sl.Err(err))
		os.Exit(1)
	}

	identities := repository.NewIdentityRepository(db)
	subs := repository.NewSubscriberRepository(db)
	audit := repository.NewAuditRepository(db)
	ledger := repository.NewWebhookEventRepository(db)
	creds := repository.NewCredentialRepository(db)

	var credCache credential.Cache = cache.Noop{}
	if cfg.RedisAddr != "" {
		c, err := cache.InitServer(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			logger.Warn("redis unavailable, credential cache disabled", sl.Err(err))
		} else {
			defer c.Close()
			credCache = c
		}
	}

	var publisher events.Publisher = events.Fallback{Log: logger}
	if cfg.AMQPURL != "" {
		p, err := events.NewEventProducer(cfg.AMQPURL, cfg.AMQPExchange, logger.With(slog.String("component", "events")))
		if err != nil {
			logger.Warn("rabbitmq unavailable, lifecycle events will only be logged", sl.Err(err))
		} else {
			publisher = p
		}
	}
	defer publisher.Close()

	templates, err := mail.ParseTemplates()
	if err != nil {
		logger.Error("failed to parse email templates", sl.Err(err))
		os.Exit(1)
	}
	mailer := setupMailer(cfg, logger)
	approvals := notify.NewApproval(mailer, templates, audit, cfg.AppURL+"/login", logger)

	credentials := credential.NewService(creds, credCache, cfg.CredentialCacheTTL, publisher, logger)

	bus := session.NewBus(logger)
	gate := session.NewGate(subs, audit, publisher, session.Options{AutoApprove: cfg.AutoApproveOnLogin}, logger)
	gateDone := make(chan struct{})
	go func() {
		defer close(gateDone)
		gate.Run(ctx, bus.Subscribe(64))
	}()

	reconciler := lifecycle.NewReconciler(lifecycle.Deps{
		Identities:  identities,
		Subscribers: subs,
		Ledger:      ledger,
		Audit:       audit,
		Publisher:   publisher,
		Notifier:    approvals,
		AdminEmail:  cfg.AdminEmail,
	}, logger)

	issuer := authn.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	verifiers := authn.Chain{issuer}
	if cfg.OIDCIssuer != "" {
		v, err := authn.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID, identities)
		if err != nil {
			logger.Error("failed to init oidc verifier", slog.String("issuer", cfg.OIDCIssuer), sl.Err(err))
			os.Exit(1)
		}
		verifiers = append(verifiers, v)
	}

	var google *authapi.Google
	if cfg.GoogleEnabled() {
		google, err = authapi.NewGoogle(ctx, authapi.GoogleConfig{
			ClientID:         cfg.GoogleClientID,
			ClientSecret:     cfg.GoogleClientSecret,
			RedirectURL:      cfg.GoogleRedirectURL,
			FrontendRedirect: cfg.GoogleFrontendRedirect,
			SecureCookie:     strings.HasPrefix(cfg.GoogleRedirectURL, "https://"),
		})
		if err != nil {
			logger.Warn("google sign-in disabled", sl.Err(err))
		}
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger))
	routes.RegisterRoutes(r, routes.Deps{
		Auth: authapi.NewHandler(identities, issuer, gate, bus, authapi.Options{
			AdminEmail: cfg.AdminEmail,
			Mailer:     mailer,
			Templates:  templates,
			AppURL:     cfg.AppURL,
			Google:     google,
		}, logger),
		Members: members.NewHandler(gate, bus, credentials, logger),
		Admin:   adminapi.NewHandler(subs, audit, credentials, approvals, publisher, logger),
		Webhooks: paymentwebhook.NewHandler(reconciler, paymentwebhook.Options{
			Token:               cfg.WebhookToken,
			StripeWebhookSecret: cfg.StripeWebhookSecret,
		}, logger),
		Verifier:   verifiers,
		Gate:       gate,
		CORSOrigin: cfg.CORSOrigin,
		AuthRate:   rate.Every(6 * time.Second),
		AuthBurst:  10,
		Log:        logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", sl.Err(err))
			stop()
		}
	}()
	logger.Info("listening", slog.String("addr", srv.Addr))

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", sl.Err(err))
	}

	bus.Close()
	<-gateDone
	gate.Wait()
	reconciler.Wait()
	logger.Info("stopped")
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// setupMailer prefers Resend, then SMTP. Without either, emails are skipped.
func setupMailer(cfg *config.Config, log *slog.Logger) mail.Mailer {
	switch {
	case cfg.ResendAPIKey != "":
		return mail.NewResendClient(cfg.ResendAPIKey, cfg.ResendFrom)
	case cfg.SMTPHost != "":
		return mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, log)
	default:
		log.Warn("no mail provider configured, notifications are disabled")
		return mail.Disabled{}
	}
}
