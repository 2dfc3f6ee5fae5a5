package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hkit/portal/internal/config"
	"github.com/hkit/portal/internal/domain/auditevent"
	"github.com/hkit/portal/internal/domain/facility"
	"github.com/hkit/portal/internal/domain/identity"
	"github.com/hkit/portal/internal/domain/mohusers"
	"github.com/hkit/portal/internal/domain/profile"
	"github.com/hkit/portal/internal/domain/registration"
	"github.com/hkit/portal/internal/domain/session"
	"github.com/hkit/portal/internal/platform/auth"
	"github.com/hkit/portal/internal/platform/db"
	"github.com/hkit/portal/internal/platform/metrics"
	"github.com/hkit/portal/internal/platform/middleware"
	"github.com/hkit/portal/internal/platform/notification"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "portal-server",
		Short: "HIE Admin Portal API Server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the portal API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				state := "pending"
				applied := ""
				if s.Applied {
					state = "applied"
					if s.AppliedAt != nil {
						applied = s.AppliedAt.Format(time.RFC3339)
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, state, applied)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// auditStore adapts the audit event service to the middleware recorder
// interface, avoiding a domain import inside the middleware package.
type auditStore struct {
	svc *auditevent.Service
}

func (s *auditStore) RecordChange(entry middleware.AuditEntry) error {
	e := &auditevent.Event{
		Action:    entry.Action,
		Outcome:   auditevent.OutcomeSuccess,
		RemoteIP:  entry.RemoteIP,
		RequestID: entry.RequestID,
		Detail: map[string]interface{}{
			"method": entry.Method,
			"path":   entry.Path,
			"status": entry.StatusCode,
		},
		Recorded: entry.Timestamp,
	}
	if entry.StatusCode >= http.StatusBadRequest {
		e.Outcome = auditevent.OutcomeFailure
	}
	if actorID, err := uuid.Parse(entry.UserID); err == nil {
		e.ActorID = &actorID
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.svc.Record(ctx, e)
	return nil
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Repositories
	userRepo := identity.NewUserRepoPG(pool)
	sessionRepo := identity.NewSessionRepoPG(pool)
	profileRepo := profile.NewProfileRepoPG(pool)
	facilityRepo := facility.NewFacilityRepoPG(pool)
	requestRepo := registration.NewRequestRepoPG(pool)
	eventRepo := auditevent.NewEventRepoPG(pool)

	// Services
	issuer := auth.NewTokenIssuer([]byte(cfg.SessionSigningKey), cfg.SessionTTL())
	identitySvc := identity.NewService(userRepo, sessionRepo, profileRepo, issuer)
	profileSvc := profile.NewService(profileRepo)
	resolver := profile.NewResolver(profileRepo)
	facilitySvc := facility.NewService(facilityRepo)
	auditSvc := auditevent.NewService(eventRepo)

	mailer := notification.NewMailer(
		&notification.LogSender{From: cfg.SMTPFrom},
		notification.NewTemplateEngine(),
	)
	approver := registration.NewApprover(requestRepo, identitySvc, facilitySvc, profileRepo, mailer)
	registrationSvc := registration.NewService(requestRepo, approver)
	mohSvc := mohusers.NewService(identitySvc, profileRepo)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(metrics.Middleware())
	e.Use(middleware.Audit(logger, &auditStore{svc: auditSvc}))

	metrics.Init()
	e.GET("/metrics", metrics.Handler())

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", func(c echo.Context) error {
		if err := pool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unreachable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// API groups
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	limiter := middleware.NewRateLimiter(rateLimitCfg)
	defer limiter.Stop()
	apiV1.Use(limiter.Middleware())

	authed := apiV1.Group("", auth.Middleware(issuer, identitySvc))
	requireMoH := auth.RequireRole(profileSvc.RoleFor, string(profile.RoleMoH))

	// Roles without a dashboard of their own land on the unauthorized page.
	landing := func(role profile.Role) string {
		if p := session.DashboardPath(role); p != "" {
			return p
		}
		return session.PathUnauthorized
	}

	// Routes
	identity.NewHandler(identitySvc, resolver, landing).RegisterRoutes(apiV1, authed)
	profile.NewHandler(profileSvc).RegisterRoutes(authed)
	facility.NewHandler(facilitySvc, profileSvc).RegisterRoutes(authed, requireMoH)
	registration.NewHandler(registrationSvc).RegisterRoutes(apiV1, authed, requireMoH)
	mohusers.NewHandler(mohSvc).RegisterRoutes(authed, requireMoH)
	auditevent.NewHandler(auditSvc).RegisterRoutes(authed, requireMoH)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
