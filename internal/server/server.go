// Package server assembles the HTTP API: middleware chain, domain services
// and their routes over a chosen set of stores.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicrx/clinicrx/internal/config"
	"github.com/clinicrx/clinicrx/internal/domain/account"
	"github.com/clinicrx/clinicrx/internal/domain/appointment"
	"github.com/clinicrx/clinicrx/internal/domain/patient"
	"github.com/clinicrx/clinicrx/internal/domain/prescription"
	"github.com/clinicrx/clinicrx/internal/platform/auth"
	"github.com/clinicrx/clinicrx/internal/platform/db"
	"github.com/clinicrx/clinicrx/internal/platform/middleware"
	"github.com/clinicrx/clinicrx/internal/platform/notification"
	"github.com/clinicrx/clinicrx/internal/platform/validation"
)

const Version = "0.1.0"

// bodyLimit caps request bodies. The largest request is a prescription.
const bodyLimit = "1M"

type Options struct {
	Config *config.Config
	Logger zerolog.Logger
	Stores *Stores
	// Sender delivers account email. When nil it is chosen from the config
	// with NewSender.
	Sender notification.EmailSender
}

// Server is the configured API. Echo is exposed for tests that drive it
// through httptest.
type Server struct {
	Echo    *echo.Echo
	cfg     *config.Config
	logger  zerolog.Logger
	closers []func()
}

// NewSender returns an SMTP sender when SMTP_HOST is set and a sender that
// writes mail to the log otherwise.
func NewSender(cfg *config.Config, logger zerolog.Logger) notification.EmailSender {
	if cfg.SMTPEnabled() {
		return notification.NewSMTPSender(notification.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}
	return notification.NewLogSender(logger)
}

func New(opts Options) (*Server, error) {
	cfg, logger, stores := opts.Config, opts.Logger, opts.Stores
	s := &Server{cfg: cfg, logger: logger}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		ropts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(ropts)
		s.closers = append(s.closers, func() { _ = rdb.Close() })
	}

	var revocations auth.RevocationStore
	if rdb != nil {
		revocations = auth.NewRedisRevocationStore(rdb)
	} else {
		mem := auth.NewTokenRevocationStore()
		s.closers = append(s.closers, mem.Close)
		revocations = mem
	}

	sender := opts.Sender
	if sender == nil {
		sender = NewSender(cfg, logger)
	}
	issuer := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTTTL)

	accounts := account.NewService(stores.Users, account.ServiceConfig{
		Issuer:          issuer,
		Revocations:     revocations,
		Mailer:          notification.NewMailer(sender, notification.NewTemplateEngine(), cfg.ClientURL),
		VerificationTTL: cfg.VerificationTTL,
		Logger:          logger,
	})
	patients := patient.NewService(stores.Patients)
	prescriptions := prescription.NewService(prescription.ServiceConfig{
		Prescriptions: stores.Prescriptions,
		Suggestions:   stores.Suggestions,
		Counter:       stores.Counter,
		Patients:      patientLookup{patients: stores.Patients},
		Doctors:       doctorDirectory{users: stores.Users},
		Tx:            stores.Tx,
		Logger:        logger,
	})
	appointments := appointment.NewService(stores.Appointments)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(middleware.BodyLimit(bodyLimit))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": Version,
		})
	})
	e.GET("/health/db", db.HealthHandler(stores.Driver, stores.Pinger, stores.Stats))

	api := e.Group("/api")
	api.Use(rateLimit(cfg, rdb, logger))
	api.Use(auth.JWTMiddleware(auth.JWTConfig{
		Issuer:      issuer,
		Revocations: revocations,
		Skipper:     auth.AuthSkipper,
	}))

	account.NewHandler(accounts).RegisterRoutes(api)

	clinic := api.Group("", auth.RequireRole(auth.RoleDoctor))
	patient.NewHandler(patients).RegisterRoutes(clinic)
	prescription.NewHandler(prescriptions).RegisterRoutes(clinic)
	appointment.NewHandler(appointments).RegisterRoutes(clinic)

	s.Echo = e
	return s, nil
}

// rateLimit shares one fixed window per client through Redis when it is
// configured and keeps per-process token buckets otherwise.
func rateLimit(cfg *config.Config, rdb *redis.Client, logger zerolog.Logger) echo.MiddlewareFunc {
	rl := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rl.RequestsPerSecond <= 0 || rl.BurstSize <= 0 {
		rl = middleware.DefaultRateLimitConfig()
	}
	if rdb != nil {
		return middleware.RedisRateLimit(middleware.RedisRateLimitConfig{
			Client: rdb,
			Limit:  int64(rl.RequestsPerSecond * time.Minute.Seconds()),
			Window: time.Minute,
		}, logger)
	}
	return middleware.RateLimit(rl)
}

// Start listens on PORT and blocks until the server stops.
func (s *Server) Start() error {
	addr := ":" + s.cfg.Port
	s.logger.Info().Str("addr", addr).Str("store", s.cfg.StoreDriver).Msg("starting server")
	if err := s.Echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases Redis and the
// revocation sweeper. Stores are closed by their owner.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Echo.Shutdown(ctx)
	for _, c := range s.closers {
		c()
	}
	return err
}
