package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/chirpy-labs/chirpy-push/internal/config"
	"github.com/chirpy-labs/chirpy-push/internal/metrics"
	"github.com/chirpy-labs/chirpy-push/internal/model"
	"github.com/chirpy-labs/chirpy-push/internal/service"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Auth        *service.AuthService
	Accounts    *service.AccountService
	Websites    *service.WebsiteService
	Subscribers *service.SubscriberService
	Segments    *service.SegmentService
	Campaigns   *service.CampaignService
	Dispatcher  *service.Dispatcher
	Clicks      *service.ClickService
	Analytics   *service.AnalyticsService
	Admin       *service.AdminService

	VAPIDPublicKey string
}

// Server wires HTTP handlers.
type Server struct {
	app     *fiber.App
	svc     Services
	cfg     *config.Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New builds a server instance. m may be nil to disable the metrics endpoint.
func New(cfg *config.Config, svc Services, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:     svc,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
	s.app = fiber.New(fiber.Config{
		IdleTimeout:           cfg.HTTP.ReadTimeout,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		AppName:               "chirpy-push",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(s.observe)
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.HTTP.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
	}))
	s.registerRoutes()
	return s
}

// Start listens and serves HTTP traffic.
func (s *Server) Start() error {
	return s.app.Listen(s.cfg.HTTP.Addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	s.app.Get("/health", s.handleHealth)
	if s.metrics != nil && s.cfg.Metrics.Enabled {
		s.app.Get(s.cfg.Metrics.Path, adaptor.HTTPHandler(s.metrics.Handler()))
	}

	api := s.app.Group("/api")
	api.Get("/vapid-public-key", s.handleVAPIDKey)

	api.Post("/users/register", s.handleRegister)
	api.Get("/users/info", s.requireCredential, s.handleUserInfo)
	api.Post("/auth/login", s.handleLogin)

	api.Get("/websites", s.requireCredential, s.handleListWebsites)
	api.Post("/websites/add", s.requireCredential, s.handleAddWebsite)
	api.Delete("/websites/:id", s.requireCredential, s.handleDeleteWebsite)
	api.Get("/websites/:id/subscribers", s.requireCredential, s.handleListSubscribers)

	api.Post("/subscribe", s.handleSubscribe)

	api.Post("/segments/create", s.requireCredential, s.handleCreateSegment)
	api.Post("/segments/preview", s.requireCredential, s.handlePreviewSegment)
	api.Get("/segments/:websiteId", s.requireCredential, s.handleListSegments)
	api.Delete("/segments/:id", s.requireCredential, s.handleDeleteSegment)

	api.Post("/campaigns/create", s.requireCredential, s.handleCreateCampaign)
	// registered before the :websiteId route so "all" is not taken as an id
	api.Get("/campaigns/all/list", s.requireCredential, s.handleListAllCampaigns)
	api.Get("/campaigns/:websiteId/list", s.requireCredential, s.handleListCampaigns)
	api.Get("/campaigns/:id", s.requireCredential, s.handleGetCampaign)
	api.Post("/campaigns/:id/send", s.requireCredential, s.handleSendCampaign)
	api.Delete("/campaigns/:id", s.requireCredential, s.handleDeleteCampaign)

	api.Post("/track/click", s.handleTrackClick)

	analytics := api.Group("/analytics", s.requireCredential)
	analytics.Get("/overview", s.handleOverview)
	analytics.Get("/growth", s.handleGrowth)
	analytics.Get("/breakdown", s.handleBreakdown)
	analytics.Get("/campaigns/:id", s.handleCampaignReport)

	s.app.Post("/admin/login", s.handleAdminLogin)
	admin := s.app.Group("/admin", s.requireAdmin)
	admin.Get("/summary", s.handleAdminSummary)
}

// observe counts every request and logs it at debug level.
func (s *Server) observe(c *fiber.Ctx) error {
	started := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else {
			status = statusFor(err)
		}
	}
	s.metrics.ObserveRequest(c.Method(), status)
	s.logger.Debug("http request",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"duration", time.Since(started),
	)
	return err
}

// requireCredential rejects account-scoped requests that carry no credential
// before their body or query is looked at.
func (s *Server) requireCredential(c *fiber.Ctx) error {
	if credential(c) == "" {
		return c.Status(http.StatusUnauthorized).JSON(model.Error("API key required"))
	}
	return c.Next()
}

func (s *Server) requireAdmin(c *fiber.Ctx) error {
	token := extractBearerToken(c.Get("Authorization"))
	if token == "" {
		return c.Status(http.StatusUnauthorized).JSON(model.Error("admin token required"))
	}
	claims, err := s.svc.Auth.ValidateAdmin(token)
	if err != nil {
		return s.fail(c, err)
	}
	c.Locals("username", claims.Subject)
	return c.Next()
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(model.Error(fe.Message))
	}
	return s.fail(c, err)
}

// fail writes the failure envelope with the status matching err's kind.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		msg = "internal server error"
	}
	return c.Status(status).JSON(model.Error(msg))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) ok(c *fiber.Ctx, status int, fields fiber.Map) error {
	return c.Status(status).JSON(model.Success(fields))
}

// credential returns the account credential: the X-API-Key header, or a
// bearer session token.
func credential(c *fiber.Ctx) string {
	if key := strings.TrimSpace(c.Get("X-API-Key")); key != "" {
		return key
	}
	return extractBearerToken(c.Get("Authorization"))
}

func extractBearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return &service.Error{Kind: service.ErrValidation, Msg: "invalid request body"}
	}
	return nil
}
