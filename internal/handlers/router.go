package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/Windi-Fikriyansyah/localserve/internal/config"
	"github.com/Windi-Fikriyansyah/localserve/internal/middleware"
	"github.com/Windi-Fikriyansyah/localserve/internal/realtime"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/auth"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/chat"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/directjob"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/job"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/moderation"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/notification"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/review"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/user"
)

// Deps is everything the HTTP layer needs.
type Deps struct {
	Config        config.Config
	Auth          *auth.AuthService
	Users         *user.UserService
	Jobs          *job.JobService
	DirectJobs    *directjob.DirectJobService
	Reviews       *review.ReviewService
	Reports       *moderation.ReportService
	Notifications *notification.NotificationService
	Chat          *chat.ChatService
	Hub           *realtime.Hub

	// DisableRequestLog silences the access log, mostly for tests.
	DisableRequestLog bool
}

// NewApp builds the fiber app with every route mounted.
func NewApp(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler,
	})

	app.Use(recover.New())
	if !d.DisableRequestLog {
		app.Use(logger.New())
	}
	origins := d.Config.CORSOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: origins != "*", // cookie butuh origin eksplisit
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	secure := false
	authChain := []fiber.Handler{
		middleware.JWTFromRequest(d.Config.JWTSecret),
		middleware.AttachJWTLocals(),
		middleware.RequireActiveUser(d.Auth),
	}

	NewWSHandler(d.Hub).Routes(app, append([]fiber.Handler{middleware.RequireUpgrade()}, authChain...)...)

	api := app.Group("/api")

	// public
	jobH := NewJobHandler(d.Jobs)
	reviewH := NewReviewHandler(d.Reviews)
	NewAuthHandler(d.Auth, d.Config.JWTExpiresMin, secure).Routes(api)
	(&GoogleOAuthHandler{
		Auth:            d.Auth,
		Expires:         d.Config.JWTExpiresMin,
		Secure:          secure,
		GoogleClientID:  d.Config.GoogleClientID,
		GoogleSecret:    d.Config.GoogleSecret,
		GoogleRedirect:  d.Config.GoogleRedirect,
		FrontendBaseURL: d.Config.FrontendBaseURL,
	}).Routes(api)
	api.Get("/categories", NewCategoryHandler(d.Jobs).GetCategories)
	jobH.PublicRoutes(api)
	reviewH.PublicRoutes(api)

	// protected (JWT + status re-check)
	protected := api.Group("", authChain...)
	NewProfileHandler(d.Users).Routes(protected)
	jobH.Routes(protected)
	NewDirectJobHandler(d.DirectJobs).Routes(protected)
	reviewH.Routes(protected)
	NewReportHandler(d.Reports).Routes(protected)
	NewNotificationHandler(d.Notifications).Routes(protected)
	NewChatHandler(d.Chat).Routes(protected)

	return app
}
