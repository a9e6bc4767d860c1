package handlers

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"
	"github.com/jmoiron/sqlx"

	"secondhand/internal/config"
	applog "secondhand/internal/log"
	"secondhand/internal/metrics"
	"secondhand/internal/services"
	"secondhand/web"
)

const (
	jsonBodyLimit   = 1 << 20 // 1 MiB
	uploadBodyLimit = services.MaxImageBytes + 64<<10
)

// NewApp builds the HTTP server: middleware, static media, the HTML landing
// page and the JSON API under /api.
func NewApp(db *sqlx.DB, cfg config.Config) *fiber.App {
	engine := html.NewFileSystem(http.FS(web.Templates()), ".html")

	app := fiber.New(fiber.Config{
		Views:        engine,
		BodyLimit:    uploadBodyLimit,
		ErrorHandler: ErrorHandler,
	})

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{Output: applog.Writer()}))
	app.Use(helmet.New())
	app.Use(metrics.Middleware())
	if cfg.RateMax > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateMax,
			Expiration: time.Minute,
			Next: func(c *fiber.Ctx) bool {
				p := c.Path()
				return strings.HasPrefix(p, "/media/") || p == "/healthz" || p == "/metrics"
			},
			LimitReached: func(c *fiber.Ctx) error {
				applog.Security(c, "rate.global.hit", nil)
				return fail(c, fiber.StatusTooManyRequests, "rate limit exceeded, retry soon")
			},
		}))
	}
	// only uploads may exceed the JSON body cap
	app.Use(func(c *fiber.Ctx) error {
		if len(c.Body()) > jsonBodyLimit && !strings.HasPrefix(c.Path(), "/api/upload/") {
			applog.Security(c, "body.too_large", map[string]any{"bytes": len(c.Body())})
			return fail(c, fiber.StatusRequestEntityTooLarge, "request body too large")
		}
		return c.Next()
	})

	// ---------- Static media ----------
	mediaDir := cfg.MediaDir
	if !filepath.IsAbs(mediaDir) {
		if abs, err := filepath.Abs(mediaDir); err == nil {
			mediaDir = abs
		}
	}
	prefix := strings.TrimRight(cfg.MediaURL, "/")
	if prefix == "" {
		prefix = "/media"
	}
	// Guarded media to avoid traversal
	app.Get(prefix+"/*", func(c *fiber.Ctx) error {
		path := c.Params("*")
		rawLower := strings.ToLower(path)
		if strings.Contains(rawLower, "..") || strings.Contains(rawLower, "%2e") || strings.Contains(rawLower, "\x00") {
			applog.Security(c, "media.traversal.block", map[string]any{"path": path})
			return fail(c, fiber.StatusNotFound, "not found")
		}
		clean := filepath.Clean(path)
		if clean == "." || strings.Contains(clean, "..") || filepath.IsAbs(clean) {
			applog.Security(c, "media.traversal.block", map[string]any{"path": path})
			return fail(c, fiber.StatusNotFound, "not found")
		}
		return c.SendFile(filepath.Join(mediaDir, clean), true)
	})

	deps := NewDeps(db, cfg)
	authed := RequireUser(deps.Auth)

	app.Get("/", deps.CategoryHandler.Home)
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Get("/metrics", metrics.Handler())

	api := app.Group("/api")

	// Auth (login throttled)
	loginMax := cfg.LoginRateMax
	if loginMax <= 0 {
		loginMax = 5
	}
	api.Post("/auth/login", limiter.New(limiter.Config{
		Max:        loginMax,
		Expiration: 10 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|login"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return fail(c, fiber.StatusTooManyRequests, "too many attempts, please try again later")
		},
	}), deps.AuthHandler.Login)
	api.Post("/auth/register", deps.AuthHandler.Register)
	api.Get("/auth/me", authed, deps.AuthHandler.Me)
	api.Post("/auth/change-password", authed, deps.AuthHandler.ChangePassword)
	api.Post("/auth/logout", authed, deps.AuthHandler.Logout)

	// Catalogue
	api.Get("/categories", deps.CategoryHandler.List)
	api.Get("/products", deps.ProductHandler.List)
	api.Get("/products/my", authed, deps.ProductHandler.Mine)
	api.Get("/products/:id", deps.ProductHandler.Get)
	api.Post("/products", authed, deps.ProductHandler.Create)
	api.Put("/products/:id", authed, deps.ProductHandler.Update)
	api.Delete("/products/:id", authed, deps.ProductHandler.Delete)
	api.Post("/upload/image", authed, deps.UploadHandler.Image)

	// Orders
	api.Post("/orders", authed, deps.OrderHandler.Create)
	api.Get("/orders/my", authed, deps.OrderHandler.Mine)
	api.Get("/orders/sales", authed, deps.OrderHandler.Sales)
	api.Post("/orders/pay", authed, deps.OrderHandler.Pay)
	api.Get("/orders/:id", authed, deps.OrderHandler.Get)
	api.Post("/orders/:id/ship", authed, deps.OrderHandler.Ship())
	api.Post("/orders/:id/complete", authed, deps.OrderHandler.Complete())
	api.Post("/orders/:id/cancel", authed, deps.OrderHandler.Cancel())

	app.Use(func(c *fiber.Ctx) error {
		return fail(c, fiber.StatusNotFound, "not found")
	})
	return app
}
