// Package server exposes the durable cache over HTTP.
//
// Handlers only ever read what the store currently holds; they never reach out to GitHub,
// so a slow or failing upstream cannot slow down a client request.
package server

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/naka-gawa/repo-cache/internal/domain"
	"github.com/naka-gawa/repo-cache/internal/store"
)

// Reader is the read side of the durable store.
type Reader interface {
	ReadRepositories() ([]domain.Repository, error)
	ReadLanguages(name string) (domain.LanguageMap, error)
	ReadReadme(name string) (string, error)
	ReadMetadata() (*domain.CacheMetadata, error)
}

// Options configures the HTTP app.
type Options struct {
	Prefix     string // route prefix, e.g. "/api"
	CORSOrigin string // the single browser origin allowed to call the API
	AccessLog  bool
}

// New builds the fiber app serving the cache.
func New(reader Reader, opts Options, logger *slog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "repo-cache",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(fiberlogger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{opts.CORSOrigin},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		AllowMethods: []string{"GET", "HEAD", "OPTIONS"},
	}))

	NewHandler(reader, logger).Register(app.Group(opts.Prefix))
	return app
}

// Handler serves the cached artifacts.
type Handler struct {
	store  Reader
	logger *slog.Logger
}

// NewHandler creates a new cache handler.
func NewHandler(reader Reader, logger *slog.Logger) *Handler {
	return &Handler{store: reader, logger: logger}
}

// Register sets up the read-only routes.
func (h *Handler) Register(api fiber.Router) {
	api.Get("/repos", h.ListRepositories)
	api.Get("/repos/:name/languages", h.GetLanguages)
	api.Get("/repos/:name/readme", h.GetReadme)
	api.Get("/metadata", h.GetMetadata)
	api.Get("/health", h.Health)
}

// ListRepositories returns the cached repositories, most recently pushed first.
func (h *Handler) ListRepositories(c fiber.Ctx) error {
	repos, err := h.store.ReadRepositories()
	if err != nil {
		return h.fail(c, err, "repositories")
	}
	return c.JSON(repos)
}

// GetLanguages returns the language map of one repository.
func (h *Handler) GetLanguages(c fiber.Ctx) error {
	languages, err := h.store.ReadLanguages(c.Params("name"))
	if err != nil {
		return h.fail(c, err, "languages")
	}
	return c.JSON(languages)
}

// GetReadme returns the README of one repository as plain text.
func (h *Handler) GetReadme(c fiber.Ctx) error {
	readme, err := h.store.ReadReadme(c.Params("name"))
	if err != nil {
		return h.fail(c, err, "README")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(readme)
}

// GetMetadata returns when the cache was last refreshed.
func (h *Handler) GetMetadata(c fiber.Ctx) error {
	meta, err := h.store.ReadMetadata()
	if err != nil {
		return h.fail(c, err, "metadata")
	}
	return c.JSON(meta)
}

// Health reports liveness and the age of the snapshot.
func (h *Handler) Health(c fiber.Ctx) error {
	body := fiber.Map{"status": "ok", "last_updated": nil}
	if meta, err := h.store.ReadMetadata(); err == nil {
		body["last_updated"] = meta.LastUpdated
	}
	return c.JSON(body)
}

// fail maps storage errors to responses: absent artifacts are 404, anything else is 500.
func (h *Handler) fail(c fiber.Ctx, err error, what string) error {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidName) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": what + " not found"})
	}
	h.logger.Error("error reading cache", "artifact", what, "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch " + what})
}
