package api

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"

	"prayernote/internal/backup"
	"prayernote/internal/dispatcher"
	apperr "prayernote/internal/errors"
	"prayernote/internal/logger"
	"prayernote/internal/models"
	"prayernote/internal/notify"
	"prayernote/internal/resolver"
	"prayernote/internal/scheduler"
	"prayernote/internal/storage"
)

// Server carries what the handlers need. Scheduler and Backup may be nil.
type Server struct {
	DB         *storage.DB
	Resolver   *resolver.Resolver
	Dispatcher *dispatcher.Dispatcher
	Notifier   notify.Notifier
	Scheduler  *scheduler.Scheduler
	Backup     *backup.Service
	Clock      clockwork.Clock

	VapidPublicKey string
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewApp builds the fiber app with JSON errors and every route mounted.
func NewApp(s *Server) *fiber.App {
	if s.Clock == nil {
		s.Clock = clockwork.NewRealClock()
	}
	app := fiber.New(fiber.Config{
		AppName:               "prayernote",
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(requestLog())
	SetupRoutes(app, s)
	return app
}

// ErrorHandler renders err as {"error": message} with a matching status.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := apperr.UserMessage(err)

	var fe *fiber.Error
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &fe):
		code, msg = fe.Code, fe.Message
	case errors.As(err, &ve):
		code, msg = fiber.StatusBadRequest, validationMessage(ve)
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, backup.ErrSessionNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition):
		code = fiber.StatusConflict
	case errors.Is(err, apperr.ErrBackup):
		code = fiber.StatusBadGateway
	}
	if code >= fiber.StatusInternalServerError {
		logger.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

func validationMessage(ve validator.ValidationErrors) string {
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fmt.Sprintf("%s is invalid (%s)", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func requestLog() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Debug("HTTP request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"took", time.Since(start))
		return err
	}
}

// storeErr tags unexpected repository failures so they render as a
// database message. Not-found, validation and transition errors pass through.
func storeErr(op string, err error) error {
	var ve validator.ValidationErrors
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, models.ErrInvalidTransition), errors.As(err, &ve):
		return err
	}
	return apperr.Store(op, err)
}

func parseBody(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	return validate.Struct(v)
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid "+name)
	}
	return id, nil
}

// queryDay reads ?dayOfWeek=N, defaulting to today.
func (s *Server) queryDay(c *fiber.Ctx) (models.Weekday, error) {
	raw := c.Query("dayOfWeek")
	if raw == "" {
		return s.Resolver.Weekday(), nil
	}
	day, err := models.ParseWeekday(raw)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return day, nil
}

func orEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
