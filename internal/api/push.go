package api

import (
	"github.com/gofiber/fiber/v2"

	"prayernote/internal/logger"
	"prayernote/internal/models"
)

func VapidPublicKeyHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if s.VapidPublicKey == "" {
			return fiber.NewError(fiber.StatusNotFound, "Web push is not configured")
		}
		return c.JSON(fiber.Map{"publicKey": s.VapidPublicKey})
	}
}

func SubscribePushHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var sub models.PushSubscription
		if err := parseBody(c, &sub); err != nil {
			return err
		}
		if err := s.DB.AddPushSubscription(c.UserContext(), sub); err != nil {
			return storeErr("subscribe push", err)
		}
		if s.Scheduler != nil {
			if err := s.Scheduler.RetryBlocked(); err != nil {
				logger.Warn("Failed to arm blocked alarms", "error", err)
			}
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true})
	}
}

func UnsubscribePushHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Endpoint string `json:"endpoint" validate:"required"`
		}
		if err := parseBody(c, &body); err != nil {
			return err
		}
		if err := s.DB.RemovePushSubscription(c.UserContext(), body.Endpoint); err != nil {
			return storeErr("unsubscribe push", err)
		}
		return c.JSON(fiber.Map{"success": true})
	}
}
