package api

import (
	"github.com/gofiber/fiber/v2"

	"prayernote/internal/storage"
)

func SetupRoutes(app *fiber.App, s *Server) {
	api := app.Group("/api")

	persons := api.Group("/persons")
	persons.Get("/", ListPersonsHandler(s))
	persons.Post("/", CreatePersonHandler(s))
	persons.Put("/order", ReorderPersonsHandler(s))
	persons.Get("/:id", GetPersonHandler(s))
	persons.Put("/:id", UpdatePersonHandler(s))
	persons.Delete("/:id", DeletePersonHandler(s))
	persons.Get("/:id/topics", ListTopicsHandler(s))
	persons.Post("/:id/topics", CreateTopicHandler(s))
	persons.Put("/:id/topics/order", ReorderTopicsHandler(s))
	persons.Get("/:id/history", PersonHistoryHandler(s))

	topics := api.Group("/topics")
	topics.Get("/answered", AnsweredTopicsHandler(s))
	topics.Put("/:id", UpdateTopicHandler(s))
	topics.Delete("/:id", DeleteTopicHandler(s))
	topics.Post("/:id/answer", AnswerTopicHandler(s))
	topics.Post("/:id/restore", RestoreTopicHandler(s))
	topics.Get("/:id/history", TopicHistoryHandler(s))

	alarms := api.Group("/alarms")
	alarms.Get("/", ListAlarmsHandler(s))
	alarms.Post("/", CreateAlarmHandler(s))
	alarms.Get("/warnings", WarningsHandler(s))
	alarms.Put("/:id", UpdateAlarmHandler(s))
	alarms.Delete("/:id", DeleteAlarmHandler(s))

	api.Get("/today", TodayHandler(s))
	api.Post("/today/:id/toggle", ToggleTodayHandler(s))
	api.Post("/dispatch", DispatchHandler(s))
	api.Post("/notify/test", TestNotificationHandler(s))
	api.Get("/stats", StatsHandler(s))
	api.Get("/history", HistoryHandler(s))

	push := api.Group("/push")
	push.Get("/vapid-public-key", VapidPublicKeyHandler(s))
	push.Post("/subscribe", SubscribePushHandler(s))
	push.Delete("/unsubscribe", UnsubscribePushHandler(s))

	backups := api.Group("/backups")
	backups.Get("/", ListBackupsHandler(s))
	backups.Post("/", CreateBackupHandler(s))
	backups.Get("/:id", GetBackupHandler(s))
	backups.Post("/:id/restore", RestoreBackupHandler(s))
	backups.Delete("/:id", DeleteBackupHandler(s))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "schema": storage.SchemaVersion()})
	})
}
