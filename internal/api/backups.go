package api

import (
	"github.com/gofiber/fiber/v2"

	"prayernote/internal/backup"
)

type backupRequest struct {
	PersonIDs       []int64 `json:"person_ids"`
	IncludeAnswered bool    `json:"include_answered"`
}

type backupDetail struct {
	Session backup.Session     `json:"session"`
	Persons []backup.PersonDoc `json:"persons"`
	Topics  []backup.TopicDoc  `json:"topics"`
}

func (s *Server) backups() (*backup.Service, error) {
	if s.Backup == nil {
		return nil, fiber.NewError(fiber.StatusServiceUnavailable, "Backup is not configured")
	}
	return s.Backup, nil
}

func ListBackupsHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		svc, err := s.backups()
		if err != nil {
			return err
		}
		sessions, err := svc.Sessions(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(orEmpty(sessions))
	}
}

// CreateBackupHandler backs up the chosen persons, everyone when none are given.
func CreateBackupHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		svc, err := s.backups()
		if err != nil {
			return err
		}
		var req backupRequest
		if len(c.Body()) > 0 {
			if err := parseBody(c, &req); err != nil {
				return err
			}
		}
		id, err := svc.BackupSelected(c.UserContext(), s.DB, req.PersonIDs, req.IncludeAnswered)
		if err != nil {
			return err
		}
		sess, err := svc.Session(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(sess)
	}
}

func GetBackupHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		svc, err := s.backups()
		if err != nil {
			return err
		}
		id := c.Params("id")
		sess, err := svc.Session(c.UserContext(), id)
		if err != nil {
			return err
		}
		persons, err := svc.SessionPersons(c.UserContext(), id)
		if err != nil {
			return err
		}
		topics, err := svc.SessionTopics(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(backupDetail{Session: *sess, Persons: persons, Topics: topics})
	}
}

func RestoreBackupHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		svc, err := s.backups()
		if err != nil {
			return err
		}
		report, err := svc.Restore(c.UserContext(), c.Params("id"), s.DB)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": report.String(), "report": report})
	}
}

func DeleteBackupHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		svc, err := s.backups()
		if err != nil {
			return err
		}
		if err := svc.DeleteSession(c.UserContext(), c.Params("id")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
