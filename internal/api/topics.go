package api

import (
	"github.com/gofiber/fiber/v2"

	"prayernote/internal/models"
)

type topicRequest struct {
	Title    string `json:"title"    validate:"required,max=500"`
	Priority *int   `json:"priority"`
}

func ListTopicsHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		if _, err := s.DB.GetPerson(c.UserContext(), id); err != nil {
			return storeErr("get person", err)
		}
		var topics []models.Topic
		if c.QueryBool("active") {
			topics, err = s.DB.ActiveTopicsByPerson(c.UserContext(), id)
		} else {
			topics, err = s.DB.TopicsByPerson(c.UserContext(), id)
		}
		if err != nil {
			return storeErr("list topics", err)
		}
		return c.JSON(orEmpty(topics))
	}
}

// CreateTopicHandler adds an active topic on top of the person's list.
func CreateTopicHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var req topicRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		if _, err := s.DB.GetPerson(c.UserContext(), id); err != nil {
			return storeErr("get person", err)
		}
		t := &models.Topic{PersonID: id, Title: req.Title, CreatedAt: s.Clock.Now()}
		if err := s.DB.AddTopic(c.UserContext(), t); err != nil {
			return storeErr("add topic", err)
		}
		return c.Status(fiber.StatusCreated).JSON(t)
	}
}

func UpdateTopicHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var req topicRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		t, err := s.DB.GetTopic(c.UserContext(), id)
		if err != nil {
			return storeErr("get topic", err)
		}
		t.Title = req.Title
		if req.Priority != nil {
			t.Priority = *req.Priority
		}
		if err := s.DB.UpdateTopic(c.UserContext(), t); err != nil {
			return storeErr("update topic", err)
		}
		return c.JSON(t)
	}
}

func DeleteTopicHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		if err := s.DB.DeleteTopic(c.UserContext(), id); err != nil {
			return storeErr("delete topic", err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func ReorderTopicsHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var req reorderRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		if err := s.DB.ReorderTopics(c.UserContext(), req.IDs); err != nil {
			return storeErr("reorder topics", err)
		}
		topics, err := s.DB.TopicsByPerson(c.UserContext(), id)
		if err != nil {
			return storeErr("list topics", err)
		}
		return c.JSON(orEmpty(topics))
	}
}

func AnswerTopicHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		t, err := s.DB.MarkAnswered(c.UserContext(), id, s.Clock.Now())
		if err != nil {
			return storeErr("answer topic", err)
		}
		return c.JSON(t)
	}
}

func RestoreTopicHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		t, err := s.DB.RestoreTopic(c.UserContext(), id)
		if err != nil {
			return storeErr("restore topic", err)
		}
		return c.JSON(t)
	}
}

func AnsweredTopicsHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		topics, err := s.DB.AnsweredTopics(c.UserContext())
		if err != nil {
			return storeErr("answered topics", err)
		}
		return c.JSON(orEmpty(topics))
	}
}

func TopicHistoryHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		history, err := s.DB.HistoryByTopic(c.UserContext(), id)
		if err != nil {
			return storeErr("topic history", err)
		}
		return c.JSON(orEmpty(history))
	}
}
