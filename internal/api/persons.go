package api

import (
	"github.com/gofiber/fiber/v2"

	"prayernote/internal/models"
)

type personRequest struct {
	Name     string `json:"name"     validate:"required,max=200"`
	Memo     string `json:"memo"     validate:"max=2000"`
	Days     []int  `json:"days"     validate:"dive,min=0,max=7"`
	Priority *int   `json:"priority"`
}

func (r personRequest) weekdays() models.WeekdaySet {
	set := models.WeekdaySet{}
	for _, d := range r.Days {
		set = set.With(models.Weekday(d))
	}
	return set
}

type reorderRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1"`
}

func ListPersonsHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		persons, err := s.DB.SearchPersons(c.UserContext(), c.Query("q"))
		if err != nil {
			return storeErr("list persons", err)
		}
		return c.JSON(orEmpty(persons))
	}
}

func CreatePersonHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req personRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		p := &models.Person{
			Name:      req.Name,
			Memo:      req.Memo,
			Days:      req.weekdays(),
			CreatedAt: s.Clock.Now(),
		}
		if req.Priority != nil {
			p.Priority = *req.Priority
		}
		if err := s.DB.InsertPerson(c.UserContext(), p); err != nil {
			return storeErr("insert person", err)
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	}
}

func GetPersonHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		p, err := s.DB.GetPerson(c.UserContext(), id)
		if err != nil {
			return storeErr("get person", err)
		}
		return c.JSON(p)
	}
}

func UpdatePersonHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var req personRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		p, err := s.DB.GetPerson(c.UserContext(), id)
		if err != nil {
			return storeErr("get person", err)
		}
		p.Name = req.Name
		p.Memo = req.Memo
		p.Days = req.weekdays()
		if req.Priority != nil {
			p.Priority = *req.Priority
		}
		if err := s.DB.UpdatePerson(c.UserContext(), p); err != nil {
			return storeErr("update person", err)
		}
		return c.JSON(p)
	}
}

func DeletePersonHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		if err := s.DB.DeletePerson(c.UserContext(), id); err != nil {
			return storeErr("delete person", err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func ReorderPersonsHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req reorderRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		if err := s.DB.ReorderPersons(c.UserContext(), req.IDs); err != nil {
			return storeErr("reorder persons", err)
		}
		persons, err := s.DB.ListPersons(c.UserContext())
		if err != nil {
			return storeErr("list persons", err)
		}
		return c.JSON(orEmpty(persons))
	}
}

func PersonHistoryHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		history, err := s.DB.HistoryByPerson(c.UserContext(), id)
		if err != nil {
			return storeErr("person history", err)
		}
		return c.JSON(orEmpty(history))
	}
}
