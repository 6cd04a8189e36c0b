package api

import (
	"fmt"
	"slices"
	"time"

	"github.com/gofiber/fiber/v2"

	apperr "prayernote/internal/errors"
	"prayernote/internal/models"
	"prayernote/internal/notify"
	"prayernote/internal/storage"
)

type todayResponse struct {
	Day         models.Weekday      `json:"day"`
	DayName     string              `json:"day_name"`
	Assignments []models.Assignment `json:"assignments"`
}

// TodayHandler lists who to pray for on ?dayOfWeek=N, today by default.
func TodayHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		day, err := s.queryDay(c)
		if err != nil {
			return err
		}
		assignments, err := s.Resolver.Resolve(c.UserContext(), day)
		if err != nil {
			return storeErr("resolve day", err)
		}
		return c.JSON(todayResponse{Day: day, DayName: day.String(), Assignments: orEmpty(assignments)})
	}
}

// ToggleTodayHandler adds or removes the day from a person's assignment.
func ToggleTodayHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		day, err := s.queryDay(c)
		if err != nil {
			return err
		}
		p, err := s.DB.GetPerson(c.UserContext(), id)
		if err != nil {
			return storeErr("get person", err)
		}
		p.Days = p.Days.Toggle(day)
		if err := s.DB.SetPersonDays(c.UserContext(), id, p.Days); err != nil {
			return storeErr("set days", err)
		}
		return c.JSON(p)
	}
}

// DispatchHandler runs the reminder dispatch immediately.
func DispatchHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := s.Dispatcher.Run(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(res)
	}
}

func TestNotificationHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if s.Notifier == nil || !s.Notifier.Permitted(c.UserContext()) {
			return fiber.NewError(fiber.StatusConflict, apperr.UserMessage(apperr.ErrPermission))
		}
		if err := s.Notifier.Notify(c.UserContext(), notify.Test(s.Resolver.Weekday())); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true})
	}
}

// StatsHandler reports activity over the last ?months=N months, today included.
func StatsHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		months := c.QueryInt("months", storage.DefaultStatsMonths)
		if !slices.Contains(storage.StatsPeriods, months) {
			return fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("months must be one of %v", storage.StatsPeriods))
		}
		now := s.Clock.Now()
		stats, err := s.DB.Stats(c.UserContext(), s.DB.PeriodStart(now, months), s.DB.PeriodEnd(now))
		if err != nil {
			return storeErr("stats", err)
		}
		stats.ByPerson = orEmpty(stats.ByPerson)
		stats.Monthly = orEmpty(stats.Monthly)
		return c.JSON(stats)
	}
}

// HistoryHandler lists prayers recorded from ?from to ?to (YYYY-MM-DD, both
// days included). Defaults cover the default statistics period.
func HistoryHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		now := s.Clock.Now()
		start := s.DB.PeriodStart(now, storage.DefaultStatsMonths)
		end := s.DB.PeriodEnd(now)
		if raw := c.Query("from"); raw != "" {
			d, err := time.ParseInLocation(time.DateOnly, raw, s.DB.Location())
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid from date")
			}
			start = d
		}
		if raw := c.Query("to"); raw != "" {
			d, err := time.ParseInLocation(time.DateOnly, raw, s.DB.Location())
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid to date")
			}
			end = d.AddDate(0, 0, 1)
		}
		if !start.Before(end) {
			return fiber.NewError(fiber.StatusBadRequest, "from must not be after to")
		}
		history, err := s.DB.HistoryBetween(c.UserContext(), start, end)
		if err != nil {
			return storeErr("history", err)
		}
		return c.JSON(orEmpty(history))
	}
}
