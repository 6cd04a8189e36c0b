package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"prayernote/internal/logger"
	"prayernote/internal/models"
)

type alarmRequest struct {
	Time    string `json:"time"    validate:"required,datetime=15:04"`
	Enabled *bool  `json:"enabled"`
}

type alarmResponse struct {
	models.Alarm
	State string     `json:"state"`
	Next  *time.Time `json:"next,omitempty"`
}

func (s *Server) alarmView(a models.Alarm) alarmResponse {
	res := alarmResponse{Alarm: a, State: "unscheduled"}
	if s.Scheduler == nil {
		return res
	}
	res.State = s.Scheduler.State(a.ID).String()
	if next, ok := s.Scheduler.Next(a.ID); ok {
		res.Next = &next
	}
	return res
}

// reschedule applies an alarm change to the running scheduler.
func (s *Server) reschedule(a models.Alarm) {
	if s.Scheduler == nil {
		return
	}
	if err := s.Scheduler.Schedule(a); err != nil {
		logger.Error("Failed to schedule alarm", "alarm_id", a.ID, "error", err)
	}
}

func ListAlarmsHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		alarms, err := s.DB.ListAlarms(c.UserContext())
		if err != nil {
			return storeErr("list alarms", err)
		}
		res := make([]alarmResponse, 0, len(alarms))
		for _, a := range alarms {
			res = append(res, s.alarmView(a))
		}
		return c.JSON(res)
	}
}

func CreateAlarmHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req alarmRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		hour, minute, err := models.ParseClock(req.Time)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		a := &models.Alarm{Hour: hour, Minute: minute, Enabled: true}
		if req.Enabled != nil {
			a.Enabled = *req.Enabled
		}
		if err := s.DB.InsertAlarm(c.UserContext(), a); err != nil {
			return storeErr("insert alarm", err)
		}
		s.reschedule(*a)
		return c.Status(fiber.StatusCreated).JSON(s.alarmView(*a))
	}
}

func UpdateAlarmHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var req alarmRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		a, err := s.DB.GetAlarm(c.UserContext(), id)
		if err != nil {
			return storeErr("get alarm", err)
		}
		if a.Hour, a.Minute, err = models.ParseClock(req.Time); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Enabled != nil {
			a.Enabled = *req.Enabled
		}
		if err := s.DB.UpdateAlarm(c.UserContext(), a); err != nil {
			return storeErr("update alarm", err)
		}
		s.reschedule(*a)
		return c.JSON(s.alarmView(*a))
	}
}

func DeleteAlarmHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		if err := s.DB.DeleteAlarm(c.UserContext(), id); err != nil {
			return storeErr("delete alarm", err)
		}
		if s.Scheduler != nil {
			s.Scheduler.Cancel(id)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// WarningsHandler lists persistent scheduling problems, such as alarms left
// unscheduled for lack of permission.
func WarningsHandler(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var warnings []string
		if s.Scheduler != nil {
			warnings = s.Scheduler.Warnings()
		}
		return c.JSON(fiber.Map{"warnings": orEmpty(warnings)})
	}
}
