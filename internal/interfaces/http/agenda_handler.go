package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/lokario-api/internal/application/agenda"
	"github.com/jhoicas/lokario-api/internal/application/dto"
)

// AgendaHandler tâches y rendez-vous.
type AgendaHandler struct {
	tasks        *agenda.TaskUseCase
	appointments *agenda.AppointmentUseCase
}

// NewAgendaHandler construye el handler.
func NewAgendaHandler(tasks *agenda.TaskUseCase, appointments *agenda.AppointmentUseCase) *AgendaHandler {
	return &AgendaHandler{tasks: tasks, appointments: appointments}
}

// ListTasks GET /api/v1/tasks?mine=true
func (h *AgendaHandler) ListTasks(c *fiber.Ctx) error {
	out, err := h.tasks.List(c.UserContext(), GetActor(c), c.QueryBool("mine", false))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// CreateTask POST /api/v1/tasks
func (h *AgendaHandler) CreateTask(c *fiber.Ctx) error {
	var in dto.CreateTaskRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := h.tasks.Create(c.UserContext(), GetActor(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// UpdateTask PATCH /api/v1/tasks/:id
func (h *AgendaHandler) UpdateTask(c *fiber.Ctx) error {
	var in dto.UpdateTaskRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := h.tasks.Update(c.UserContext(), GetActor(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// DeleteTask DELETE /api/v1/tasks/:id
func (h *AgendaHandler) DeleteTask(c *fiber.Ctx) error {
	if err := h.tasks.Delete(c.UserContext(), GetActor(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListAppointments GET /api/v1/appointments?from=&to=
func (h *AgendaHandler) ListAppointments(c *fiber.Ctx) error {
	var rng dto.AppointmentRange
	var err error
	if rng.From, err = queryDate(c, "from"); err != nil {
		return err
	}
	if rng.To, err = queryDate(c, "to"); err != nil {
		return err
	}
	out, err := h.appointments.List(c.UserContext(), GetActor(c), rng)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// CreateAppointment POST /api/v1/appointments
func (h *AgendaHandler) CreateAppointment(c *fiber.Ctx) error {
	var in dto.CreateAppointmentRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := h.appointments.Create(c.UserContext(), GetActor(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// UpdateAppointment PATCH /api/v1/appointments/:id
func (h *AgendaHandler) UpdateAppointment(c *fiber.Ctx) error {
	var in dto.UpdateAppointmentRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := h.appointments.Update(c.UserContext(), GetActor(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// DeleteAppointment DELETE /api/v1/appointments/:id
func (h *AgendaHandler) DeleteAppointment(c *fiber.Ctx) error {
	if err := h.appointments.Delete(c.UserContext(), GetActor(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
