package httpapi

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/series-adapter/internal/series"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *series.Service) {
	health := func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	}
	app.Get("/", health)
	app.Get("/health", health)

	app.Post("/", func(c *fiber.Ctx) error {
		var env jobEnvelope
		if err := json.Unmarshal(c.Body(), &env); err != nil {
			malformed := series.MalformedRequest("")
			return c.Status(malformed.StatusCode).JSON(malformed)
		}
		if err := validate.Struct(env); err != nil {
			malformed := series.MalformedRequest(env.ID)
			return c.Status(malformed.StatusCode).JSON(malformed)
		}

		resp := service.Execute(c.UserContext(), series.Request{ID: env.ID, Data: env.Data})
		return c.Status(resp.StatusCode).JSON(resp)
	})

	v1 := app.Group("/api/v1")

	v1.Get("/measurements/latest", func(c *fiber.Ctx) error {
		m, err := service.Persistence().Latest(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read measurements")
		}
		if m == nil {
			return fiber.NewError(fiber.StatusNotFound, "no processed measurement")
		}
		return c.JSON(m)
	})

	v1.Get("/measurements", func(c *fiber.Ctx) error {
		var req rangeQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ms, err := service.Persistence().MeasurementsInRange(c.UserContext(), req.From, req.To)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read measurements")
		}
		if ms == nil {
			ms = []series.Measurement{}
		}

		return c.JSON(fiber.Map{
			"from":         req.From.Format(time.DateOnly),
			"to":           req.To.Format(time.DateOnly),
			"measurements": ms,
		})
	})

	v1.Delete("/measurements", func(c *fiber.Ctx) error {
		before := c.Query("before")
		if before == "" {
			return fiber.NewError(fiber.StatusBadRequest, "before query parameter is required")
		}
		cutoff, err := parseDay(before)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		deleted, err := service.Persistence().DeleteOlderThan(c.UserContext(), cutoff)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to delete measurements")
		}
		return c.JSON(fiber.Map{"deleted": deleted})
	})
}

// jobEnvelope is the inbound job-run body. Both fields must be present.
type jobEnvelope struct {
	ID   string              `json:"id" validate:"required"`
	Data *series.RequestData `json:"data" validate:"required"`
}

// rangeQuery holds query parameters for the measurements range endpoint.
type rangeQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (r *rangeQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseDay(fromStr)
	if err != nil {
		return err
	}
	to, err := parseDay(toStr)
	if err != nil {
		return err
	}

	r.From = from
	r.To = to
	return nil
}

// parseDay accepts a calendar date, an RFC 3339 date-time, or Unix seconds.
func parseDay(s string) (time.Time, error) {
	if day, err := series.ParseCalendarDate(s); err == nil {
		return day, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return series.MidnightUTC(time.Unix(unix, 0)), nil
	}
	return time.Time{}, errors.New("invalid date; use YYYY-MM-DD, RFC3339 or unix seconds")
}
