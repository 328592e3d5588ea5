package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sumire/billnotify/internal/domain"
)

// BillHandler exposes bill date helpers to the SPA.
type BillHandler struct {
	loc *time.Location
	now func() time.Time
}

// NewBillHandler creates a BillHandler that evaluates "today" in loc.
func NewBillHandler(loc *time.Location) *BillHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &BillHandler{loc: loc, now: time.Now}
}

type nextDueDateRequest struct {
	DueDay    int    `query:"due_day" validate:"required,min=1,max=31"`
	Frequency string `query:"frequency"`
}

type nextDueDateResponse struct {
	DueDay      int              `json:"due_day"`
	Frequency   domain.Frequency `json:"frequency"`
	NextDueDate string           `json:"next_due_date"`
}

// NextDueDate computes the next occurrence of a recurring bill.
func (h *BillHandler) NextDueDate(c echo.Context) error {
	var req nextDueDateRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrInvalidInput
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	freq := domain.FrequencyMonthly
	if req.Frequency != "" {
		freq = domain.ParseFrequency(req.Frequency)
	}

	next, err := domain.NextDueDate(req.DueDay, freq, h.now().In(h.loc))
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, nextDueDateResponse{
		DueDay:      req.DueDay,
		Frequency:   freq,
		NextDueDate: domain.DayKey(next),
	})
}
