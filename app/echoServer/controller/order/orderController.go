package order

import (
	"log/slog"
	"net/http"
	"strconv"

	ordersvc "libraryrental/service/order"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc ordersvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

func orderID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// POST /orders  (user)
func (h *Controller) Reserve(c echo.Context) error {
	var req ReserveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "validation error",
			"errors":  err.Error(),
		})
	}
	uid, _ := c.Get("user_id").(int64)

	o, err := h.Svc.Reserve(c.Request().Context(), uid, req.BookID)
	if err != nil {
		switch ordersvc.Code(err) {
		case ordersvc.ErrBookNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "book not found"})
		case ordersvc.ErrNoStock:
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "book is not available"})
		default:
			h.Log.Error("order reserve", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusCreated, o)
}

// GET /orders/list  (admin, operator)
func (h *Controller) List(c echo.Context) error {
	rows, err := h.Svc.List(c.Request().Context())
	if err != nil {
		h.Log.Error("order list", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// POST /orders/:id/accept  (admin, operator)
func (h *Controller) Accept(c echo.Context) error {
	id, ok := orderID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}

	o, err := h.Svc.Accept(c.Request().Context(), id)
	if err != nil {
		switch ordersvc.Code(err) {
		case ordersvc.ErrOrderNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "order not found"})
		case ordersvc.ErrAlreadyTaken:
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "order already accepted"})
		default:
			h.Log.Error("order accept", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, o)
}

// POST /orders/:id/return  (admin, operator)
func (h *Controller) Return(c echo.Context) error {
	id, ok := orderID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}

	o, err := h.Svc.Return(c.Request().Context(), id)
	if err != nil {
		switch ordersvc.Code(err) {
		case ordersvc.ErrOrderNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "order not found"})
		case ordersvc.ErrNotTaken:
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "order not yet accepted"})
		case ordersvc.ErrAlreadyReturned:
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "order already returned"})
		default:
			h.Log.Error("order return", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, o)
}

// POST /orders/:id/rate  (user, owner only)
func (h *Controller) Rate(c echo.Context) error {
	id, ok := orderID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req RateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "validation error",
			"errors":  err.Error(),
		})
	}
	uid, _ := c.Get("user_id").(int64)

	if err := h.Svc.Rate(c.Request().Context(), id, uid, *req.Rating); err != nil {
		switch ordersvc.Code(err) {
		case ordersvc.ErrOrderNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "order not found"})
		case ordersvc.ErrNotReturned:
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "order not yet returned"})
		case ordersvc.ErrBadRating:
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "rating must be between 0 and 5"})
		default:
			h.Log.Error("order rate", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "rating submitted"})
}
