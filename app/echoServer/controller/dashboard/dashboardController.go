package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	ds "github.com/stevegwapss/lendworks/service/dashboard"
)

type Controller struct {
	Svc ds.Service
	Log *slog.Logger
}

// GET /v1/lender/dashboard
func (h *Controller) View(c echo.Context) error {
	uid, _ := c.Get("user_id").(int64)

	view, err := h.Svc.View(c.Request().Context(), uid)
	if err != nil {
		h.Log.Error("lender dashboard", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, view)
}
