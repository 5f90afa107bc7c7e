package rental

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	rs "github.com/stevegwapss/lendworks/service/rental"
)

type Controller struct {
	Svc rs.Service
	V   *validator.Validate
	Log *slog.Logger
}

func rentalID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Controller) fail(c echo.Context, op string, err error) error {
	h.Log.Error(op, "err", err)
	switch rs.Code(err) {
	case rs.ErrForbidden:
		return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
	case rs.ErrNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"message": err.Error()})
	case rs.ErrValidation:
		return c.JSON(http.StatusBadRequest, echo.Map{"message": err.Error()})
	case rs.ErrConflict:
		return c.JSON(http.StatusConflict, echo.Map{"message": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
}

// proofImage reads the multipart proof_image part into a service Image.
func proofImage(c echo.Context) (rs.Image, func(), error) {
	fh, err := c.FormFile("proof_image")
	if err != nil {
		return rs.Image{}, nil, echo.NewHTTPError(http.StatusBadRequest, "proof_image is required")
	}
	f, err := fh.Open()
	if err != nil {
		return rs.Image{}, nil, err
	}
	img := rs.Image{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Content:     f,
	}
	return img, func() { _ = f.Close() }, nil
}

// POST /v1/rentals/:id/handover
func (h *Controller) SubmitHandoverProof(c echo.Context) error {
	id, err := rentalID(c)
	if err != nil {
		return err
	}
	uid, _ := c.Get("user_id").(int64)

	img, done, err := proofImage(c)
	if err != nil {
		return err
	}
	defer done()

	if err := h.Svc.SubmitHandoverProof(c.Request().Context(), uid, id, img); err != nil {
		return h.fail(c, "handover submit", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "handover proof submitted"})
}

// POST /v1/rentals/:id/handover/confirm
func (h *Controller) ConfirmHandover(c echo.Context) error {
	id, err := rentalID(c)
	if err != nil {
		return err
	}
	uid, _ := c.Get("user_id").(int64)

	if err := h.Svc.ConfirmHandover(c.Request().Context(), uid, id); err != nil {
		return h.fail(c, "handover confirm", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "handover confirmed"})
}

// POST /v1/rentals/:id/return/initiate
func (h *Controller) InitiateReturn(c echo.Context) error {
	id, err := rentalID(c)
	if err != nil {
		return err
	}
	uid, _ := c.Get("user_id").(int64)

	if err := h.Svc.InitiateReturn(c.Request().Context(), uid, id); err != nil {
		return h.fail(c, "return initiate", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "return process initiated"})
}

// POST /v1/rentals/:id/return/schedule
func (h *Controller) ProposeReturnSlot(c echo.Context) error {
	id, err := rentalID(c)
	if err != nil {
		return err
	}
	uid, _ := c.Get("user_id").(int64)

	var req ProposeSlotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "validation error",
			"errors":  err.Error(),
		})
	}

	slot := rs.SlotInput{
		ReturnDatetime: req.ReturnDatetime,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
	}
	if err := h.Svc.ProposeReturnSlot(c.Request().Context(), uid, id, slot); err != nil {
		return h.fail(c, "return schedule", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "return schedule selected"})
}

// POST /v1/rentals/:id/return/schedule/confirm
func (h *Controller) ConfirmReturnSlot(c echo.Context) error {
	id, err := rentalID(c)
	if err != nil {
		return err
	}
	uid, _ := c.Get("user_id").(int64)

	if err := h.Svc.ConfirmReturnSlot(c.Request().Context(), uid, id); err != nil {
		return h.fail(c, "return schedule confirm", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "return schedule confirmed"})
}

// POST /v1/rentals/:id/return/submit
func (h *Controller) SubmitReturnProof(c echo.Context) error {
	id, err := rentalID(c)
	if err != nil {
		return err
	}
	uid, _ := c.Get("user_id").(int64)

	img, done, err := proofImage(c)
	if err != nil {
		return err
	}
	defer done()

	if err := h.Svc.SubmitReturnProof(c.Request().Context(), uid, id, img); err != nil {
		return h.fail(c, "return submit", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "return proof submitted"})
}

// POST /v1/rentals/:id/return/confirm
func (h *Controller) ConfirmReturn(c echo.Context) error {
	id, err := rentalID(c)
	if err != nil {
		return err
	}
	uid, _ := c.Get("user_id").(int64)

	img, done, err := proofImage(c)
	if err != nil {
		return err
	}
	defer done()

	if err := h.Svc.ConfirmReturn(c.Request().Context(), uid, id, img); err != nil {
		return h.fail(c, "return confirm", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "return confirmed, rental completed"})
}

// GET /v1/rentals/:id/timeline
func (h *Controller) Timeline(c echo.Context) error {
	id, err := rentalID(c)
	if err != nil {
		return err
	}
	uid, _ := c.Get("user_id").(int64)

	events, err := h.Svc.Timeline(c.Request().Context(), uid, id)
	if err != nil {
		return h.fail(c, "timeline", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": events})
}

// GET /v1/rentals/:id/proofs
func (h *Controller) Proofs(c echo.Context) error {
	id, err := rentalID(c)
	if err != nil {
		return err
	}
	uid, _ := c.Get("user_id").(int64)

	proofs, err := h.Svc.Proofs(c.Request().Context(), uid, id)
	if err != nil {
		return h.fail(c, "proofs", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": proofs})
}
