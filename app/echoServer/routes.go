package echoServer

import (
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/stevegwapss/lendworks/app/echoServer/controller/dashboard"
	"github.com/stevegwapss/lendworks/app/echoServer/controller/rental"
	"github.com/stevegwapss/lendworks/app/echoServer/jwtx"
)

type C struct {
	Rental    *rental.Controller
	Dashboard *dashboard.Controller
	JWTSecret string
}

func Register(e *echo.Echo, c C) {
	auth := e.Group("/v1")
	auth.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(c.JWTSecret),
	}))
	// user_id extraction from the verified token
	auth.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			uid, err := jwtx.UserIDFromContext(ctx)
			if err != nil {
				return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
			}
			ctx.Set("user_id", uid)
			return next(ctx)
		}
	})

	// Handover leg
	auth.POST("/rentals/:id/handover", c.Rental.SubmitHandoverProof)
	auth.POST("/rentals/:id/handover/confirm", c.Rental.ConfirmHandover)

	// Return leg
	auth.POST("/rentals/:id/return/initiate", c.Rental.InitiateReturn)
	auth.POST("/rentals/:id/return/schedule", c.Rental.ProposeReturnSlot)
	auth.POST("/rentals/:id/return/schedule/confirm", c.Rental.ConfirmReturnSlot)
	auth.POST("/rentals/:id/return/submit", c.Rental.SubmitReturnProof)
	auth.POST("/rentals/:id/return/confirm", c.Rental.ConfirmReturn)

	// Audit trail
	auth.GET("/rentals/:id/timeline", c.Rental.Timeline)
	auth.GET("/rentals/:id/proofs", c.Rental.Proofs)

	// Lender dashboard
	auth.GET("/lender/dashboard", c.Dashboard.View)
}
