package echoServer

import (
	"net/http"

	"libraryrental/app/echoServer/controller/auth"
	"libraryrental/app/echoServer/controller/book"
	"libraryrental/app/echoServer/controller/order"
	"libraryrental/model"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

type C struct {
	Auth      *auth.Controller
	Book      *book.Controller
	Order     *order.Controller
	JWTSecret string
}

func Register(e *echo.Echo, c C) {
	// Public
	e.POST("/register", c.Auth.Register)
	e.POST("/token", c.Auth.Login)

	// Auth
	authed := e.Group("")
	authed.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(c.JWTSecret),
	}))
	authed.Use(claimsMiddleware)

	// Books
	authed.GET("/books", c.Book.List)
	authed.POST("/books", c.Book.Create, RequireRoles(model.RoleAdmin, model.RoleOperator))
	authed.PUT("/books/:id", c.Book.Update, RequireRoles(model.RoleAdmin, model.RoleOperator))
	authed.DELETE("/books/:id", c.Book.Delete, RequireRoles(model.RoleAdmin, model.RoleOperator))

	// Orders
	authed.POST("/orders", c.Order.Reserve, RequireRoles(model.RoleUser))
	authed.GET("/orders/list", c.Order.List, RequireRoles(model.RoleAdmin, model.RoleOperator))
	authed.POST("/orders/:id/accept", c.Order.Accept, RequireRoles(model.RoleAdmin, model.RoleOperator))
	authed.POST("/orders/:id/return", c.Order.Return, RequireRoles(model.RoleAdmin, model.RoleOperator))
	authed.POST("/orders/:id/rate", c.Order.Rate, RequireRoles(model.RoleUser))
}

// claimsMiddleware pulls the caller's id and role out of the verified token.
func claimsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		tok, ok := ctx.Get("user").(*jwt.Token)
		if !ok || tok == nil {
			return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
		}
		claims, ok := tok.Claims.(jwt.MapClaims)
		if !ok {
			return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
		}

		sub, ok := claims["sub"].(float64)
		if !ok {
			return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
		}
		role, _ := claims["role"].(string)

		ctx.Set("user_id", int64(sub))
		ctx.Set("role", model.Role(role))
		return next(ctx)
	}
}
