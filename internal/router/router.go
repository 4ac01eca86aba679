package router

import (
	"github.com/labstack/echo/v4"

	"github.com/Anchinlu/restaurant-reservation/internal/handler"
	"github.com/Anchinlu/restaurant-reservation/internal/middleware"
	"github.com/Anchinlu/restaurant-reservation/internal/model"
)

// Deps carries the handlers and cross-cutting middleware the routes
// are assembled from. RateLimit and Cache may be nil when Redis is
// unavailable; the routes then run without them.
type Deps struct {
	Auth      *handler.AuthHandler
	Booking   *handler.BookingHandler
	Browse    *handler.BrowseHandler
	Admin     *handler.AdminHandler
	Events    *handler.EventsHandler
	JWTSecret string
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// Register wires every route of the API onto the Echo instance.
//
// Layout:
//
//	/healthz                  liveness, no auth
//	/v1/auth/*                register and login
//	/v1/branches, /v1/availability, /v1/events   public read side
//	/v1/reservations/*        customer flow, JWT + CUSTOMER or ADMIN
//	/v1/admin/*               staff surface, JWT + ADMIN
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)

	// auth
	auth := e.Group("/v1/auth")
	auth.POST("/register", d.Auth.Register)
	auth.POST("/login", d.Auth.Login)

	// public read side; the catalog routes sit behind the response
	// cache, availability and the event stream never do
	catalog := e.Group("/v1")
	if d.Cache != nil {
		catalog.Use(d.Cache)
	}
	catalog.GET("/branches", d.Browse.ListBranches)
	catalog.GET("/branches/:id/tables", d.Browse.ListTables)

	e.GET("/v1/availability", d.Browse.Availability)
	e.GET("/v1/events", d.Events.Stream)

	// customer reservation flow
	res := e.Group("/v1/reservations")
	res.Use(middleware.JWTAuth(d.JWTSecret))
	res.Use(middleware.RequireRole(model.RoleCustomer, model.RoleAdmin))
	if d.RateLimit != nil {
		res.Use(d.RateLimit)
	}
	res.POST("/hold", d.Booking.Hold)
	res.POST("/confirm", d.Booking.Confirm)
	res.DELETE("/hold/:id", d.Booking.Cancel)
	res.GET("/current", d.Booking.Current)
	res.GET("/my", d.Booking.MyBookings)

	// authenticated identity probe
	me := e.Group("/v1")
	me.Use(middleware.JWTAuth(d.JWTSecret))
	me.GET("/me", d.Auth.Me)

	// staff surface
	admin := e.Group("/v1/admin")
	admin.Use(middleware.JWTAuth(d.JWTSecret))
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.GET("/bookings", d.Admin.ListBookings)
	admin.PUT("/bookings/:id/status", d.Admin.UpdateStatus)
}
