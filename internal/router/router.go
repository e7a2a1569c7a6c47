// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/aurelia-events/ticketing/internal/config"
	"github.com/aurelia-events/ticketing/internal/handler"
	"github.com/aurelia-events/ticketing/internal/middleware"
)

// RegisterRoutes registers routes that need neither a session nor rate
// limiting. Currently that is only the health check used by load balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterEvents registers the public storefront reads. These carry the
// session middleware only so that a buyer's first page view already
// establishes the session cookie used later at reservation time.
func RegisterEvents(e *echo.Echo, events *handler.EventHandler) {
	g := e.Group("/v1/events", middleware.Session())
	g.GET("/upcoming", events.GetUpcoming)
	g.GET("/:slug", events.GetBySlug)
}

// RegisterReservations registers the checkout surface: reserve, inspect and
// clear the session's cart, and complete the purchase. The event is
// addressed in the request body (or query) rather than the path. All routes
// require a buyer session; the mutating ones additionally sit behind the
// Redis token bucket since they are the endpoints flash-sale traffic
// hammers.
func RegisterReservations(e *echo.Echo, reservations *handler.ReservationHandler, purchases *handler.PurchaseHandler, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/v1", middleware.Session())
	limited := middleware.NewTokenBucket(rlCfg, rdb)

	g.POST("/reserve", reservations.Reserve, limited)
	g.GET("/reservations", reservations.ListSession)
	g.DELETE("/reservations", reservations.ClearSession)
	g.POST("/purchase", purchases.Complete, limited)
}
