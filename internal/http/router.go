// README: HTTP router registration.
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"boleia/internal/http/handlers"
	"boleia/internal/http/middleware"
	"boleia/internal/metrics"
)

type RouterDeps struct {
	Search      handlers.Searcher
	Rides       handlers.RideGetter
	Health      map[string]handlers.Pinger
	Metrics     *metrics.Metrics
	RateLimiter *middleware.RateLimiter
	Logger      zerolog.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.Logging(deps.Logger),
		middleware.Recovery(),
		middleware.Metrics(deps.Metrics),
	)

	health := handlers.NewHealthHandler(deps.Health)
	r.GET("/health", health.Check)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	if deps.RateLimiter != nil {
		api.Use(deps.RateLimiter.Handler())
	}

	searchHandler := handlers.NewSearchHandler(deps.Search)
	api.GET("/rides/search", searchHandler.Get)
	api.POST("/rides/search", searchHandler.Post)

	rideHandler := handlers.NewRideHandler(deps.Rides)
	api.GET("/rides/:id", rideHandler.Get)

	return r
}
