package httpcontroller

import (
	"github.com/labstack/echo/v4"
)

// initRoutes registers every route. There are no mutation endpoints.
func (s *Server) initRoutes() {
	s.Echo.GET("/", s.handleIndex)
	s.Echo.GET("/activity.png", s.handleActivityPNG)
	s.Echo.GET("/species_activity/:species", s.handleSpeciesActivity)
	s.Echo.GET("/charts/activity", s.handleActivityChart)
	s.Echo.GET("/api/v1/summary", s.handleSummary)
	s.Echo.GET("/health", s.handleHealth)

	if s.cfg.ClipsDir != "" {
		s.Echo.Static("/clips", s.cfg.ClipsDir)
	}
	if s.metrics != nil {
		s.Echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}
