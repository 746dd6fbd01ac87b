package httpcontroller

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/birdnet-listener/internal/analysis/processor"
	"github.com/tphakala/birdnet-listener/internal/charts"
	"github.com/tphakala/birdnet-listener/internal/datastore"
	"github.com/tphakala/birdnet-listener/internal/diagnostics"
	"github.com/tphakala/birdnet-listener/internal/errors"
	"github.com/tphakala/birdnet-listener/internal/logger"
	"github.com/tphakala/birdnet-listener/internal/rendercache"
	"github.com/tphakala/birdnet-listener/internal/stats"
	"github.com/tphakala/birdnet-listener/internal/suncalc"
)

var errNoRecords = errors.NewStd("no records for species")

// report is the dashboard content, shared by the page and the JSON API.
type report struct {
	stats.Summary
	Threshold float64              `json:"threshold"`
	Confident []stats.SpeciesCount `json:"confident_species"`
}

func (s *Server) buildReport(records []datastore.Record, now time.Time) report {
	summary := stats.Summarize(records, now, stats.SummaryOptions{
		Recent: s.cfg.Recent,
		Top:    s.cfg.TopSpecies,
	})
	filtered := stats.Filter(records, stats.Criteria{
		Since:     now.Add(-24 * time.Hour),
		Threshold: s.cfg.Threshold,
		Exclude:   s.cfg.Exclude,
	})
	return report{
		Summary:   summary,
		Threshold: s.cfg.Threshold,
		Confident: stats.AggregateBySpecies(filtered),
	}
}

type pageData struct {
	Title     string
	Refresh   int
	Error     string
	Report    report
	HourKey   string
	Health    *processor.Health
	Stale     bool
	Telemetry bool
	Location  *time.Location
	Sun       *suncalc.SunTimes
	Disk      *diagnostics.DiskStatus
}

// handleIndex renders the dashboard. A store that cannot be read is shown
// as a banner; the page itself still renders.
func (s *Server) handleIndex(c echo.Context) error {
	now := s.now().In(s.cfg.Location)
	data := pageData{
		Title:     s.cfg.Title,
		Refresh:   int(s.cfg.Refresh.Seconds()),
		HourKey:   rendercache.HourKey(now),
		Telemetry: s.metrics != nil,
		Location:  s.cfg.Location,
	}

	records, err := s.store.ReadAll()
	if err != nil {
		s.log.Error("reading detection store failed", logger.Error(err))
		data.Error = "Detections could not be read: " + err.Error()
		records = nil
	}
	data.Report = s.buildReport(records, now)

	if s.health != nil {
		h := s.health.Health()
		data.Health = &h
		data.Stale = h.Stale(now, s.cfg.Window)
	}
	if s.sun != nil {
		if times, err := s.sun.Times(now); err == nil {
			data.Sun = &times
		}
	}
	data.Disk = s.diskStatus()

	return c.Render(http.StatusOK, "index.html", data)
}

// handleActivityPNG serves the trailing activity heatmap, cached for the
// current hour.
func (s *Server) handleActivityPNG(c echo.Context) error {
	payload, err := s.cache.GetOrRender(rendercache.Activity, func() ([]byte, error) {
		records, err := s.store.ReadAll()
		if err != nil {
			return nil, err
		}
		matrix := stats.BucketedActivity(records, s.now().In(s.cfg.Location), 24*time.Hour, s.cfg.HeatmapDays)
		return charts.ActivityPNG(matrix, s.cfg.Title+" activity")
	})
	if err != nil {
		return s.renderFailed(err)
	}
	s.setHourCache(c)
	return c.Blob(http.StatusOK, "image/png", payload)
}

// handleSpeciesActivity serves the heatmap of one species.
func (s *Server) handleSpeciesActivity(c echo.Context) error {
	species := c.Param("species")
	payload, err := s.cache.GetOrRender(rendercache.SpeciesNamespace(species), func() ([]byte, error) {
		records, err := s.store.ReadAll()
		if err != nil {
			return nil, err
		}
		if !stats.HasSpecies(records, species) {
			return nil, errNoRecords
		}
		matrix := stats.SpeciesActivity(records, species, s.now().In(s.cfg.Location), 24*time.Hour, s.cfg.HeatmapDays)
		return charts.ActivityPNG(matrix, species)
	})
	if errors.Is(err, errNoRecords) {
		return echo.NewHTTPError(http.StatusNotFound, "no detections of "+species)
	}
	if err != nil {
		return s.renderFailed(err)
	}
	s.setHourCache(c)
	return c.Blob(http.StatusOK, "image/png", payload)
}

// handleActivityChart serves the interactive heatmap page.
func (s *Server) handleActivityChart(c echo.Context) error {
	payload, err := s.cache.GetOrRender(rendercache.ActivityHTML, func() ([]byte, error) {
		records, err := s.store.ReadAll()
		if err != nil {
			return nil, err
		}
		matrix := stats.BucketedActivity(records, s.now().In(s.cfg.Location), 24*time.Hour, s.cfg.HeatmapDays)
		return charts.ActivityHTML(matrix, s.cfg.Title+" activity")
	})
	if err != nil {
		return s.renderFailed(err)
	}
	return c.HTMLBlob(http.StatusOK, payload)
}

// handleSummary returns the dashboard report as JSON.
func (s *Server) handleSummary(c echo.Context) error {
	records, err := s.store.ReadAll()
	if err != nil {
		s.log.Error("reading detection store failed", logger.Error(err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "detection store unavailable")
	}
	return c.JSON(http.StatusOK, s.buildReport(records, s.now().In(s.cfg.Location)))
}

type healthResponse struct {
	Status string                  `json:"status"`
	Disk   *diagnostics.DiskStatus `json:"disk,omitempty"`
	*processor.Health
}

// handleHealth reports ingestion health. It answers 503 once no window has
// succeeded for three window lengths. Disk usage is informational.
func (s *Server) handleHealth(c echo.Context) error {
	resp := healthResponse{Status: "ok", Disk: s.diskStatus()}
	if s.health == nil {
		return c.JSON(http.StatusOK, resp)
	}
	h := s.health.Health()
	resp.Health = &h
	if h.Stale(s.now(), s.cfg.Window) {
		resp.Status = "stale"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// diskStatus returns nil when disk reporting is off or fails.
func (s *Server) diskStatus() *diagnostics.DiskStatus {
	if s.cfg.DiskPath == "" {
		return nil
	}
	st, err := diagnostics.DiskUsage(s.cfg.DiskPath)
	if err != nil {
		s.log.Debug("disk usage unavailable", logger.Error(err))
		return nil
	}
	return &st
}

// setHourCache lets browsers keep a response until the hour key changes.
func (s *Server) setHourCache(c echo.Context) {
	now := s.now().In(s.cfg.Location)
	next := stats.Hour.Truncate(now).Add(time.Hour)
	maxAge := max(int(math.Ceil(next.Sub(now).Seconds())), 1)
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age="+strconv.Itoa(maxAge))
}

func (s *Server) renderFailed(err error) error {
	s.log.Error("rendering failed", logger.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, "rendering failed")
}
