package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"shiftcast/internal/forecast"
	"shiftcast/internal/ui"
	"shiftcast/pkg/errors"
)

// PredictionsResponse is the body of GET /api/predictions.
type PredictionsResponse struct {
	City        string                   `json:"city"`
	Shift       forecast.Shift           `json:"shift"`
	Partition   forecast.Partition       `json:"partition"`
	Predictions []forecast.PredictionRow `json:"predictions"`
}

// FeaturesResponse is the body of GET /api/features.
type FeaturesResponse struct {
	City     string                `json:"city"`
	Shift    forecast.Shift        `json:"shift"`
	Columns  []string              `json:"columns"`
	Features []forecast.FeatureRow `json:"features"`
}

func (s *Server) health(c *gin.Context) {
	body := gin.H{
		"status":    "healthy",
		"version":   s.opts.Version,
		"partition": s.forecaster.Partition(),
		"timestamp": s.now().UTC(),
	}
	if s.opts.Details != nil {
		for k, v := range s.opts.Details() {
			body[k] = v
		}
	}
	if s.opts.Ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := s.opts.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["error"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) cities(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	cities, err := s.forecaster.Cities(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	if cities == nil {
		cities = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"cities": cities})
}

func (s *Server) features(c *gin.Context) {
	city, shift, ok := s.cityShift(c)
	if !ok {
		return
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()

	rows, err := s.forecaster.Features(ctx, city, shift)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, FeaturesResponse{
		City:     city,
		Shift:    shift,
		Columns:  forecast.FeatureColumns,
		Features: rows,
	})
}

func (s *Server) predictions(c *gin.Context) {
	city, shift, rows, ok := s.predict(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, PredictionsResponse{
		City:        city,
		Shift:       shift,
		Partition:   s.forecaster.Partition(),
		Predictions: forecast.ClampForDisplay(rows),
	})
}

func (s *Server) predictionsGeoJSON(c *gin.Context) {
	city, shift, rows, ok := s.predict(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, ui.NewFeatureCollection(city, shift, rows, s.now()))
}

func (s *Server) predict(c *gin.Context) (string, forecast.Shift, []forecast.PredictionRow, bool) {
	city, shift, ok := s.cityShift(c)
	if !ok {
		return "", "", nil, false
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()

	rows, err := s.forecaster.Predict(ctx, city, shift)
	if err != nil {
		s.fail(c, err)
		return "", "", nil, false
	}
	return city, shift, rows, true
}

// cityShift reads and validates the city and shift query parameters.
func (s *Server) cityShift(c *gin.Context) (string, forecast.Shift, bool) {
	city := strings.TrimSpace(c.Query("city"))
	if city == "" {
		s.fail(c, errors.ValidationError("city", "", "query parameter is required"))
		return "", "", false
	}
	shift, err := forecast.ParseShift(c.Query("shift"))
	if err != nil {
		s.fail(c, err)
		return "", "", false
	}
	return city, shift, true
}

func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.opts.RequestTimeout)
}
