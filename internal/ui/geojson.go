package ui

import (
	"encoding/json"
	"io"
	"time"

	"shiftcast/internal/forecast"
)

// FeatureCollection is a GeoJSON document with one point per location.
type FeatureCollection struct {
	Type       string            `json:"type"`
	Properties CollectionSummary `json:"properties"`
	Features   []Feature         `json:"features"`
}

// CollectionSummary describes what the collection was computed for.
type CollectionSummary struct {
	City        string    `json:"city"`
	Shift       string    `json:"shift"`
	GeneratedAt time.Time `json:"generated_at"`
}

type Feature struct {
	Type       string          `json:"type"`
	Geometry   Point           `json:"geometry"`
	Properties PointProperties `json:"properties"`
}

// Point coordinates are [longitude, latitude].
type Point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

type PointProperties struct {
	LocationID            int64   `json:"location_id"`
	AvgLocationShiftSales float64 `json:"avg_location_shift_sales"`
	PredictedShiftSales   float64 `json:"predicted_shift_sales"`
}

// NewFeatureCollection converts predictions into map points. Negative
// predictions are clamped to zero.
func NewFeatureCollection(city string, shift forecast.Shift, rows []forecast.PredictionRow, now time.Time) FeatureCollection {
	rows = forecast.ClampForDisplay(rows)

	features := make([]Feature, 0, len(rows))
	for _, r := range rows {
		features = append(features, Feature{
			Type: "Feature",
			Geometry: Point{
				Type:        "Point",
				Coordinates: [2]float64{r.Longitude, r.Latitude},
			},
			Properties: PointProperties{
				LocationID:            r.LocationID,
				AvgLocationShiftSales: r.AvgLocationShiftSales,
				PredictedShiftSales:   r.PredictedShiftSales,
			},
		})
	}

	return FeatureCollection{
		Type: "FeatureCollection",
		Properties: CollectionSummary{
			City:        city,
			Shift:       string(shift),
			GeneratedAt: now.UTC(),
		},
		Features: features,
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
