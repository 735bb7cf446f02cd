package handlers

import "net/http"

// GeoJSONTargets handles GET /api/v1/geojson/targets. It serves a small
// sample set used by the map front end until targets come from a real
// source.
func GeoJSONTargets(w http.ResponseWriter, r *http.Request) {
	sample := map[string]any{
		"type": "FeatureCollection",
		"features": []map[string]any{
			{
				"type":       "Feature",
				"properties": map[string]any{"name": "Target A"},
				"geometry": map[string]any{
					"type":        "Point",
					"coordinates": []float64{120.9842, 14.5995},
				},
			},
			{
				"type":       "Feature",
				"properties": map[string]any{"name": "Target B"},
				"geometry": map[string]any{
					"type":        "Point",
					"coordinates": []float64{121.0500, 14.6500},
				},
			},
		},
	}
	respondJSON(w, http.StatusOK, sample)
}
