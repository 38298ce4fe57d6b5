package compose

import (
	"encoding/json"
	"net/url"

	"github.com/vitalinkhq/vitalink/internal/readings"
)

const chartBaseURL = "https://quickchart.io/chart"

// BuildChartURL renders a line chart URL for a marker's history. Readings
// must be in ascending observed_at order. Returns "" when there is nothing
// to plot.
func BuildChartURL(marker string, history []readings.Reading) string {
	labels := make([]string, 0, len(history))
	values := make([]float64, 0, len(history))
	for _, r := range history {
		v, ok := r.Markers[marker]
		if !ok {
			continue
		}
		labels = append(labels, r.ObservedAt.Format("2006-01-02"))
		values = append(values, v)
	}
	if len(values) == 0 {
		return ""
	}

	spec := map[string]any{
		"type": "line",
		"data": map[string]any{
			"labels": labels,
			"datasets": []map[string]any{{
				"label": marker,
				"data":  values,
				"fill":  false,
			}},
		},
	}
	encoded, err := json.Marshal(spec)
	if err != nil {
		return ""
	}
	return chartBaseURL + "?c=" + url.QueryEscape(string(encoded))
}
