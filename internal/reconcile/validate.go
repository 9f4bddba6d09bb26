package reconcile

import (
	"fmt"
	"strings"

	"signup-gateway/internal/common/logger"
	"signup-gateway/internal/common/metrics"
	"signup-gateway/internal/festival"
)

// ValidationStats summarizes one validation pass for the admin dashboard.
type ValidationStats struct {
	Original      int    `json:"original"`
	Removed       int    `json:"removed"`
	Valid         int    `json:"valid"`
	InvalidObject int    `json:"invalid_object"`
	MissingName   int    `json:"missing_name"`
	MissingStart  int    `json:"missing_start"`
	MissingEnd    int    `json:"missing_end"`
	RemovalRate   string `json:"removal_rate"`
}

// ValidateActivities drops records that cannot be rendered or scheduled:
// non-objects, blank names, and null start or end markers. Presence is
// checked here, parseability later by the conflict evaluator. Reasons are
// counted in first-failure order: object shape, name, start, end.
func ValidateActivities(activities []*festival.Activity, log logger.Logger) ([]*festival.Activity, ValidationStats) {
	stats := ValidationStats{Original: len(activities)}
	valid := make([]*festival.Activity, 0, len(activities))

	for _, a := range activities {
		switch {
		case a == nil:
			stats.InvalidObject++
			metrics.ActivitiesRemoved.WithLabelValues("invalid_object").Inc()
		case strings.TrimSpace(a.Name) == "" && strings.TrimSpace(a.Title) == "":
			stats.MissingName++
			metrics.ActivitiesRemoved.WithLabelValues("missing_name").Inc()
		case a.Start == nil:
			stats.MissingStart++
			metrics.ActivitiesRemoved.WithLabelValues("missing_start").Inc()
		case a.End == nil:
			stats.MissingEnd++
			metrics.ActivitiesRemoved.WithLabelValues("missing_end").Inc()
		default:
			valid = append(valid, a)
			continue
		}
	}

	stats.Valid = len(valid)
	stats.Removed = stats.Original - stats.Valid
	rate := 0.0
	if stats.Original > 0 {
		rate = float64(stats.Removed) / float64(stats.Original) * 100
	}
	stats.RemovalRate = fmt.Sprintf("%.1f%%", rate)

	if stats.Removed > 0 {
		log.Warn("dropped invalid activity records", map[string]interface{}{
			"original":       stats.Original,
			"removed":        stats.Removed,
			"invalid_object": stats.InvalidObject,
			"missing_name":   stats.MissingName,
			"missing_start":  stats.MissingStart,
			"missing_end":    stats.MissingEnd,
			"removal_rate":   stats.RemovalRate,
		})
	}

	return valid, stats
}
