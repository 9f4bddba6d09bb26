package reconcile

import (
	"fmt"

	"signup-gateway/internal/common/logger"
	"signup-gateway/internal/common/metrics"
	"signup-gateway/internal/festival"
)

// DedupStats summarizes one deduplication pass.
type DedupStats struct {
	Strategy  string `json:"strategy"`
	Original  int    `json:"original"`
	Merged    int    `json:"merged"`
	Remaining int    `json:"remaining"`
}

// DeduplicateByTitle keeps the first occurrence of each title hash and
// drops later ones regardless of their timestamps. Activities whose name
// normalizes to an empty hash cannot be compared and are dropped entirely.
// Survivors are annotated with their hash for the admin debug view.
func DeduplicateByTitle(activities []*festival.Activity, log logger.Logger) ([]*festival.Activity, DedupStats) {
	stats := DedupStats{Strategy: "title", Original: len(activities)}
	seen := make(map[string]bool, len(activities))
	out := make([]*festival.Activity, 0, len(activities))

	for _, a := range activities {
		hash := TitleHash(a.DisplayName())
		if hash == "" {
			stats.Merged++
			metrics.DuplicatesMerged.WithLabelValues("title").Inc()
			log.Warn("dropping activity with empty title hash", map[string]interface{}{
				"activityId": a.ID.String(),
			})
			continue
		}
		if seen[hash] {
			stats.Merged++
			metrics.DuplicatesMerged.WithLabelValues("title").Inc()
			continue
		}
		seen[hash] = true
		a.TitleHash = hash
		a.DedupKey = hash
		out = append(out, a)
	}

	stats.Remaining = len(out)
	if stats.Merged > 0 {
		log.Info("merged duplicate activities", map[string]interface{}{
			"strategy":  stats.Strategy,
			"original":  stats.Original,
			"merged":    stats.Merged,
			"remaining": stats.Remaining,
		})
	}
	return out, stats
}

// DeduplicateByTitleAndTime treats recurring sessions of the same activity
// as distinct: the key is the title hash plus the start instant normalized
// to RFC3339 UTC. Starts that fail to parse share the no-time sentinel and
// therefore still collapse by title.
func DeduplicateByTitleAndTime(activities []*festival.Activity, log logger.Logger) ([]*festival.Activity, DedupStats) {
	stats := DedupStats{Strategy: "title_time", Original: len(activities)}
	seen := make(map[string]bool, len(activities))
	out := make([]*festival.Activity, 0, len(activities))

	for _, a := range activities {
		hash := TitleHash(a.DisplayName())
		if hash == "" {
			stats.Merged++
			metrics.DuplicatesMerged.WithLabelValues("title_time").Inc()
			log.Warn("dropping activity with empty title hash", map[string]interface{}{
				"activityId": a.ID.String(),
			})
			continue
		}
		key := fmt.Sprintf("%s|%s", hash, NormalizeStart(a.Start))
		if seen[key] {
			stats.Merged++
			metrics.DuplicatesMerged.WithLabelValues("title_time").Inc()
			continue
		}
		seen[key] = true
		a.TitleHash = hash
		a.DedupKey = key
		out = append(out, a)
	}

	stats.Remaining = len(out)
	if stats.Merged > 0 {
		log.Info("merged duplicate activities", map[string]interface{}{
			"strategy":  stats.Strategy,
			"original":  stats.Original,
			"merged":    stats.Merged,
			"remaining": stats.Remaining,
		})
	}
	return out, stats
}
