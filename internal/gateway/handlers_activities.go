package gateway

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"signup-gateway/internal/festival"
	"signup-gateway/internal/reconcile"
)

// activityView is one annotated row of the activities response.
type activityView struct {
	*festival.Activity
	Status    reconcile.Status `json:"status"`
	Conflicts []festival.ID    `json:"conflicts,omitempty"`
}

// handleActivities runs the full read pipeline: fetch → validate → dedupe
// → sort → evaluate. Query parameters:
//
//	view=titles|calendar  dedup strategy (titles collapses recurring runs)
//	track=<id>            restrict to one track's activities
//	eligible=true         only activities the user can subscribe to now
//	refresh=true          bypass the cache TTL
func (s *Server) handleActivities(c *gin.Context) {
	ctx := c.Request.Context()
	force := c.Query("refresh") == "true"

	raw, err := s.cfg.Provider.Activities(ctx, force)
	if err != nil && raw == nil {
		renderError(c, err)
		return
	}

	valid, _ := reconcile.ValidateActivities(raw, s.cfg.Logger)

	// Conflict sources and displayed rows are separate concerns: the
	// evaluator sees every valid activity, so a held activity stays a
	// conflict source even when the track filter or the titles dedup
	// removes it from the rendered list.
	evaluator, participant := s.evaluator(c, valid)

	var activities []*festival.Activity
	if c.Query("view") == "titles" {
		activities, _ = reconcile.DeduplicateByTitle(valid, s.cfg.Logger)
	} else {
		activities, _ = reconcile.DeduplicateByTitleAndTime(valid, s.cfg.Logger)
	}

	if trackID := c.Query("track"); trackID != "" {
		tracks, terr := s.cfg.Provider.Tracks(ctx, false)
		if terr != nil && tracks == nil {
			renderError(c, terr)
			return
		}
		activities = filterByTrack(activities, tracks, festival.ID(trackID))
	}

	sortActivities(activities)
	views := make([]activityView, 0, len(activities))
	for _, a := range activities {
		if c.Query("eligible") == "true" && !evaluator.EligibleFor(a) {
			continue
		}
		views = append(views, activityView{
			Activity:  a,
			Status:    evaluator.StatusFor(a),
			Conflicts: conflictIDs(evaluator.ConflictsFor(a)),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"activities": views,
		"loggedIn":   participant != nil,
		"stale":      err != nil,
	})
}

// handleAdminActivities serves the per-occurrence dashboard view with the
// reconciliation stats of the pass that produced it.
func (s *Server) handleAdminActivities(c *gin.Context) {
	raw, err := s.cfg.Provider.Activities(c.Request.Context(), c.Query("refresh") == "true")
	if err != nil && raw == nil {
		renderError(c, err)
		return
	}

	valid, validation := reconcile.ValidateActivities(raw, s.cfg.Logger)
	activities, dedup := reconcile.DeduplicateByTitleAndTime(valid, s.cfg.Logger)
	sortActivities(activities)

	c.JSON(http.StatusOK, gin.H{
		"activities": activities,
		"validation": validation,
		"dedup":      dedup,
		"stale":      err != nil,
	})
}

// handleAdminActivity fetches one raw record straight from the backend,
// bypassing the cache and the reconciliation pipeline.
func (s *Server) handleAdminActivity(c *gin.Context) {
	activity, err := s.cfg.Records.Activity(c.Request.Context(), festival.ID(c.Param("id")))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": activity})
}

// handleAdminStats aggregates reconciliation and status counts without
// returning the rows themselves.
func (s *Server) handleAdminStats(c *gin.Context) {
	raw, err := s.cfg.Provider.Activities(c.Request.Context(), false)
	if err != nil && raw == nil {
		renderError(c, err)
		return
	}

	valid, validation := reconcile.ValidateActivities(raw, s.cfg.Logger)
	evaluator, _ := s.evaluator(c, valid)
	byTitle, titleDedup := reconcile.DeduplicateByTitle(valid, s.cfg.Logger)
	occurrences, timeDedup := reconcile.DeduplicateByTitleAndTime(valid, s.cfg.Logger)
	statusCounts := map[reconcile.Status]int{}
	full := 0
	for _, a := range occurrences {
		statusCounts[evaluator.StatusFor(a)]++
		if reconcile.IsFull(a) {
			full++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"validation":     validation,
		"dedupByTitle":   titleDedup,
		"dedupByTime":    timeDedup,
		"uniqueTitles":   len(byTitle),
		"occurrences":    len(occurrences),
		"fullActivities": full,
		"statusCounts":   statusCounts,
		"stale":          err != nil,
	})
}

// evaluator builds the conflict evaluator for the current user. Anonymous
// users get an evaluator with an empty held set.
func (s *Server) evaluator(c *gin.Context, candidates []*festival.Activity) (*reconcile.Evaluator, *festival.Participant) {
	participant, _ := s.cfg.Provider.Participant(c.Request.Context(), false)
	var held []festival.ID
	if participant != nil {
		held = participant.ActivityIDs
	}
	return reconcile.NewEvaluator(held, candidates, participant != nil), participant
}

// sortActivities orders by start instant, unparseable starts last, ties by
// display name.
func sortActivities(activities []*festival.Activity) {
	sort.SliceStable(activities, func(i, j int) bool {
		ti, tj := reconcile.ParseInstant(activities[i].Start), reconcile.ParseInstant(activities[j].Start)
		switch {
		case ti.IsZero() && tj.IsZero():
			return activities[i].DisplayName() < activities[j].DisplayName()
		case ti.IsZero():
			return false
		case tj.IsZero():
			return true
		case ti.Equal(tj):
			return activities[i].DisplayName() < activities[j].DisplayName()
		default:
			return ti.Before(tj)
		}
	})
}

func filterByTrack(activities []*festival.Activity, tracks []*festival.Track, trackID festival.ID) []*festival.Activity {
	var track *festival.Track
	for _, t := range tracks {
		if t.ID == trackID {
			track = t
			break
		}
	}
	if track == nil {
		return nil
	}
	member := make(map[festival.ID]bool, len(track.ActivityNumbers))
	for _, id := range track.ActivityNumbers {
		member[id] = true
	}
	out := make([]*festival.Activity, 0, len(activities))
	for _, a := range activities {
		if member[a.ID] {
			out = append(out, a)
		}
	}
	return out
}

func conflictIDs(conflicts []*festival.Activity) []festival.ID {
	if len(conflicts) == 0 {
		return nil
	}
	ids := make([]festival.ID, 0, len(conflicts))
	for _, a := range conflicts {
		ids = append(ids, a.ID)
	}
	return ids
}
