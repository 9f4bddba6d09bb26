package gateway

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "signup-gateway/internal/common/errors"
	"signup-gateway/internal/common/metrics"
	"signup-gateway/internal/festival"
)

// beginMutation claims the per-activity guard. It fails instead of
// queueing: a second click while the first call is outstanding is a user
// error, not a request to do it twice.
func (s *Server) beginMutation(id festival.ID) error {
	s.mutationMu.Lock()
	defer s.mutationMu.Unlock()
	if s.inFlight[id] {
		return apperrors.NewMutationPendingError(id.String())
	}
	s.inFlight[id] = true
	return nil
}

func (s *Server) endMutation(id festival.ID) {
	s.mutationMu.Lock()
	defer s.mutationMu.Unlock()
	delete(s.inFlight, id)
}

func (s *Server) handleSubscribe(c *gin.Context) {
	s.mutateActivity(c, "subscribe", s.cfg.Mutator.Subscribe)
}

func (s *Server) handleUnsubscribe(c *gin.Context) {
	s.mutateActivity(c, "unsubscribe", s.cfg.Mutator.Unsubscribe)
}

// mutateActivity runs one guarded subscription mutation and re-fetches the
// profile afterwards so the next render sees the new subscription set.
func (s *Server) mutateActivity(c *gin.Context, action string, mutate func(ctx context.Context, username string, id festival.ID) error) {
	username := s.cfg.Provider.Username()
	if username == "" {
		metrics.SubscriptionMutations.WithLabelValues(action, "anonymous").Inc()
		renderError(c, apperrors.NewMissingUsernameError())
		return
	}

	id := festival.ID(c.Param("id"))
	if err := s.beginMutation(id); err != nil {
		metrics.SubscriptionMutations.WithLabelValues(action, "pending").Inc()
		renderError(c, err)
		return
	}
	defer s.endMutation(id)

	ctx := c.Request.Context()
	if err := mutate(ctx, username, id); err != nil {
		metrics.SubscriptionMutations.WithLabelValues(action, "error").Inc()
		renderError(c, err)
		return
	}
	metrics.SubscriptionMutations.WithLabelValues(action, "ok").Inc()

	profile, err := s.cfg.Provider.Profile(ctx, true)
	if err != nil {
		s.cfg.Logger.Warn("profile refresh after mutation failed", map[string]interface{}{
			"action":     action,
			"activityId": id.String(),
			"error":      err.Error(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"activityId": id,
		"action":     action,
		"profile":    profile,
	})
}

func (s *Server) handleSubscribeTrack(c *gin.Context) {
	username := s.cfg.Provider.Username()
	if username == "" {
		metrics.SubscriptionMutations.WithLabelValues("track_subscribe", "anonymous").Inc()
		renderError(c, apperrors.NewMissingUsernameError())
		return
	}

	id := festival.ID(c.Param("id"))
	ctx := c.Request.Context()
	if err := s.cfg.Mutator.SubscribeTrack(ctx, username, id); err != nil {
		metrics.SubscriptionMutations.WithLabelValues("track_subscribe", "error").Inc()
		renderError(c, err)
		return
	}
	metrics.SubscriptionMutations.WithLabelValues("track_subscribe", "ok").Inc()

	profile, _ := s.cfg.Provider.Profile(ctx, true)
	c.JSON(http.StatusOK, gin.H{"trackId": id, "profile": profile})
}

func (s *Server) handleUnsubscribeTrack(c *gin.Context) {
	username := s.cfg.Provider.Username()
	if username == "" {
		metrics.SubscriptionMutations.WithLabelValues("track_unsubscribe", "anonymous").Inc()
		renderError(c, apperrors.NewMissingUsernameError())
		return
	}

	ctx := c.Request.Context()
	if err := s.cfg.Mutator.UnsubscribeTrack(ctx, username); err != nil {
		metrics.SubscriptionMutations.WithLabelValues("track_unsubscribe", "error").Inc()
		renderError(c, err)
		return
	}
	metrics.SubscriptionMutations.WithLabelValues("track_unsubscribe", "ok").Inc()

	profile, _ := s.cfg.Provider.Profile(ctx, true)
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}
