package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "signup-gateway/internal/common/errors"
	"signup-gateway/internal/wizard"
)

func (s *Server) handleHealthcheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": s.cfg.Config.App.Name,
		"version": s.cfg.Config.App.Version,
	})
}

func (s *Server) handleProfile(c *gin.Context) {
	ctx := c.Request.Context()
	profile, err := s.cfg.Provider.Profile(ctx, c.Query("refresh") == "true")
	if err != nil && (profile == nil || profile.Participant == nil) {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profile":            profile,
		"loggedIn":           s.cfg.Provider.IsUserLoggedIn(),
		"hasCompletedWizard": profile.Participant.HasCompletedWizard(),
		"stale":              err != nil,
	})
}

// handleLogout drops the user binding, cached profile, and session
// suggestions. Shared caches survive.
func (s *Server) handleLogout(c *gin.Context) {
	s.cfg.Provider.Logout(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"loggedIn": false})
}

func (s *Server) handleTracks(c *gin.Context) {
	tracks, err := s.cfg.Provider.Tracks(c.Request.Context(), c.Query("refresh") == "true")
	if err != nil && tracks == nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tracks": tracks, "stale": err != nil})
}

func (s *Server) handleSuggestions(c *gin.Context) {
	if !s.cfg.Provider.IsUserLoggedIn() {
		renderError(c, apperrors.NewMissingUsernameError())
		return
	}
	bundle, err := s.cfg.Provider.Suggestions(c.Request.Context(), c.Query("refresh") == "true")
	if err != nil && bundle == nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": bundle, "stale": err != nil})
}

// handleWizardAnswers validates a partial answer set and reports which
// questions are currently visible, so the page can advance the flow.
func (s *Server) handleWizardAnswers(c *gin.Context) {
	var answers wizard.Answers
	if err := c.ShouldBindJSON(&answers); err != nil {
		renderError(c, apperrors.NewMalformedDataError(err.Error()))
		return
	}

	visible := s.cfg.Flow.Visible(answers)
	steps := make([]gin.H, 0, len(visible))
	for _, q := range visible {
		steps = append(steps, gin.H{
			"id":       q.ID,
			"prompt":   q.Prompt,
			"required": q.Required,
		})
	}

	if err := s.cfg.Flow.Validate(answers); err != nil {
		se := apperrors.AsStandard(err)
		c.JSON(http.StatusOK, gin.H{"valid": false, "problems": se.Metadata["detail"], "questions": steps})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "questions": steps})
}

// handleWizardComplete validates the final answer set, derives preference
// labels, and stores them on the participant record.
func (s *Server) handleWizardComplete(c *gin.Context) {
	username := s.cfg.Provider.Username()
	if username == "" {
		renderError(c, apperrors.NewMissingUsernameError())
		return
	}

	var answers wizard.Answers
	if err := c.ShouldBindJSON(&answers); err != nil {
		renderError(c, apperrors.NewMalformedDataError(err.Error()))
		return
	}
	if err := s.cfg.Flow.Validate(answers); err != nil {
		renderError(c, err)
		return
	}

	ctx := c.Request.Context()
	labels := s.cfg.Flow.DeriveLabels(answers)
	if err := s.cfg.Labels.AssignLabels(ctx, username, labels); err != nil {
		renderError(c, err)
		return
	}

	profile, err := s.cfg.Provider.Profile(ctx, true)
	if err != nil {
		s.cfg.Logger.Warn("profile refresh after wizard completion failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"labels": labels, "profile": profile})
}

// handleWizardReset clears the stored labels so the wizard can be redone.
func (s *Server) handleWizardReset(c *gin.Context) {
	username := s.cfg.Provider.Username()
	if username == "" {
		renderError(c, apperrors.NewMissingUsernameError())
		return
	}

	ctx := c.Request.Context()
	if err := s.cfg.Labels.ClearLabels(ctx, username); err != nil {
		renderError(c, err)
		return
	}

	profile, _ := s.cfg.Provider.Profile(ctx, true)
	c.JSON(http.StatusOK, gin.H{"labels": []string{}, "profile": profile})
}
