// Package gateway exposes the HTTP/JSON surface the embedded page talks
// to. Handlers read through the data provider and mutate through the
// configured mutator (direct festival client, or the WordPress bridge in
// production mode).
package gateway

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"signup-gateway/internal/common/config"
	"signup-gateway/internal/common/logger"
	"signup-gateway/internal/common/observability"
	"signup-gateway/internal/festival"
	"signup-gateway/internal/provider"
	"signup-gateway/internal/wizard"
)

// Mutator is the write surface for subscriptions. Both the festival client
// and the WordPress bridge satisfy it.
type Mutator interface {
	Subscribe(ctx context.Context, username string, activityID festival.ID) error
	Unsubscribe(ctx context.Context, username string, activityID festival.ID) error
	SubscribeTrack(ctx context.Context, username string, trackID festival.ID) error
	UnsubscribeTrack(ctx context.Context, username string) error
}

// LabelWriter stores and clears wizard-derived preference labels. Only the
// direct festival client implements this; label writes never go through
// WordPress.
type LabelWriter interface {
	AssignLabels(ctx context.Context, username string, labels []string) error
	ClearLabels(ctx context.Context, username string) error
}

// RecordReader fetches a single raw backend record, bypassing the cache.
// Used by the admin dashboard to inspect what the backend actually sends.
type RecordReader interface {
	Activity(ctx context.Context, id festival.ID) (*festival.Activity, error)
}

// RouterConfig carries everything the route handlers need.
type RouterConfig struct {
	Logger        logger.Logger
	Config        *config.Config
	Provider      *provider.Provider
	Mutator       Mutator
	Labels        LabelWriter
	Records       RecordReader
	Flow          *wizard.Flow
	Observability *observability.Observability
}

// Server holds handler state shared across requests.
type Server struct {
	cfg RouterConfig

	// Per-activity double-click guard. An ID in the set has a mutation
	// outstanding; a second request for the same ID is rejected, not queued.
	mutationMu sync.Mutex
	inFlight   map[festival.ID]bool
}

// NewRouter wires middleware and routes onto a gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if !cfg.Config.Dev.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:      cfg,
		inFlight: make(map[festival.ID]bool),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(requestLogger(cfg.Logger, cfg.Observability))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Config.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthcheck", s.handleHealthcheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/activities", s.handleActivities)
		api.POST("/activities/:id/subscribe", s.handleSubscribe)
		api.POST("/activities/:id/unsubscribe", s.handleUnsubscribe)

		api.GET("/profile", s.handleProfile)
		api.POST("/logout", s.handleLogout)

		api.GET("/tracks", s.handleTracks)
		api.PUT("/tracks/:id/subscribe", s.handleSubscribeTrack)
		api.DELETE("/tracks/subscription", s.handleUnsubscribeTrack)

		api.GET("/suggestions", s.handleSuggestions)

		api.POST("/wizard/answers", s.handleWizardAnswers)
		api.POST("/wizard/complete", s.handleWizardComplete)
		api.POST("/wizard/reset", s.handleWizardReset)

		admin := api.Group("/admin")
		{
			admin.GET("/activities", s.handleAdminActivities)
			admin.GET("/activities/:id", s.handleAdminActivity)
			admin.GET("/stats", s.handleAdminStats)
		}
	}

	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("requestId", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func requestLogger(log logger.Logger, obs *observability.Observability) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if obs != nil {
			obs.RecordRequest(c.Request.Context(), route, strconv.Itoa(c.Writer.Status()))
			obs.RecordRequestDuration(c.Request.Context(), duration, route)
		}
		log.Info("request handled", map[string]interface{}{
			"method":    c.Request.Method,
			"route":     route,
			"status":    c.Writer.Status(),
			"duration":  duration.String(),
			"requestId": c.GetString("requestId"),
		})
	}
}
